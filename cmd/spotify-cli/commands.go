package main

import (
	"encoding/json"
	"io"
	"iter"

	"github.com/Sternrassler/spotify-client/pkg/spotify"
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "spotify-cli",
		Short:        "Read paginated lists from the Spotify Web API",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	rootCmd.PersistentFlags().String("token", "", "Use this access token instead of the saved login")
	rootCmd.PersistentFlags().String("api-url", "", "Web API base URL")
	rootCmd.PersistentFlags().String("market", "", "ISO 3166-1 alpha-2 market code")

	rootCmd.AddCommand(
		newLoginCmd(a),
		newAlbumTracksCmd(a),
		newSavedTracksCmd(a),
		newRecentlyPlayedCmd(a),
		newFollowedArtistsCmd(a),
	)
	return rootCmd
}

// listFlags are shared by the list commands.
type listFlags struct {
	limit int
	all   bool
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.limit, "limit", "l", 0, "Page size (1-50, server default when unset)")
	cmd.Flags().BoolVar(&f.all, "all", false, "Fetch the whole list before printing; fails without output on any error")
}

func newAlbumTracksCmd(a *app) *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:   "album-tracks <album-id>",
		Short: "List the tracks of an album",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			page, err := svc.AlbumTracks(cmd.Context(), args[0], &spotify.PageOptions{Limit: flags.limit, Market: a.config.Market})
			if err != nil {
				return err
			}
			if flags.all {
				items, err := page.FetchAll(cmd.Context(), svc.Getter())
				if err != nil {
					return err
				}
				return printAll(cmd.OutOrStdout(), items)
			}
			return printStream(cmd.OutOrStdout(), page.Iter(svc.Getter()).All(cmd.Context()))
		},
	}
	flags.register(cmd)
	return cmd
}

func newSavedTracksCmd(a *app) *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:   "saved-tracks",
		Short: "List the tracks saved in your library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			page, err := svc.SavedTracks(cmd.Context(), &spotify.PageOptions{Limit: flags.limit, Market: a.config.Market})
			if err != nil {
				return err
			}
			if flags.all {
				items, err := page.FetchAll(cmd.Context(), svc.Getter())
				if err != nil {
					return err
				}
				return printAll(cmd.OutOrStdout(), items)
			}
			return printStream(cmd.OutOrStdout(), page.Iter(svc.Getter()).All(cmd.Context()))
		},
	}
	flags.register(cmd)
	return cmd
}

func newRecentlyPlayedCmd(a *app) *cobra.Command {
	var flags listFlags
	var after, before string
	cmd := &cobra.Command{
		Use:   "recently-played",
		Short: "List your recently played tracks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			page, err := svc.RecentlyPlayed(cmd.Context(), &spotify.CursorOptions{Limit: flags.limit, After: after, Before: before})
			if err != nil {
				return err
			}
			if flags.all {
				items, err := page.FetchAll(cmd.Context(), svc.Getter())
				if err != nil {
					return err
				}
				return printAll(cmd.OutOrStdout(), items)
			}
			return printStream(cmd.OutOrStdout(), page.Iter(svc.Getter()).All(cmd.Context()))
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&after, "after", "", "Unix timestamp in ms, return items played after it")
	cmd.Flags().StringVar(&before, "before", "", "Unix timestamp in ms, return items played before it")
	return cmd
}

func newFollowedArtistsCmd(a *app) *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:   "followed-artists",
		Short: "List the artists you follow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			page, err := svc.FollowedArtists(cmd.Context(), &spotify.CursorOptions{Limit: flags.limit})
			if err != nil {
				return err
			}
			if flags.all {
				items, err := page.FetchAll(cmd.Context(), svc.Following())
				if err != nil {
					return err
				}
				return printAll(cmd.OutOrStdout(), items)
			}
			return printStream(cmd.OutOrStdout(), page.Iter(svc.Following()).All(cmd.Context()))
		},
	}
	flags.register(cmd)
	return cmd
}

// printAll writes one JSON document per item.
func printAll[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

// printStream writes items as they arrive and stops at the first failed window.
func printStream[T any](w io.Writer, seq iter.Seq2[T, error]) error {
	enc := json.NewEncoder(w)
	for item, err := range seq {
		if err != nil {
			return err
		}
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}
