// Package spotify maps the paginated list endpoints of the Web API onto typed
// pages. It only builds paths and query parameters; requests go through the
// pagination.Getter it is given, normally a *client.Client.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/Sternrassler/spotify-client/pkg/client"
	"github.com/Sternrassler/spotify-client/pkg/model"
	"github.com/Sternrassler/spotify-client/pkg/pagination"
)

// MaxLimit is the largest page size the list endpoints accept.
const MaxLimit = 50

// ErrInvalidOptions is returned for options the API would reject.
var ErrInvalidOptions = errors.New("invalid list options")

// PageOptions selects a window of an offset-paginated list.
type PageOptions struct {
	Market string `url:"market,omitempty"`
	Limit  int    `url:"limit,omitempty"`
	Offset int    `url:"offset,omitempty"`
}

func (o *PageOptions) validate() error {
	if o == nil {
		return nil
	}
	if o.Limit < 0 || o.Limit > MaxLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d (got %d)", ErrInvalidOptions, MaxLimit, o.Limit)
	}
	if o.Offset < 0 {
		return fmt.Errorf("%w: offset must be >= 0 (got %d)", ErrInvalidOptions, o.Offset)
	}
	return nil
}

// ArtistAlbumsOptions narrows the albums of an artist by release group.
type ArtistAlbumsOptions struct {
	PageOptions
	// IncludeGroups takes album, single, appears_on and compilation.
	IncludeGroups []string `url:"include_groups,comma,omitempty"`
}

// CursorOptions selects a window of a cursor-paginated list. After and Before
// are mutually exclusive.
type CursorOptions struct {
	After  string `url:"after,omitempty"`
	Before string `url:"before,omitempty"`
	Limit  int    `url:"limit,omitempty"`
}

func (o *CursorOptions) validate() error {
	if o == nil {
		return nil
	}
	if o.Limit < 0 || o.Limit > MaxLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d (got %d)", ErrInvalidOptions, MaxLimit, o.Limit)
	}
	if o.After != "" && o.Before != "" {
		return fmt.Errorf("%w: after and before cannot both be set", ErrInvalidOptions)
	}
	return nil
}

// Service issues the typed list requests.
type Service struct {
	getter pagination.Getter
}

// New creates a service on top of getter.
func New(getter pagination.Getter) *Service {
	return &Service{getter: getter}
}

// Getter returns the getter the service was created with, for following the
// links of the pages it returns.
func (s *Service) Getter() pagination.Getter {
	return s.getter
}

// AlbumTracks returns the first window of an album's tracks.
func (s *Service) AlbumTracks(ctx context.Context, albumID string, opts *PageOptions) (*pagination.Page[model.SimplifiedTrack], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return getPage[model.SimplifiedTrack](ctx, s.getter, "albums/"+url.PathEscape(albumID)+"/tracks", params(opts))
}

// ArtistAlbums returns the first window of an artist's albums.
func (s *Service) ArtistAlbums(ctx context.Context, artistID string, opts *ArtistAlbumsOptions) (*pagination.Page[model.SimplifiedAlbum], error) {
	var p any
	if opts != nil {
		if err := opts.PageOptions.validate(); err != nil {
			return nil, err
		}
		p = opts
	}
	return getPage[model.SimplifiedAlbum](ctx, s.getter, "artists/"+url.PathEscape(artistID)+"/albums", p)
}

// PlaylistItems returns the first window of a playlist's entries.
func (s *Service) PlaylistItems(ctx context.Context, playlistID string, opts *PageOptions) (*pagination.Page[model.PlaylistItem], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return getPage[model.PlaylistItem](ctx, s.getter, "playlists/"+url.PathEscape(playlistID)+"/tracks", params(opts))
}

// SavedTracks returns the first window of the current user's library.
func (s *Service) SavedTracks(ctx context.Context, opts *PageOptions) (*pagination.Page[model.SavedTrack], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return getPage[model.SavedTrack](ctx, s.getter, "me/tracks", params(opts))
}

// RecentlyPlayed returns the first window of the current user's play history.
func (s *Service) RecentlyPlayed(ctx context.Context, opts *CursorOptions) (*pagination.CursorPage[model.PlayHistory], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	var page pagination.CursorPage[model.PlayHistory]
	if err := s.getter.Get(ctx, "me/player/recently-played", cursorParams(opts), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// FollowedArtists returns the first window of the artists the current user follows.
//
// This endpoint nests every window under an "artists" key, including the ones
// behind its next links. Follow them with s.Following(), not the plain getter.
func (s *Service) FollowedArtists(ctx context.Context, opts *CursorOptions) (*pagination.CursorPage[model.Artist], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts != nil && opts.Before != "" {
		return nil, fmt.Errorf("%w: followed artists only page forward", ErrInvalidOptions)
	}

	values := url.Values{"type": {"artist"}}
	if opts != nil {
		if opts.After != "" {
			values.Set("after", opts.After)
		}
		if opts.Limit > 0 {
			values.Set("limit", fmt.Sprint(opts.Limit))
		}
	}

	var page pagination.CursorPage[model.Artist]
	if err := s.Following().Get(ctx, "me/following", values, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Following returns a getter that unwraps the "artists" envelope of the
// followed artists windows.
func (s *Service) Following() pagination.Getter {
	return envelopeGetter{getter: s.getter, key: "artists"}
}

// envelopeGetter decodes the value under key instead of the whole body.
type envelopeGetter struct {
	getter pagination.Getter
	key    string
}

func (g envelopeGetter) Get(ctx context.Context, rawURL string, params any, out any) error {
	var envelope map[string]json.RawMessage
	if err := g.getter.Get(ctx, rawURL, params, &envelope); err != nil {
		return err
	}

	raw, ok := envelope[g.key]
	if !ok || string(raw) == "null" {
		return client.NewDecodeError(fmt.Sprintf("response has no %q object", g.key), nil)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return client.NewDecodeError(fmt.Sprintf("decode %q object", g.key), err)
	}
	return nil
}

func getPage[T any](ctx context.Context, g pagination.Getter, path string, params any) (*pagination.Page[T], error) {
	var page pagination.Page[T]
	if err := g.Get(ctx, path, params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// params keeps a nil options pointer from reaching the getter as a typed nil.
func params(opts *PageOptions) any {
	if opts == nil {
		return nil
	}
	return opts
}

func cursorParams(opts *CursorOptions) any {
	if opts == nil {
		return nil
	}
	return opts
}
