package spotify

import (
	"context"
	"fmt"

	"github.com/Sternrassler/spotify-client/pkg/model"
	"github.com/Sternrassler/spotify-client/pkg/pagination"
)

// AllAlbumTracks returns every track of an album.
func (s *Service) AllAlbumTracks(ctx context.Context, albumID string, opts *PageOptions) ([]model.SimplifiedTrack, error) {
	page, err := s.AlbumTracks(ctx, albumID, opts)
	if err != nil {
		return nil, err
	}
	return page.FetchAll(ctx, s.getter)
}

// AllPlaylistItems returns every entry of a playlist.
func (s *Service) AllPlaylistItems(ctx context.Context, playlistID string, opts *PageOptions) ([]model.PlaylistItem, error) {
	page, err := s.PlaylistItems(ctx, playlistID, opts)
	if err != nil {
		return nil, err
	}
	return page.FetchAll(ctx, s.getter)
}

// AllFollowedArtists returns every artist the current user follows.
func (s *Service) AllFollowedArtists(ctx context.Context, opts *CursorOptions) ([]model.Artist, error) {
	page, err := s.FollowedArtists(ctx, opts)
	if err != nil {
		return nil, err
	}
	return page.FetchAll(ctx, s.Following())
}

// TracksOfAlbums returns the full track list of every album, keyed by album ID.
// The first windows are fetched one after another; the remaining windows of all
// albums are then drained concurrently by d. Any failure fails the whole call.
func (s *Service) TracksOfAlbums(ctx context.Context, d *pagination.Drainer, albumIDs []string, opts *PageOptions) (map[string][]model.SimplifiedTrack, error) {
	firsts := make([]pagination.Page[model.SimplifiedTrack], 0, len(albumIDs))
	for _, id := range albumIDs {
		page, err := s.AlbumTracks(ctx, id, opts)
		if err != nil {
			return nil, fmt.Errorf("album %s: %w", id, err)
		}
		firsts = append(firsts, *page)
	}

	lists, err := pagination.DrainPages(ctx, d, firsts)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]model.SimplifiedTrack, len(albumIDs))
	for i, id := range albumIDs {
		out[id] = lists[i]
	}
	return out, nil
}
