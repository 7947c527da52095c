package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/spotify-client/internal/testutil"
	"github.com/Sternrassler/spotify-client/pkg/auth"
	"github.com/Sternrassler/spotify-client/pkg/client"
	"github.com/Sternrassler/spotify-client/pkg/model"
	"github.com/Sternrassler/spotify-client/pkg/pagination"
)

func newTestService(t *testing.T, mock *testutil.MockAPI) *Service {
	t.Helper()

	cfg := client.DefaultConfig(auth.NewStaticAccessToken("test-token"), "TestApp/1.0.0 (test@example.com)")
	cfg.BaseURL = mock.URL()
	cfg.InitialBackoff = time.Millisecond

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return New(c)
}

func tracks(n int) []any {
	items := make([]any, n)
	for i := range items {
		items[i] = map[string]any{
			"id":           fmt.Sprintf("t%d", i),
			"name":         fmt.Sprintf("Track %d", i),
			"track_number": i + 1,
			"type":         "track",
		}
	}
	return items
}

func artists(n int) []any {
	items := make([]any, n)
	for i := range items {
		items[i] = map[string]any{
			"id":   fmt.Sprintf("a%d", i),
			"name": fmt.Sprintf("Artist %d", i),
			"type": "artist",
		}
	}
	return items
}

func TestAlbumTracks_FirstWindow(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetOffsetPages("/albums/abc/tracks", 20, tracks(5))

	svc := newTestService(t, mock)

	page, err := svc.AlbumTracks(context.Background(), "abc", &PageOptions{Limit: 2, Market: "DE"})
	if err != nil {
		t.Fatalf("AlbumTracks() error = %v", err)
	}

	if page.Total != 5 || page.Limit != 2 || len(page.Items) != 2 {
		t.Errorf("page = total %d limit %d items %d, want 5/2/2", page.Total, page.Limit, len(page.Items))
	}
	if !page.HasNext() || page.HasPrevious() {
		t.Errorf("HasNext() = %v, HasPrevious() = %v", page.HasNext(), page.HasPrevious())
	}
	if page.Items[1].Name != "Track 1" {
		t.Errorf("Items[1].Name = %q", page.Items[1].Name)
	}
}

func TestAllAlbumTracks(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetOffsetPages("/albums/abc/tracks", 20, tracks(7))

	svc := newTestService(t, mock)

	all, err := svc.AllAlbumTracks(context.Background(), "abc", &PageOptions{Limit: 3})
	if err != nil {
		t.Fatalf("AllAlbumTracks() error = %v", err)
	}

	if len(all) != 7 {
		t.Fatalf("len = %d, want 7", len(all))
	}
	for i, track := range all {
		if track.ID != fmt.Sprintf("t%d", i) {
			t.Errorf("all[%d].ID = %q, out of order", i, track.ID)
		}
	}
	if got := mock.GetPathCount("/albums/abc/tracks"); got != 3 {
		t.Errorf("requests = %d, want 3 windows", got)
	}
}

func TestAlbumTracks_IteratorSurvivesFailure(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetOffsetPages("/albums/abc/tracks", 2, tracks(4))

	svc := newTestService(t, mock)
	ctx := context.Background()

	page, err := svc.AlbumTracks(ctx, "abc", nil)
	if err != nil {
		t.Fatalf("AlbumTracks() error = %v", err)
	}

	mock.FailNext("/albums/abc/tracks", testutil.NewNotFoundResponse())

	it := page.Iter(svc.Getter())
	var ids []string
	var failures int
	for track, err := range it.All(ctx) {
		if err != nil {
			failures++
			continue
		}
		ids = append(ids, track.ID)
	}

	if failures != 1 {
		t.Errorf("failures = %d, want 1", failures)
	}
	if want := []string{"t0", "t1", "t2", "t3"}; fmt.Sprint(ids) != fmt.Sprint(want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}
}

func TestArtistAlbums_IncludeGroups(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	var query string
	mock.SetHandler("/artists/xyz/albums", func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(`{"href": "", "limit": 10, "offset": 0, "total": 0, "next": null, "previous": null, "items": []}`))
	})

	svc := newTestService(t, mock)

	_, err := svc.ArtistAlbums(context.Background(), "xyz", &ArtistAlbumsOptions{
		PageOptions:   PageOptions{Limit: 10},
		IncludeGroups: []string{"album", "single"},
	})
	if err != nil {
		t.Fatalf("ArtistAlbums() error = %v", err)
	}

	if want := "include_groups=album%2Csingle&limit=10"; query != want {
		t.Errorf("query = %q, want %q", query, want)
	}
}

func TestPlaylistItems_Playable(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetOffsetPages("/playlists/p1/tracks", 10, []any{
		map[string]any{"added_at": "2024-01-02T03:04:05Z", "track": map[string]any{"id": "t1", "type": "track", "name": "Song"}},
		map[string]any{"added_at": "2024-01-02T03:04:05Z", "track": map[string]any{"id": "e1", "type": "episode", "name": "Talk"}},
		map[string]any{"added_at": nil, "track": nil},
	})

	svc := newTestService(t, mock)

	items, err := svc.AllPlaylistItems(context.Background(), "p1", nil)
	if err != nil {
		t.Fatalf("AllPlaylistItems() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}

	if items[0].Track == nil || items[0].Track.Type() != model.ItemTypeTrack || items[0].Track.Track.ID != "t1" {
		t.Errorf("items[0] = %+v, want track t1", items[0].Track)
	}
	if items[1].Track == nil || items[1].Track.Type() != model.ItemTypeEpisode || items[1].Track.Episode.ID != "e1" {
		t.Errorf("items[1] = %+v, want episode e1", items[1].Track)
	}
	if items[2].Track != nil || items[2].AddedAt != nil {
		t.Errorf("items[2] = %+v, want unavailable entry", items[2])
	}
}

func TestSavedTracks_AuthError(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/me/tracks", testutil.MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"error": {"status": 401, "message": "The access token expired"}}`,
	})

	svc := newTestService(t, mock)

	_, err := svc.SavedTracks(context.Background(), nil)
	if client.ClassOf(err) != client.ErrorClassAuth {
		t.Errorf("ClassOf() = %q, want auth", client.ClassOf(err))
	}
	if !errors.Is(err, auth.ErrTokenInvalid) {
		t.Errorf("error = %v, want ErrTokenInvalid", err)
	}
}

func TestFollowedArtists_Envelope(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetCursorPages("/me/following", 2, artists(5), "artists")

	svc := newTestService(t, mock)
	ctx := context.Background()

	page, err := svc.FollowedArtists(ctx, &CursorOptions{Limit: 2})
	if err != nil {
		t.Fatalf("FollowedArtists() error = %v", err)
	}
	if len(page.Items) != 2 || page.Cursors.After == nil || *page.Cursors.After != "2" {
		t.Errorf("first window = %d items, cursors %+v", len(page.Items), page.Cursors)
	}
	if mock.LastRequestHeader.Get("Authorization") != "Bearer test-token" {
		t.Errorf("Authorization = %q", mock.LastRequestHeader.Get("Authorization"))
	}

	all, err := page.FetchAll(ctx, svc.Following())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(all) != 5 || all[4].Name != "Artist 4" {
		t.Errorf("FetchAll() = %d artists, want 5 ending with Artist 4", len(all))
	}

	everything, err := svc.AllFollowedArtists(ctx, nil)
	if err != nil {
		t.Fatalf("AllFollowedArtists() error = %v", err)
	}
	if len(everything) != 5 {
		t.Errorf("AllFollowedArtists() = %d, want 5", len(everything))
	}
}

func TestFollowedArtists_DecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed window", `{"artists": {"items": "not a list"}}`},
		{"missing envelope", `{"albums": {"items": []}}`},
		{"null envelope", `{"artists": null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockAPI()
			defer mock.Close()
			mock.SetResponse("/me/following", testutil.MockResponse{StatusCode: http.StatusOK, Body: tt.body})

			svc := newTestService(t, mock)

			_, err := svc.FollowedArtists(context.Background(), nil)
			if client.ClassOf(err) != client.ErrorClassDecode {
				t.Errorf("ClassOf() = %q, want decode (err = %v)", client.ClassOf(err), err)
			}
		})
	}
}

func TestFollowedArtists_DecodeErrorWhileFollowing(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/me/following", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"artists": {"items": [{"id": "a0", "name": "Artist 0"}], "next": %q, "cursors": {"after": "a0"}}}`, mock.URL()+"/broken"),
	})
	mock.SetResponse("/broken", testutil.MockResponse{StatusCode: http.StatusOK, Body: `{"artists": "oops"}`})

	svc := newTestService(t, mock)
	ctx := context.Background()

	page, err := svc.FollowedArtists(ctx, nil)
	if err != nil {
		t.Fatalf("FollowedArtists() error = %v", err)
	}

	all, err := page.FetchAll(ctx, svc.Following())
	if all != nil {
		t.Errorf("FetchAll() = %v, want nil on failure", all)
	}
	if client.ClassOf(err) != client.ErrorClassDecode {
		t.Errorf("FetchAll() ClassOf() = %q, want decode (err = %v)", client.ClassOf(err), err)
	}

	got, err := page.Iter(svc.Following()).Collect(ctx)
	if len(got) != 1 {
		t.Errorf("Collect() = %d items before the failure, want 1", len(got))
	}
	if client.ClassOf(err) != client.ErrorClassDecode {
		t.Errorf("Collect() ClassOf() = %q, want decode", client.ClassOf(err))
	}
}

func TestRecentlyPlayed_CursorChain(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	history := make([]any, 3)
	for i := range history {
		history[i] = map[string]any{
			"played_at": fmt.Sprintf("2024-05-0%dT10:00:00Z", i+1),
			"track":     map[string]any{"id": fmt.Sprintf("t%d", i), "type": "track"},
			"context":   nil,
		}
	}
	mock.SetCursorPages("/me/player/recently-played", 2, history, "")

	svc := newTestService(t, mock)
	ctx := context.Background()

	page, err := svc.RecentlyPlayed(ctx, &CursorOptions{Limit: 2})
	if err != nil {
		t.Fatalf("RecentlyPlayed() error = %v", err)
	}

	next, err := page.GetNext(ctx, svc.Getter())
	if err != nil {
		t.Fatalf("GetNext() error = %v", err)
	}
	if len(next.Items) != 1 || next.Items[0].Track.ID != "t2" {
		t.Errorf("second window = %+v", next.Items)
	}
	if next.HasNext() {
		t.Error("last window must be terminal")
	}
	if _, err := next.GetNext(ctx, svc.Getter()); !errors.Is(err, pagination.ErrNoNextPage) {
		t.Errorf("GetNext() on last window error = %v, want ErrNoNextPage", err)
	}
}

func TestOptionsValidation(t *testing.T) {
	svc := New(nil)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"limit too large", func() error { _, err := svc.AlbumTracks(ctx, "a", &PageOptions{Limit: 51}); return err }},
		{"negative offset", func() error { _, err := svc.SavedTracks(ctx, &PageOptions{Offset: -1}); return err }},
		{"negative artist albums limit", func() error {
			_, err := svc.ArtistAlbums(ctx, "a", &ArtistAlbumsOptions{PageOptions: PageOptions{Limit: -1}})
			return err
		}},
		{"after and before", func() error {
			_, err := svc.RecentlyPlayed(ctx, &CursorOptions{After: "1", Before: "2"})
			return err
		}},
		{"following before", func() error { _, err := svc.FollowedArtists(ctx, &CursorOptions{Before: "x"}); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("error = %v, want ErrInvalidOptions", err)
			}
		})
	}
}

func TestTracksOfAlbums(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetOffsetPages("/albums/a1/tracks", 2, tracks(5))
	mock.SetOffsetPages("/albums/a2/tracks", 2, tracks(1))

	svc := newTestService(t, mock)
	d := pagination.NewDrainer(svc.Getter(), pagination.DefaultConfig())

	got, err := svc.TracksOfAlbums(context.Background(), d, []string{"a1", "a2"}, nil)
	if err != nil {
		t.Fatalf("TracksOfAlbums() error = %v", err)
	}
	if len(got["a1"]) != 5 || len(got["a2"]) != 1 {
		t.Errorf("lengths = %d/%d, want 5/1", len(got["a1"]), len(got["a2"]))
	}
}

func TestTracksOfAlbums_FailureFailsAll(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetOffsetPages("/albums/a1/tracks", 2, tracks(5))

	svc := newTestService(t, mock)
	d := pagination.NewDrainer(svc.Getter(), pagination.DefaultConfig())

	got, err := svc.TracksOfAlbums(context.Background(), d, []string{"a1", "missing"}, nil)
	if client.StatusOf(err) != http.StatusNotFound {
		t.Errorf("error = %v, want 404", err)
	}
	if got != nil {
		t.Errorf("result = %v, want nil", got)
	}
}
