package model

import "time"

// SimplifiedArtist is the artist shape embedded in albums and tracks.
type SimplifiedArtist struct {
	ExternalURLs ExternalURLs `json:"external_urls"`
	Href         string       `json:"href"`
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Type         string       `json:"type"`
	URI          string       `json:"uri"`
}

// Artist is the full artist object.
type Artist struct {
	SimplifiedArtist
	Followers  Followers `json:"followers"`
	Genres     []string  `json:"genres"`
	Images     []Image   `json:"images"`
	Popularity int       `json:"popularity"`
}

// SimplifiedAlbum is the album shape embedded in tracks and artist album lists.
type SimplifiedAlbum struct {
	AlbumType            string             `json:"album_type"`
	AlbumGroup           string             `json:"album_group,omitempty"`
	TotalTracks          int                `json:"total_tracks"`
	AvailableMarkets     []string           `json:"available_markets"`
	ExternalURLs         ExternalURLs       `json:"external_urls"`
	Href                 string             `json:"href"`
	ID                   string             `json:"id"`
	Images               []Image            `json:"images"`
	Name                 string             `json:"name"`
	ReleaseDate          string             `json:"release_date"`
	ReleaseDatePrecision DatePrecision      `json:"release_date_precision"`
	Restrictions         *Restrictions      `json:"restrictions,omitempty"`
	Type                 string             `json:"type"`
	URI                  string             `json:"uri"`
	Artists              []SimplifiedArtist `json:"artists"`
}

// Released returns the release date parsed with its precision.
func (a SimplifiedAlbum) Released() (time.Time, error) {
	return ParseReleaseDate(a.ReleaseDate, a.ReleaseDatePrecision)
}

// SimplifiedTrack is the track shape listed inside an album.
type SimplifiedTrack struct {
	Artists          []SimplifiedArtist `json:"artists"`
	AvailableMarkets []string           `json:"available_markets"`
	DiscNumber       int                `json:"disc_number"`
	DurationMS       int                `json:"duration_ms"`
	Explicit         bool               `json:"explicit"`
	ExternalURLs     ExternalURLs       `json:"external_urls"`
	Href             string             `json:"href"`
	ID               string             `json:"id"`
	IsPlayable       *bool              `json:"is_playable,omitempty"`
	Restrictions     *Restrictions      `json:"restrictions,omitempty"`
	Name             string             `json:"name"`
	PreviewURL       *string            `json:"preview_url"`
	TrackNumber      int                `json:"track_number"`
	Type             string             `json:"type"`
	URI              string             `json:"uri"`
	IsLocal          bool               `json:"is_local"`
}

// Track is the full track object.
type Track struct {
	SimplifiedTrack
	Album       SimplifiedAlbum `json:"album"`
	ExternalIDs ExternalIDs     `json:"external_ids"`
	Popularity  int             `json:"popularity"`
}

// SimplifiedShow is the show shape embedded in episodes.
type SimplifiedShow struct {
	AvailableMarkets []string     `json:"available_markets"`
	Copyrights       []Copyright  `json:"copyrights"`
	Description      string       `json:"description"`
	Explicit         bool         `json:"explicit"`
	ExternalURLs     ExternalURLs `json:"external_urls"`
	Href             string       `json:"href"`
	ID               string       `json:"id"`
	Images           []Image      `json:"images"`
	Languages        []string     `json:"languages"`
	MediaType        string       `json:"media_type"`
	Name             string       `json:"name"`
	Publisher        string       `json:"publisher"`
	Type             string       `json:"type"`
	URI              string       `json:"uri"`
	TotalEpisodes    int          `json:"total_episodes"`
}

// Episode is a podcast episode.
type Episode struct {
	AudioPreviewURL      *string        `json:"audio_preview_url"`
	Description          string         `json:"description"`
	DurationMS           int            `json:"duration_ms"`
	Explicit             bool           `json:"explicit"`
	ExternalURLs         ExternalURLs   `json:"external_urls"`
	Href                 string         `json:"href"`
	ID                   string         `json:"id"`
	Images               []Image        `json:"images"`
	IsPlayable           bool           `json:"is_playable"`
	Languages            []string       `json:"languages"`
	Name                 string         `json:"name"`
	ReleaseDate          string         `json:"release_date"`
	ReleaseDatePrecision DatePrecision  `json:"release_date_precision"`
	ResumePoint          *ResumePoint   `json:"resume_point,omitempty"`
	Restrictions         *Restrictions  `json:"restrictions,omitempty"`
	Type                 string         `json:"type"`
	URI                  string         `json:"uri"`
	Show                 SimplifiedShow `json:"show"`
}

// PublicUser is the reduced user shape attached to playlist items.
type PublicUser struct {
	ExternalURLs ExternalURLs `json:"external_urls"`
	Href         string       `json:"href"`
	ID           string       `json:"id"`
	Type         string       `json:"type"`
	URI          string       `json:"uri"`
	DisplayName  *string      `json:"display_name,omitempty"`
}

// PlaylistItem is one entry of a playlist. Track is nil for entries whose
// content is no longer available.
type PlaylistItem struct {
	AddedAt *time.Time    `json:"added_at"`
	AddedBy *PublicUser   `json:"added_by"`
	IsLocal bool          `json:"is_local"`
	Track   *PlayableItem `json:"track"`
}

// SavedTrack is a track in the current user's library.
type SavedTrack struct {
	AddedAt time.Time `json:"added_at"`
	Track   Track     `json:"track"`
}

// PlayContext is the context (album, playlist, artist) a track was played from.
type PlayContext struct {
	Type         string       `json:"type"`
	Href         string       `json:"href"`
	ExternalURLs ExternalURLs `json:"external_urls"`
	URI          string       `json:"uri"`
}

// PlayHistory is an entry of the recently played list.
type PlayHistory struct {
	Track    Track        `json:"track"`
	PlayedAt time.Time    `json:"played_at"`
	Context  *PlayContext `json:"context"`
}
