// Package model holds the decoded records returned by the Web API.
//
// The shared value types in this file are attached to many entities (albums,
// tracks, shows, playlists). They carry no behavior beyond JSON decoding.
package model

// Image is a cover art or profile picture in one resolution.
type Image struct {
	URL    string `json:"url"`
	Height *int   `json:"height"`
	Width  *int   `json:"width"`
}

// Copyright is a copyright statement of an album or show.
type Copyright struct {
	Text string        `json:"text"`
	Type CopyrightType `json:"type"`
}

// Restrictions explains why an item is not playable.
type Restrictions struct {
	Reason RestrictionReason `json:"reason"`
}

// ExternalIDs are identifiers of an item in other catalogues.
type ExternalIDs struct {
	ISRC *string `json:"isrc"`
	EAN  *string `json:"ean"`
	UPC  *string `json:"upc"`
}

// ExternalURLs are links to the item outside the API.
type ExternalURLs struct {
	Spotify string `json:"spotify"`
}

// Followers is the follower count of an artist, playlist or user.
type Followers struct {
	// Href is always null, the API does not expose the follower list.
	Href  *string `json:"href"`
	Total int     `json:"total"`
}

// ResumePoint is the playback position of the current user in an episode.
type ResumePoint struct {
	FullyPlayed      bool `json:"fully_played"`
	ResumePositionMS int  `json:"resume_position_ms"`
}
