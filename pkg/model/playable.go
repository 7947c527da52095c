package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ItemType is the value of the "type" discriminant of a playable item.
type ItemType string

const (
	ItemTypeTrack   ItemType = "track"
	ItemTypeEpisode ItemType = "episode"
)

// ErrUnknownPlayable is returned when a playable item matches neither shape.
var ErrUnknownPlayable = errors.New("playable item is neither a track nor an episode")

// PlayableItem holds either a Track or an Episode. Exactly one of the two is non-nil
// after a successful decode.
type PlayableItem struct {
	Track   *Track
	Episode *Episode
}

// Type reports which shape the item holds.
func (p PlayableItem) Type() ItemType {
	if p.Episode != nil {
		return ItemTypeEpisode
	}
	return ItemTypeTrack
}

// UnmarshalJSON decodes the item by its "type" field. When the field is missing
// the shape is recognized by a key only one of the two carries ("album" for
// tracks, "show" for episodes).
func (p *PlayableItem) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("playable item: %w", err)
	}

	kind, err := discriminate(probe)
	if err != nil {
		return err
	}

	*p = PlayableItem{}
	switch kind {
	case ItemTypeEpisode:
		var e Episode
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("playable item (episode): %w", err)
		}
		p.Episode = &e
	default:
		var t Track
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("playable item (track): %w", err)
		}
		p.Track = &t
	}
	return nil
}

// MarshalJSON encodes the held shape only.
func (p PlayableItem) MarshalJSON() ([]byte, error) {
	switch {
	case p.Episode != nil:
		return json.Marshal(p.Episode)
	case p.Track != nil:
		return json.Marshal(p.Track)
	default:
		return []byte("null"), nil
	}
}

func discriminate(probe map[string]json.RawMessage) (ItemType, error) {
	if raw, ok := probe["type"]; ok {
		var t string
		if err := json.Unmarshal(raw, &t); err == nil {
			switch ItemType(t) {
			case ItemTypeTrack, ItemTypeEpisode:
				return ItemType(t), nil
			}
		}
	}

	_, hasAlbum := probe["album"]
	_, hasShow := probe["show"]
	switch {
	case hasAlbum && !hasShow:
		return ItemTypeTrack, nil
	case hasShow && !hasAlbum:
		return ItemTypeEpisode, nil
	default:
		return "", ErrUnknownPlayable
	}
}
