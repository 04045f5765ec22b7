package catalog

import (
	"encoding/json"
	"fmt"
)

// Entry is a catalog record kept as the raw JSON the API returned. Only the
// identity and a few display fields are decoded; everything else passes
// through untouched.
type Entry struct {
	MalID     int
	Title     string
	Name      string
	Type      string
	Score     float64
	Year      int
	Favorites int

	raw json.RawMessage
}

type entryHead struct {
	MalID     int      `json:"mal_id"`
	Title     string   `json:"title"`
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Score     *float64 `json:"score"`
	Year      *int     `json:"year"`
	Favorites int      `json:"favorites"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var head entryHead
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("decode entry: %w", err)
	}

	*e = Entry{
		MalID:     head.MalID,
		Title:     head.Title,
		Name:      head.Name,
		Type:      head.Type,
		Favorites: head.Favorites,
		raw:       append(json.RawMessage(nil), data...),
	}
	if head.Score != nil {
		e.Score = *head.Score
	}
	if head.Year != nil {
		e.Year = *head.Year
	}
	return nil
}

// MarshalJSON returns the record exactly as received.
func (e Entry) MarshalJSON() ([]byte, error) {
	if len(e.raw) == 0 {
		return json.Marshal(map[string]any{"mal_id": e.MalID})
	}
	return e.raw, nil
}

// ItemID implements pagination.Identifiable.
func (e Entry) ItemID() int { return e.MalID }

// DisplayName returns the title, or the name for characters.
func (e Entry) DisplayName() string {
	if e.Title != "" {
		return e.Title
	}
	return e.Name
}

// Raw returns the undecoded record.
func (e Entry) Raw() json.RawMessage {
	return e.raw
}

// Decode unmarshals the raw record into v, e.g. an *Anime.
func (e Entry) Decode(v any) error {
	if len(e.raw) == 0 {
		return fmt.Errorf("entry %d has no raw data", e.MalID)
	}
	return json.Unmarshal(e.raw, v)
}
