package domain

import "fmt"

type ContentType string

const (
	TypeMovie ContentType = "movie"
	TypeTV    ContentType = "tv"
)

func ParseContentType(s string) (ContentType, error) {
	switch ContentType(s) {
	case TypeMovie, TypeTV:
		return ContentType(s), nil
	}
	return "", fmt.Errorf("%w: unknown content type %q", ErrInvalidEntry, s)
}

// Entry is one persisted list record. Display fields are a snapshot taken at
// write time and are never refreshed.
type Entry struct {
	ID           int64       `json:"id"`
	Type         ContentType `json:"type"`
	Title        string      `json:"title"`
	PosterPath   string      `json:"poster_path,omitempty"`
	BackdropPath string      `json:"backdrop_path,omitempty"`
	Rating       float64     `json:"vote_average,omitempty"`
	ReleaseDate  string      `json:"release_date,omitempty"`
	Season       int         `json:"season,omitempty"`
	Episode      int         `json:"episode,omitempty"`
	Progress     float64     `json:"progress,omitempty"`
	Elapsed      float64     `json:"elapsed,omitempty"`
	Duration     float64     `json:"duration,omitempty"`
	UpdatedAt    int64       `json:"updated_at"`
}

type Key struct {
	ID   int64
	Type ContentType
}

func (e Entry) Key() Key {
	return Key{ID: e.ID, Type: e.Type}
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.Type, k.ID)
}

// Validate checks the composite key.
func (e Entry) Validate() error {
	if e.ID <= 0 {
		return fmt.Errorf("%w: id must be positive", ErrInvalidEntry)
	}
	if _, err := ParseContentType(string(e.Type)); err != nil {
		return err
	}
	return nil
}
