package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// IconRef is a weak reference from an Entry to a cached icon.
// The payload itself is owned by the icon store.
type IconRef struct {
	SiteKey   string    `json:"siteKey"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Entry is a leaf node holding a URL.
type Entry struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	URL       string     `json:"url"`
	ParentID  string     `json:"parent"`
	Icon      *IconRef   `json:"icon,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	VisitedAt *time.Time `json:"visitedAt,omitempty"` // nil = never visited
}

// NewEntryParams holds parameters for creating a new Entry.
type NewEntryParams struct {
	Name string
	URL  string
}

// NewEntry creates an Entry with a generated id.
// The URL must be absolute, otherwise ErrInvalidURL is returned.
func NewEntry(params NewEntryParams) (Entry, error) {
	if err := ValidateURL(params.URL); err != nil {
		return Entry{}, err
	}

	name := params.Name
	if name == "" {
		name = params.URL // fallback to URL as name
	}

	return Entry{
		ID:        NewID(),
		Name:      name,
		URL:       params.URL,
		CreatedAt: time.Now(),
	}, nil
}

// ValidateURL checks that raw is a syntactically valid absolute URL.
// Web URLs additionally need a host.
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) != raw || raw == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Hostname() == "" {
			return fmt.Errorf("%w: %q has no host", ErrInvalidURL, raw)
		}
	default:
		if u.Host == "" && u.Opaque == "" && u.Path == "" {
			return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
		}
	}

	return nil
}

// clone returns a deep copy of the entry.
func (e *Entry) clone() *Entry {
	c := *e
	if e.Icon != nil {
		icon := *e.Icon
		c.Icon = &icon
	}
	if e.VisitedAt != nil {
		v := *e.VisitedAt
		c.VisitedAt = &v
	}
	return &c
}
