// Package model defines core data structures and types for the adventure journal.
package model

import (
	"slices"
	"strings"
	"time"
)

type PostID int64

type Post struct {
	ID PostID

	Title       string
	Description *string

	// Opaque handle produced by a media store. Empty means the post has no media.
	MediaRef string

	Latitude  *float64
	Longitude *float64

	Tags []string

	// Optional free-text directions to the spot.
	Directions *string

	// Milliseconds since epoch, set once at creation.
	Timestamp int64
}

func (p *Post) HasMedia() bool {
	return p.MediaRef != ""
}

// HasLocation reports whether both coordinates are present.
func (p *Post) HasLocation() bool {
	return p.Latitude != nil && p.Longitude != nil
}

func (p *Post) HasTag(tag string) bool {
	return slices.Contains(p.Tags, tag)
}

func (p *Post) CreatedAt() time.Time {
	return time.UnixMilli(p.Timestamp).UTC()
}

func (p *Post) GetDescription() string {
	if p.Description == nil {
		return ""
	}
	return *p.Description
}

func (p *Post) GetDirections() string {
	if p.Directions == nil {
		return ""
	}
	return *p.Directions
}

// Clone returns a deep copy of the post.
func (p Post) Clone() Post {
	c := p
	c.Description = clonePtr(p.Description)
	c.Directions = clonePtr(p.Directions)
	c.Latitude = clonePtr(p.Latitude)
	c.Longitude = clonePtr(p.Longitude)
	if p.Tags != nil {
		c.Tags = slices.Clone(p.Tags)
	}
	return c
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// ParseTags splits comma separated tag text, trimming each entry and dropping blanks.
// Order is kept and duplicates are not removed.
func ParseTags(text string) []string {
	tags := make([]string, 0)
	for _, tag := range strings.Split(text, ",") {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// NowMillis returns the current time in milliseconds since epoch.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

func StringPtr(s string) *string {
	return &s
}

func FloatPtr(f float64) *float64 {
	return &f
}
