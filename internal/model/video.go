package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Video represents an uploaded video.
// This corresponds to the videos table in storage.
type Video struct {
	ID                  string          `json:"id" db:"id"`
	UserID              string          `json:"userId" db:"user_id"`
	Title               string          `json:"title" db:"title"`
	Description         string          `json:"description,omitempty" db:"description"`
	ThumbnailURL        string          `json:"thumbnailUrl,omitempty" db:"thumbnail_url"`
	VideoURL            string          `json:"videoUrl" db:"video_url"`
	Duration            int             `json:"duration" db:"duration"` // Seconds; 0 when unknown
	Views               int64           `json:"views" db:"views"`
	Likes               int64           `json:"likes" db:"likes"`
	Dislikes            int64           `json:"dislikes" db:"dislikes"`
	IsPublished         bool            `json:"isPublished" db:"is_published"`
	PublishedAt         *time.Time      `json:"publishedAt,omitempty" db:"published_at"`
	IsPremium           bool            `json:"isPremium" db:"is_premium"`
	IsShort             bool            `json:"isShort" db:"is_short"`
	Category            string          `json:"category,omitempty" db:"category"`
	Tags                []string        `json:"tags" db:"tags"`
	Language            string          `json:"language,omitempty" db:"language"`
	Location            string          `json:"location,omitempty" db:"location"`
	AllowComments       bool            `json:"allowComments" db:"allow_comments"`
	MonetizationEnabled bool            `json:"monetizationEnabled" db:"monetization_enabled"`
	CreatedAt           time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time       `json:"updatedAt" db:"updated_at"`
	Owner               *ProfileSummary `json:"owner,omitempty"` // Joined from profiles
}

// NewVideo is the insert payload for a video row.
type NewVideo struct {
	UserID              string     `json:"userId"`
	Title               string     `json:"title"`
	Description         string     `json:"description,omitempty"`
	VideoURL            string     `json:"videoUrl"`
	ThumbnailURL        string     `json:"thumbnailUrl,omitempty"`
	Duration            int        `json:"duration"`
	IsPublished         bool       `json:"isPublished"`
	PublishedAt         *time.Time `json:"publishedAt,omitempty"`
	IsPremium           bool       `json:"isPremium"`
	IsShort             bool       `json:"isShort"`
	Category            string     `json:"category,omitempty"`
	Tags                []string   `json:"tags"`
	Language            string     `json:"language,omitempty"`
	Location            string     `json:"location,omitempty"`
	AllowComments       bool       `json:"allowComments"`
	MonetizationEnabled bool       `json:"monetizationEnabled"`
}

// VideoUpdate enumerates the mutable video fields. Nil pointers are left unchanged.
type VideoUpdate struct {
	Title               *string    `json:"title,omitempty"`
	Description         *string    `json:"description,omitempty"`
	ThumbnailURL        *string    `json:"thumbnailUrl,omitempty"`
	Category            *string    `json:"category,omitempty"`
	Tags                *[]string  `json:"tags,omitempty"`
	Language            *string    `json:"language,omitempty"`
	IsPublished         *bool      `json:"isPublished,omitempty"`
	PublishedAt         *time.Time `json:"publishedAt,omitempty"`
	AllowComments       *bool      `json:"allowComments,omitempty"`
	MonetizationEnabled *bool      `json:"monetizationEnabled,omitempty"`
}

// Apply copies the set fields onto v.
func (u VideoUpdate) Apply(v *Video) {
	if u.Title != nil {
		v.Title = *u.Title
	}
	if u.Description != nil {
		v.Description = *u.Description
	}
	if u.ThumbnailURL != nil {
		v.ThumbnailURL = *u.ThumbnailURL
	}
	if u.Category != nil {
		v.Category = *u.Category
	}
	if u.Tags != nil {
		v.Tags = append([]string(nil), (*u.Tags)...)
	}
	if u.Language != nil {
		v.Language = *u.Language
	}
	if u.IsPublished != nil {
		v.IsPublished = *u.IsPublished
	}
	if u.PublishedAt != nil {
		t := *u.PublishedAt
		v.PublishedAt = &t
	}
	if u.AllowComments != nil {
		v.AllowComments = *u.AllowComments
	}
	if u.MonetizationEnabled != nil {
		v.MonetizationEnabled = *u.MonetizationEnabled
	}
}

// VideoListOptions is the enumerated filter/sort configuration accepted by the
// video listing. Limit truncates; there is no cursor.
type VideoListOptions struct {
	Limit    int    `json:"limit,omitempty"`
	Category string `json:"category,omitempty"`
	IsShort  *bool  `json:"isShort,omitempty"`
	UserID   string `json:"userId,omitempty"`
	OrderBy  string `json:"orderBy,omitempty"` // "column:asc|desc"
}

// Order is a parsed ordering clause.
type Order struct {
	Column string
	Desc   bool
}

// DefaultOrder lists newest videos first.
var DefaultOrder = Order{Column: "created_at", Desc: true}

// orderColumns lists the columns a listing may be ordered by.
var orderColumns = map[string]bool{
	"created_at":   true,
	"published_at": true,
	"views":        true,
	"likes":        true,
	"title":        true,
	"duration":     true,
}

// ParseOrder parses "column:asc|desc". An empty string yields DefaultOrder and a
// missing direction defaults to descending.
func ParseOrder(s string) (Order, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultOrder, nil
	}
	column, dir, _ := strings.Cut(s, ":")
	if !orderColumns[column] {
		return Order{}, fmt.Errorf("unsupported order column %q", column)
	}
	switch strings.ToLower(dir) {
	case "asc":
		return Order{Column: column}, nil
	case "", "desc":
		return Order{Column: column, Desc: true}, nil
	default:
		return Order{}, fmt.Errorf("unsupported order direction %q", dir)
	}
}

// String renders the order back into "column:dir" form.
func (o Order) String() string {
	if o.Desc {
		return o.Column + ":desc"
	}
	return o.Column + ":asc"
}

// Bool returns a pointer to b, for optional filters such as IsShort.
func Bool(b bool) *bool { return &b }

// ParseBoolFilter parses an optional boolean query value; empty means unset.
func ParseBoolFilter(s string) (*bool, error) {
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Categories is the catalogue offered when uploading.
var Categories = []string{
	"Music", "Gaming", "Movies", "News", "Learning", "Shopping", "Sports",
	"Technology", "Entertainment", "Travel", "Food", "Fashion", "Beauty", "Fitness", "Other",
}

// Languages is the catalogue offered when uploading.
var Languages = []string{
	"English", "Hindi", "Spanish", "French", "German", "Chinese", "Japanese",
	"Korean", "Arabic", "Russian", "Portuguese", "Italian", "Other",
}

// ValidCategory reports whether c is in Categories, ignoring case.
func ValidCategory(c string) bool { return inCatalogue(Categories, c) }

// ValidLanguage reports whether l is in Languages, ignoring case.
func ValidLanguage(l string) bool { return inCatalogue(Languages, l) }

func inCatalogue(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
