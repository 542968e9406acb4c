package models

import "time"

// Post is an authored blog post. Its content is owned by the author and is
// only ever read by the book pipeline.
type Post struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Content     string    `json:"content"` // Markdown source
	Excerpt     string    `json:"excerpt,omitempty"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
