package models

import "time"

// ProjectPost attaches an authored post to a project. ChapterID nil places the
// post in the unassigned bucket; Order is only meaningful within that bucket.
type ProjectPost struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	PostID        string    `json:"post_id"`
	ChapterID     *string   `json:"chapter_id"`
	Order         int       `json:"order"`
	IncludeInBook bool      `json:"include_in_book"`
	CreatedAt     time.Time `json:"created_at"`
}

// ProjectPostContent is a ProjectPost joined with the post fields assembly needs.
type ProjectPostContent struct {
	ProjectPost
	Title    string `json:"title"`
	Markdown string `json:"-"`
}

// OrderMove is one (item, target order) pair of a reorder batch.
type OrderMove struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}
