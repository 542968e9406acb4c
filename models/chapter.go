package models

import "time"

// Chapter is a project-scoped grouping of posts with optional intro content.
type Chapter struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	Content   *string   `json:"content"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
}
