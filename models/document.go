package models

// DocumentTree is the rendering-ready structure produced by assembly. It is
// built fresh for every generation and never persisted.
type DocumentTree struct {
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Sections    []Section `json:"sections"`
}

// Section is either a chapter (ChapterTitle set) or the trailing unassigned
// section (ChapterTitle nil).
type Section struct {
	ChapterID      *string        `json:"chapter_id"`
	ChapterTitle   *string        `json:"chapter_title"`
	ChapterContent string         `json:"chapter_content,omitempty"` // rendered HTML
	Items          []RenderedItem `json:"items"`
}

// IsUnassigned reports whether this is the untitled trailing section.
func (s Section) IsUnassigned() bool {
	return s.ChapterTitle == nil
}

type RenderedItem struct {
	ProjectPostID string `json:"project_post_id"`
	PostID        string `json:"post_id"`
	Title         string `json:"title"`
	HTMLContent   string `json:"html_content"`
	SourceOrder   int    `json:"source_order"`
}

// ItemCount returns the number of rendered posts across all sections.
func (d DocumentTree) ItemCount() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Items)
	}
	return n
}

// BookMetadata contains metadata shared by every render backend.
type BookMetadata struct {
	Title       string
	Description string
	Author      string
	Publisher   string
	Language    string // ISO639 code
}
