package models

import "time"

// DefaultProjectStatus is the workflow label given to new projects.
const DefaultProjectStatus = "draft"

// Project is an author's book creation project. Status is a free-form workflow
// label; GenerationStatus tracks artifact builds.
type Project struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	GenerationStatus    GenerationStatus `json:"generation_status"`
	GenerationError     *string          `json:"generation_error"`
	GenerationStartedAt *time.Time       `json:"generation_started_at,omitempty"`
	GenerationToken     string           `json:"-"`
	PDFURL              *string          `json:"pdf_url"`
	EPUBURL             *string          `json:"epub_url"`
	LastGeneratedAt     *time.Time       `json:"last_generated_at"`
}

// ArtifactURL returns the last successful artifact URL for a format, if any.
func (p *Project) ArtifactURL(format BookFormat) *string {
	if format == BookFormatEPUB {
		return p.EPUBURL
	}
	return p.PDFURL
}

// GenerationState is the client-visible view of a project's generation status.
type GenerationState struct {
	Status          *string    `json:"status"`
	Error           *string    `json:"error"`
	PDFURL          *string    `json:"pdfUrl"`
	EPUBURL         *string    `json:"epubUrl"`
	LastGeneratedAt *time.Time `json:"lastGeneratedAt"`
}

// GenerationState projects the persisted generation fields, mapping the
// never-generated status to null.
func (p *Project) GenerationState() GenerationState {
	state := GenerationState{
		Error:           p.GenerationError,
		PDFURL:          p.PDFURL,
		EPUBURL:         p.EPUBURL,
		LastGeneratedAt: p.LastGeneratedAt,
	}
	if p.GenerationStatus != GenerationStatusNone {
		status := string(p.GenerationStatus)
		state.Status = &status
	}
	return state
}
