package ebook

import (
	"context"
	"fmt"

	"github.com/coreybb/quire/models"
)

// Renderer turns an assembled document into the bytes of one artifact format.
type Renderer interface {
	Format() models.BookFormat
	Render(ctx context.Context, doc *models.DocumentTree, meta models.BookMetadata) ([]byte, error)
}

// Renderers looks up the backend for a format.
type Renderers map[models.BookFormat]Renderer

// NewRenderers indexes the given backends by the format they produce.
func NewRenderers(backends ...Renderer) Renderers {
	rs := make(Renderers, len(backends))
	for _, b := range backends {
		rs[b.Format()] = b
	}
	return rs
}

func (rs Renderers) For(format models.BookFormat) (Renderer, error) {
	r, ok := rs[format]
	if !ok {
		return nil, fmt.Errorf("no renderer registered for format %q", format)
	}
	return r, nil
}

// MetadataFor derives the shared book metadata from a project.
func MetadataFor(project *models.Project, author string) models.BookMetadata {
	meta := models.BookMetadata{
		Title:    project.Title,
		Author:   author,
		Language: "en",
	}
	if project.Description != nil {
		meta.Description = *project.Description
	}
	return meta
}
