package ebook

import "errors"

var (
	ErrEmptyDocument  = errors.New("document has no content to render")
	ErrPDFGeneration  = errors.New("PDF generation failed")
	ErrEPUBGeneration = errors.New("EPUB generation failed")
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageCreate     = errors.New("failed to create browser page")
	ErrPageLoad       = errors.New("failed to load page")
)
