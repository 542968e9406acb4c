package models

import "strings"

// BookFormat defines the set of artifact formats a project can be rendered to.
type BookFormat string

const (
	BookFormatPDF  BookFormat = "pdf"
	BookFormatEPUB BookFormat = "epub"
)

// IsValidBookFormat checks if the provided format string is a valid BookFormat.
// It returns the typed BookFormat and true if valid, otherwise an empty BookFormat and false.
func IsValidBookFormat(formatStr string) (BookFormat, bool) {
	bf := BookFormat(strings.ToLower(strings.TrimSpace(formatStr)))
	switch bf {
	case BookFormatPDF, BookFormatEPUB:
		return bf, true
	default:
		return "", false
	}
}

// Extension returns the file extension (without dot) used for stored artifacts.
func (f BookFormat) Extension() string {
	return string(f)
}

// ContentType returns the MIME type served for artifacts of this format.
func (f BookFormat) ContentType() string {
	switch f {
	case BookFormatPDF:
		return "application/pdf"
	case BookFormatEPUB:
		return "application/epub+zip"
	default:
		return "application/octet-stream"
	}
}
