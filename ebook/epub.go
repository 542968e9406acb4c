package ebook

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	epub "github.com/go-shiori/go-epub"
	"github.com/vincent-petithory/dataurl"

	"github.com/coreybb/quire/models"
)

var imgSrcRegex = regexp.MustCompile(`<img([^>]*)\ssrc=["']([^"']+)["']([^>]*)>`)

// EPUBRenderer packages a document as a reflowable EPUB.
type EPUBRenderer struct {
	// EmbedRemoteImages downloads http(s) images into the package so the
	// book reads offline.
	EmbedRemoteImages bool
}

func NewEPUBRenderer(embedRemoteImages bool) *EPUBRenderer {
	return &EPUBRenderer{EmbedRemoteImages: embedRemoteImages}
}

func (r *EPUBRenderer) Format() models.BookFormat { return models.BookFormatEPUB }

// Render maps every chapter section to one packaged section with an h2 per
// post, and every unassigned post to a packaged section of its own.
func (r *EPUBRenderer) Render(ctx context.Context, doc *models.DocumentTree, meta models.BookMetadata) ([]byte, error) {
	if len(doc.Sections) == 0 {
		return nil, ErrEmptyDocument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()

	title := meta.Title
	if title == "" {
		title = doc.Title
	}
	e, err := epub.NewEpub(title)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEPUBGeneration, err)
	}
	if meta.Author != "" {
		e.SetAuthor(meta.Author)
	}
	if meta.Description != "" {
		e.SetDescription(meta.Description)
	}
	lang := meta.Language
	if lang == "" {
		lang = "en"
	}
	e.SetLang(lang)

	css := dataurl.New([]byte(epubCSS+HighlightCSS()), "text/css").String()
	cssPath, err := e.AddCSS(css, "book.css")
	if err != nil {
		return nil, fmt.Errorf("%w: add stylesheet: %v", ErrEPUBGeneration, err)
	}

	sectionNum := 0
	addSection := func(body, sectionTitle string) error {
		sectionNum++
		if r.EmbedRemoteImages {
			body = embedImages(e, body, sectionNum)
		}
		filename := fmt.Sprintf("section-%04d.xhtml", sectionNum)
		if _, err := e.AddSection(body, sectionTitle, filename, cssPath); err != nil {
			return fmt.Errorf("%w: add section %q: %v", ErrEPUBGeneration, sectionTitle, err)
		}
		return nil
	}

	for _, s := range doc.Sections {
		if s.IsUnassigned() {
			for _, it := range s.Items {
				body := "<h1>" + html.EscapeString(it.Title) + "</h1>\n" + it.HTMLContent
				if err := addSection(body, it.Title); err != nil {
					return nil, err
				}
			}
			continue
		}

		var sb strings.Builder
		sb.WriteString("<h1>" + html.EscapeString(*s.ChapterTitle) + "</h1>\n")
		if s.ChapterContent != "" {
			sb.WriteString(`<div class="chapter-intro">` + s.ChapterContent + "</div>\n")
		}
		for _, it := range s.Items {
			sb.WriteString("<h2>" + html.EscapeString(it.Title) + "</h2>\n")
			sb.WriteString(it.HTMLContent)
			sb.WriteString("\n")
		}
		if err := addSection(sb.String(), *s.ChapterTitle); err != nil {
			return nil, err
		}
	}

	if sectionNum == 0 {
		return nil, ErrEmptyDocument
	}

	data, err := writeEPUB(e)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "rendered EPUB",
		"project_id", doc.ProjectID,
		"sections", sectionNum,
		"size", humanize.Bytes(uint64(len(data))),
		"took", time.Since(start).Round(time.Millisecond),
	)
	return data, nil
}

func writeEPUB(e *epub.Epub) ([]byte, error) {
	dir, err := os.MkdirTemp("", "quire-epub-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp dir: %v", ErrEPUBGeneration, err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "book.epub")
	if err := e.Write(path); err != nil {
		return nil, fmt.Errorf("%w: write package: %v", ErrEPUBGeneration, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read package: %v", ErrEPUBGeneration, err)
	}
	return data, nil
}

// embedImages swaps remote image sources for packaged copies. Images that
// cannot be fetched keep their original URL.
func embedImages(e *epub.Epub, body string, sectionNum int) string {
	imageCount := 0
	return imgSrcRegex.ReplaceAllStringFunc(body, func(match string) string {
		sub := imgSrcRegex.FindStringSubmatch(match)
		if len(sub) < 4 {
			return match
		}
		src := sub[2]
		if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
			return match
		}

		imageCount++
		name := fmt.Sprintf("s%04d-image-%03d", sectionNum, imageCount)
		path, err := e.AddImage(src, name)
		if err != nil {
			slog.Warn("failed to embed image in EPUB", "src", src, "error", err)
			return match
		}
		return fmt.Sprintf(`<img%s src="%s"%s>`, sub[1], path, sub[3])
	})
}
