package ebook

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/coreybb/quire/models"
)

// A4 in inches with 20mm margins on every side.
const (
	a4WidthInches  = 8.27
	a4HeightInches = 11.69
	marginInches   = 20.0 / 25.4

	DefaultRenderTimeout = 120 * time.Second
)

var printTemplate = template.Must(template.New("print").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>{{.CSS}}</style>
</head>
<body>
<div class="title-page">
<h1>{{.Title}}</h1>
{{- if .Description}}
<p class="description">{{.Description}}</p>
{{- end}}
{{- if .Author}}
<p class="author">{{.Author}}</p>
{{- end}}
{{- if .Publisher}}
<p class="publisher">{{.Publisher}}</p>
{{- end}}
</div>
{{- range .Sections}}
{{- if .IsUnassigned}}
<section class="section unassigned">
{{- else}}
<section class="section chapter">
<h1 class="chapter-title">{{.ChapterTitle}}</h1>
{{- if .ChapterContent}}
<div class="chapter-intro">{{.ChapterContent}}</div>
{{- end}}
{{- end}}
{{- range .Items}}
<article class="post">
<h2 class="post-title">{{.Title}}</h2>
{{.HTMLContent}}
</article>
{{- end}}
</section>
{{- end}}
</body>
</html>
`))

type printSection struct {
	IsUnassigned   bool
	ChapterTitle   string
	ChapterContent template.HTML
	Items          []printItem
}

type printItem struct {
	Title       string
	HTMLContent template.HTML
}

// BuildPrintHTML lays the whole document out as one print-ready HTML page.
// Post and intro HTML is trusted: it has already been sanitized by the
// markdown converter.
func BuildPrintHTML(doc *models.DocumentTree, meta models.BookMetadata) (string, error) {
	sections := make([]printSection, 0, len(doc.Sections))
	for _, s := range doc.Sections {
		ps := printSection{
			IsUnassigned:   s.IsUnassigned(),
			ChapterContent: template.HTML(s.ChapterContent),
		}
		if s.ChapterTitle != nil {
			ps.ChapterTitle = *s.ChapterTitle
		}
		for _, it := range s.Items {
			ps.Items = append(ps.Items, printItem{Title: it.Title, HTMLContent: template.HTML(it.HTMLContent)})
		}
		sections = append(sections, ps)
	}

	lang := meta.Language
	if lang == "" {
		lang = "en"
	}
	title := meta.Title
	if title == "" {
		title = doc.Title
	}

	data := struct {
		Lang        string
		Title       string
		Description string
		Author      string
		Publisher   string
		CSS         template.CSS
		Sections    []printSection
	}{
		Lang:        lang,
		Title:       title,
		Description: meta.Description,
		Author:      meta.Author,
		Publisher:   meta.Publisher,
		CSS:         template.CSS(printCSS + HighlightCSS()),
		Sections:    sections,
	}

	var buf bytes.Buffer
	if err := printTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render print template: %w", err)
	}
	return buf.String(), nil
}

// PageRenderer prints a local HTML file to PDF.
type PageRenderer interface {
	RenderFromFile(ctx context.Context, filePath string) ([]byte, error)
	Close() error
}

// PDFRenderer renders a document through a headless browser.
type PDFRenderer struct {
	pages   PageRenderer
	timeout time.Duration
}

func NewPDFRenderer(pages PageRenderer, timeout time.Duration) *PDFRenderer {
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	return &PDFRenderer{pages: pages, timeout: timeout}
}

func (r *PDFRenderer) Format() models.BookFormat { return models.BookFormatPDF }

func (r *PDFRenderer) Render(ctx context.Context, doc *models.DocumentTree, meta models.BookMetadata) ([]byte, error) {
	html, err := BuildPrintHTML(doc, meta)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPDFGeneration, err)
	}

	tmp, err := os.CreateTemp("", "quire-print-*.html")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %v", ErrPDFGeneration, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(html); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("%w: write temp file: %v", ErrPDFGeneration, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("%w: close temp file: %v", ErrPDFGeneration, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	pdf, err := r.pages.RenderFromFile(ctx, tmp.Name())
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "rendered PDF",
		"project_id", doc.ProjectID,
		"size", humanize.Bytes(uint64(len(pdf))),
		"took", time.Since(start).Round(time.Millisecond),
	)
	return pdf, nil
}

// Close releases the browser.
func (r *PDFRenderer) Close() error {
	return r.pages.Close()
}

// RodPageRenderer prints pages with headless Chromium via go-rod. The browser
// is launched on first use and shared by later renders.
type RodPageRenderer struct {
	mu         sync.Mutex
	browser    *rod.Browser
	browserBin string
	noSandbox  bool
}

func NewRodPageRenderer(browserBin string, noSandbox bool) *RodPageRenderer {
	return &RodPageRenderer{browserBin: browserBin, noSandbox: noSandbox}
}

func (r *RodPageRenderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New()
	if r.browserBin != "" {
		l = l.Bin(r.browserBin)
	}
	if r.noSandbox {
		l = l.NoSandbox(true)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	r.browser = browser
	return browser, nil
}

func (r *RodPageRenderer) RenderFromFile(ctx context.Context, filePath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	browser, err := r.ensureBrowser()
	if err != nil {
		return nil, err
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "file://" + filePath})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	defer page.Close()

	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	reader, err := page.PDF(&proto.PagePrintToPDF{
		PaperWidth:      floatPtr(a4WidthInches),
		PaperHeight:     floatPtr(a4HeightInches),
		MarginTop:       floatPtr(marginInches),
		MarginBottom:    floatPtr(marginInches),
		MarginLeft:      floatPtr(marginInches),
		MarginRight:     floatPtr(marginInches),
		PrintBackground: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPDFGeneration, err)
	}

	pdf, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading PDF stream: %v", ErrPDFGeneration, err)
	}
	return pdf, nil
}

func (r *RodPageRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	return err
}

func floatPtr(v float64) *float64 {
	return &v
}
