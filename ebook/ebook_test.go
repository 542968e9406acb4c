package ebook

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreybb/quire/models"
)

func strPtr(s string) *string { return &s }

func sampleDoc() *models.DocumentTree {
	return &models.DocumentTree{
		ProjectID:   "proj-1",
		Title:       "Field Notes",
		Description: "Collected posts",
		Sections: []models.Section{
			{
				ChapterID:      strPtr("c1"),
				ChapterTitle:   strPtr("Intro"),
				ChapterContent: "<p>Welcome.</p>",
				Items: []models.RenderedItem{
					{ProjectPostID: "pp-a", Title: "A", HTMLContent: "<p>alpha</p>", SourceOrder: 1},
				},
			},
			{
				Items: []models.RenderedItem{
					{ProjectPostID: "pp-b", Title: "B", HTMLContent: "<p>bravo</p>", SourceOrder: 1},
					{ProjectPostID: "pp-c", Title: "C & D", HTMLContent: "<p>charlie</p>", SourceOrder: 2},
				},
			},
		},
	}
}

func sampleMeta() models.BookMetadata {
	return models.BookMetadata{Title: "Field Notes", Description: "Collected posts", Author: "Ada", Language: "en"}
}

func TestBuildPrintHTML(t *testing.T) {
	out, err := BuildPrintHTML(sampleDoc(), sampleMeta())
	require.NoError(t, err)

	assert.Contains(t, out, `<div class="title-page">`)
	assert.Contains(t, out, "<h1>Field Notes</h1>")
	assert.Contains(t, out, `<p class="description">Collected posts</p>`)
	assert.Contains(t, out, `<h1 class="chapter-title">Intro</h1>`)
	assert.Contains(t, out, `<div class="chapter-intro"><p>Welcome.</p></div>`)
	assert.Contains(t, out, "<p>alpha</p>", "post HTML is not escaped")
	assert.Contains(t, out, `<section class="section unassigned">`)
	assert.Contains(t, out, "C &amp; D", "titles are escaped")
	assert.Contains(t, out, "break-before: page")

	intro := strings.Index(out, "Intro")
	bravo := strings.Index(out, "bravo")
	assert.Less(t, intro, bravo, "chapters precede the unassigned section")
}

type mockPageRenderer struct {
	html   string
	result []byte
	err    error
	hang   bool
	closed bool
}

func (m *mockPageRenderer) RenderFromFile(ctx context.Context, filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	m.html = string(data)
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("render called without a deadline")
	}
	if m.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.result, m.err
}

func (m *mockPageRenderer) Close() error {
	m.closed = true
	return nil
}

func TestPDFRenderer_Render(t *testing.T) {
	t.Run("delegates printed HTML", func(t *testing.T) {
		pages := &mockPageRenderer{result: []byte("%PDF-1.7")}
		r := NewPDFRenderer(pages, 0)

		out, err := r.Render(context.Background(), sampleDoc(), sampleMeta())
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF-1.7"), out)
		assert.Contains(t, pages.html, "Intro")
		assert.Equal(t, models.BookFormatPDF, r.Format())

		require.NoError(t, r.Close())
		assert.True(t, pages.closed)
	})

	t.Run("propagates renderer failure", func(t *testing.T) {
		pages := &mockPageRenderer{err: ErrPageLoad}
		_, err := NewPDFRenderer(pages, 0).Render(context.Background(), sampleDoc(), sampleMeta())
		assert.ErrorIs(t, err, ErrPageLoad)
	})

	t.Run("hanging page is cut off by the render timeout", func(t *testing.T) {
		pages := &mockPageRenderer{hang: true}
		_, err := NewPDFRenderer(pages, 5*time.Millisecond).Render(context.Background(), sampleDoc(), sampleMeta())
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func readEPUB(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	files := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		files[f.Name] = string(b)
	}
	return files
}

func TestEPUBRenderer_Render(t *testing.T) {
	r := NewEPUBRenderer(false)
	data, err := r.Render(context.Background(), sampleDoc(), sampleMeta())
	require.NoError(t, err)
	assert.Equal(t, models.BookFormatEPUB, r.Format())

	files := readEPUB(t, data)

	var sections []string
	for name := range files {
		if strings.Contains(name, "section-") && strings.HasSuffix(name, ".xhtml") {
			sections = append(sections, name)
		}
	}
	sort.Strings(sections)
	require.Len(t, sections, 3, "one section for the chapter and one per unassigned post")

	assert.Contains(t, files[sections[0]], "<h1>Intro</h1>")
	assert.Contains(t, files[sections[0]], "<h2>A</h2>")
	assert.Contains(t, files[sections[0]], "alpha")
	assert.Contains(t, files[sections[1]], "<h1>B</h1>")
	assert.Contains(t, files[sections[2]], "<h1>C &amp; D</h1>")

	for name, body := range files {
		if strings.HasSuffix(name, ".css") {
			assert.NotContains(t, body, "page-break", name)
			assert.NotContains(t, body, "break-before", name)
		}
	}
}

func TestEPUBRenderer_EmptyDocument(t *testing.T) {
	r := NewEPUBRenderer(false)

	_, err := r.Render(context.Background(), &models.DocumentTree{Title: "Empty"}, sampleMeta())
	assert.ErrorIs(t, err, ErrEmptyDocument)

	onlyEmptyUnassigned := &models.DocumentTree{Title: "Empty", Sections: []models.Section{{}}}
	_, err = r.Render(context.Background(), onlyEmptyUnassigned, sampleMeta())
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestRenderers(t *testing.T) {
	rs := NewRenderers(NewPDFRenderer(&mockPageRenderer{}, 0), NewEPUBRenderer(false))

	r, err := rs.For(models.BookFormatEPUB)
	require.NoError(t, err)
	assert.Equal(t, models.BookFormatEPUB, r.Format())

	_, err = rs.For("mobi")
	assert.Error(t, err)
}

func TestHighlightCSS(t *testing.T) {
	css := HighlightCSS()
	assert.Contains(t, css, ".chroma")
}
