package conversion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// ErrConversion indicates a markdown document could not be rendered.
var ErrConversion = errors.New("markdown conversion failed")

// HighlightStyle is the chroma style whose CSS classes the converter emits.
const HighlightStyle = "github"

// MarkdownConverter renders post markdown into sanitized HTML fragments.
type MarkdownConverter struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewMarkdownConverter creates a converter with GFM, footnotes, hard line
// breaks and class-based code highlighting. Raw HTML in posts is passed to
// the sanitizer rather than dropped.
func NewMarkdownConverter() *MarkdownConverter {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			highlighting.NewHighlighting(
				highlighting.WithStyle(HighlightStyle),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
			html.WithUnsafe(),
		),
	)

	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Globally()
	policy.AllowAttrs("id").Globally()

	return &MarkdownConverter{md: md, policy: policy}
}

// ToHTML converts markdown to an HTML fragment. Empty input yields "".
func (c *MarkdownConverter) ToHTML(ctx context.Context, markdown string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(markdown) == "" {
		return "", nil
	}

	type result struct {
		html string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		var buf bytes.Buffer
		if err := c.md.Convert([]byte(markdown), &buf); err != nil {
			done <- result{err: fmt.Errorf("%w: %v", ErrConversion, err)}
			return
		}
		done <- result{html: c.policy.Sanitize(buf.String())}
	}()

	select {
	case <-ctx.Done():
		slog.WarnContext(ctx, "markdown conversion abandoned", "error", ctx.Err())
		return "", ctx.Err()
	case r := <-done:
		return r.html, r.err
	}
}
