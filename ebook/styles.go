package ebook

import (
	"strings"
	"sync"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/coreybb/quire/conversion"
)

// printCSS paginates the single-document PDF. Every section starts a page and
// headings never end a page.
const printCSS = `
@page { size: A4; }
html { font-family: Georgia, "Times New Roman", serif; font-size: 11pt; line-height: 1.6; color: #222; }
body { margin: 0; }
.title-page { break-after: page; page-break-after: always; text-align: center; padding-top: 35%; }
.title-page h1 { font-size: 32pt; margin-bottom: 0.5em; }
.title-page .description { font-size: 13pt; font-style: italic; color: #555; }
.section { break-before: page; page-break-before: always; }
.section.unassigned .post { break-before: page; page-break-before: always; }
.section.unassigned .post:first-child { break-before: auto; page-break-before: auto; }
h1, h2, h3, h4 { break-after: avoid; page-break-after: avoid; break-inside: avoid; }
.chapter-title { font-size: 24pt; margin: 0 0 1em; }
.chapter-intro { font-style: italic; margin-bottom: 2em; }
.post-title { font-size: 16pt; margin: 1.5em 0 0.75em; }
pre, blockquote, table, figure { break-inside: avoid; page-break-inside: avoid; }
pre { background: #f6f8fa; padding: 0.75em; font-size: 9pt; white-space: pre-wrap; }
img { max-width: 100%; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.3em 0.6em; }
`

// epubCSS is tuned for reflowable readers. It must not carry page-break rules.
const epubCSS = `
body { font-family: Georgia, "Times New Roman", serif; line-height: 1.5; margin: 0 1em; }
h1 { font-size: 1.6em; margin: 1em 0 0.5em; }
h2 { font-size: 1.3em; margin: 1.5em 0 0.5em; }
p { margin: 0 0 0.8em; text-indent: 0; }
blockquote { margin: 1em 1.5em; font-style: italic; }
pre { font-family: "Courier New", monospace; font-size: 0.85em; white-space: pre-wrap; }
img { max-width: 100%; height: auto; }
.chapter-intro { font-style: italic; }
`

var (
	highlightOnce sync.Once
	highlightCSS  string
)

// HighlightCSS returns the stylesheet for the code classes emitted by the
// markdown converter.
func HighlightCSS() string {
	highlightOnce.Do(func() {
		var sb strings.Builder
		formatter := chromahtml.New(chromahtml.WithClasses(true))
		if err := formatter.WriteCSS(&sb, styles.Get(conversion.HighlightStyle)); err == nil {
			highlightCSS = sb.String()
		}
	})
	return highlightCSS
}
