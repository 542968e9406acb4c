package conversion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownConverter_ToHTML(t *testing.T) {
	c := NewMarkdownConverter()

	tests := []struct {
		name        string
		markdown    string
		contains    []string
		notContains []string
	}{
		{
			name:     "empty input",
			markdown: "   \n",
		},
		{
			name:     "heading and emphasis",
			markdown: "# Title\n\nSome *text*.",
			contains: []string{"<h1", "Title</h1>", "<em>text</em>"},
		},
		{
			name:     "hard line breaks",
			markdown: "line one\nline two",
			contains: []string{"<br"},
		},
		{
			name:     "gfm table",
			markdown: "| a | b |\n|---|---|\n| 1 | 2 |",
			contains: []string{"<table>", "<td>1</td>"},
		},
		{
			name:        "script stripped",
			markdown:    "hello <script>alert(1)</script>",
			contains:    []string{"hello"},
			notContains: []string{"<script", "alert(1)"},
		},
		{
			name:     "highlighted code keeps classes",
			markdown: "```go\nfunc main() {}\n```",
			contains: []string{"class=\"chroma\""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.ToHTML(context.Background(), tt.markdown)
			require.NoError(t, err)
			if len(tt.contains) == 0 {
				assert.Empty(t, got)
			}
			for _, s := range tt.contains {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, got, s)
			}
		})
	}
}

func TestMarkdownConverter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMarkdownConverter().ToHTML(ctx, "# hi")
	assert.ErrorIs(t, err, context.Canceled)
}
