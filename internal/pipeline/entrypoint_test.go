package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func entriesFor(paths ...string) []Entry {
	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		entries = append(entries, Entry{Path: p})
	}
	return entries
}

func TestSelectRoot(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		want  string
		found bool
	}{
		{
			name:  "root index.html wins over everything",
			paths: []string{"about.html", "docs/index.html", "index.html"},
			want:  "index.html",
			found: true,
		},
		{
			name:  "nested index.html beats plain html",
			paths: []string{"about.html", "app/index.html"},
			want:  "app/index.html",
			found: true,
		},
		{
			name:  "first nested index.html in input order",
			paths: []string{"b/index.html", "a/index.html"},
			want:  "b/index.html",
			found: true,
		},
		{
			name:  "backslash-separated nested index.html beats plain html",
			paths: []string{"about.html", `app\index.html`},
			want:  `app\index.html`,
			found: true,
		},
		{
			name:  "falls back to first html file",
			paths: []string{"style.css", "main.html", "other.html"},
			want:  "main.html",
			found: true,
		},
		{
			name:  "htm extension counts",
			paths: []string{"style.css", "legacy.htm"},
			want:  "legacy.htm",
			found: true,
		},
		{
			name:  "no html at all",
			paths: []string{"style.css", "app.js", "logo.png"},
			found: false,
		},
		{
			name:  "empty list",
			paths: nil,
			found: false,
		},
		{
			name:  "index.html only as filename suffix does not match tier one",
			paths: []string{"notindex.html"},
			want:  "notindex.html",
			found: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectRoot(entriesFor(tt.paths...))
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
