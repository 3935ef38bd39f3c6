package guide

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChapterFrontMatter(t *testing.T) {
	src := []byte(`---
title: Thinking in Signals
slug: thinking-in-signals
order: 1
---

# Thinking in Signals

A signal is a box.
`)
	ch, err := parseChapter("01-thinking.md", src)
	require.NoError(t, err)

	assert.Equal(t, "Thinking in Signals", ch.Title)
	assert.Equal(t, "thinking-in-signals", ch.Slug)
	assert.Equal(t, 1, ch.Order)
	assert.Equal(t, "01-thinking.md", ch.File)
	assert.Contains(t, string(ch.HTML), "<h1")
	assert.Contains(t, string(ch.HTML), "A signal is a box.")
}

func TestParseChapterDefaults(t *testing.T) {
	ch, err := parseChapter("03-manual-fixes.md", []byte("# Heading\n\nBody.\n"))
	require.NoError(t, err)

	assert.Equal(t, "Manual fixes", ch.Title)
	assert.Equal(t, "manual-fixes", ch.Slug)
	assert.Equal(t, 3, ch.Order)
}

func TestParseChapterRendersGFM(t *testing.T) {
	src := []byte(`| Code | Meaning |
|------|---------|
| W200 | parse |
`)
	ch, err := parseChapter("codes.md", src)
	require.NoError(t, err)
	assert.Contains(t, string(ch.HTML), "<table>")
}

func TestParseChapterNoUsableName(t *testing.T) {
	_, err := parseChapter("1.md", []byte("body\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable title")
}

func TestSlugify(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Thinking in Signals", "thinking-in-signals"},
		{"Go 1.24 & You", "go-1-24-you"},
		{"  spaced  ", "spaced"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, slugify(tt.in), tt.in)
	}
}

func TestOrderFromName(t *testing.T) {
	assert.Equal(t, 3, orderFromName("03-manual.md"))
	assert.Equal(t, 12, orderFromName("12_extra.md"))
	assert.Equal(t, 0, orderFromName("intro.md"))
}
