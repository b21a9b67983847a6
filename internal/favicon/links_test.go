package favicon

import (
	"net/url"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

func TestParseIconLinks(t *testing.T) {
	page := `<html><head>
		<link rel="stylesheet" href="/site.css">
		<link rel="apple-touch-icon" sizes="180x180" href="/apple.png">
		<link rel="Shortcut Icon" href="//cdn.example.net/fav.ico">
		<link rel="icon" type="image/png" sizes="16x16 32x32" href="icons/32.png">
		<link rel="icon" href="data:image/png;base64,AAAA">
		<link rel="apple-touch-icon-precomposed" href="/pre.png">
		<link rel="icon" sizes="32x32" href="/icons/32.png">
	</head></html>`
	base, err := url.Parse("https://www.example.com/blog/")
	assert.NilError(t, err)

	got, err := parseIconLinks(strings.NewReader(page), base)
	assert.NilError(t, err)

	assert.DeepEqual(t, got, []string{
		"https://www.example.com/blog/icons/32.png",
		"https://www.example.com/icons/32.png",
		"https://cdn.example.net/fav.ico",
		"https://www.example.com/pre.png",
		"https://www.example.com/apple.png",
	})
}

func TestLargestSize(t *testing.T) {
	assert.Equal(t, largestSize("16x16 48x48 32x32"), 48)
	assert.Equal(t, largestSize("any"), 0)
	assert.Equal(t, largestSize(""), 0)
}
