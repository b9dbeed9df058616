// Package assets embeds the static sources of the map page.
package assets

import _ "embed"

// IndexTemplate is the page skeleton, a text/template.
//
//go:embed index.html.tpl
var IndexTemplate string

// Style is the page stylesheet.
//
//go:embed style.css
var Style string

// Script renders the view state with Leaflet.
//
//go:embed script.js
var Script string

// Favicon is the site icon.
//
//go:embed favicon.svg
var Favicon []byte
