// Package ui embeds the static assets served by fitsd.
package ui

import "embed"

//go:embed index.html
var Files embed.FS
