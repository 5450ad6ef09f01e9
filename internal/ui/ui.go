// Package ui embeds the HUD page served at /.
package ui

import "embed"

// DistFS holds the built HUD assets under dist/.
//
//go:embed dist
var DistFS embed.FS
