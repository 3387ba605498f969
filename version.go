package thicket

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var rawVersion string

// Version is the release of the thicket module.
var Version = strings.TrimSpace(rawVersion)
