// Package plugins holds the built-in tool descriptors shipped with the binary.
package plugins

import "embed"

// FS contains the built-in descriptor files.
//
//go:embed *.yaml
var FS embed.FS
