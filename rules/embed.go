// Package rules embeds the default rule scripts, used when no rules
// directory is configured.
package rules

import "embed"

//go:embed *.risor
var FS embed.FS
