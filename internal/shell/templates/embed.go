// Package templates holds the embedded bootstrap page.
package templates

import "embed"

//go:embed *.html
var FS embed.FS
