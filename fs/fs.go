// Package appfs embeds static assets shipped with the binaries.
package appfs

import "embed"

//go:embed migrations/*.sql
var FS embed.FS
