// Package seeds embeds idempotent seed data.
package seeds

import "embed"

//go:embed *.sql
var Files embed.FS
