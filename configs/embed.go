// Package configs holds configuration templates embedded at build time,
// so they ship inside the binary regardless of how it was installed.
package configs

import _ "embed"

// ConfigTemplate is the annotated starter configuration written by
// `ragline init` as ragline.yaml in the working directory.
//
//go:embed ragline.example.yaml
var ConfigTemplate string
