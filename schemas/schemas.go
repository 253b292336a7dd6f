// Package schemas embeds the JSON schemas of the station protocol.
package schemas

import "embed"

//go:embed *.schema.json
var FS embed.FS

const (
	Command = "command.schema.json"
	Result  = "result.schema.json"
	Welcome = "welcome.schema.json"
)
