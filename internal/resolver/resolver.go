// Package resolver substitutes template placeholders with record data
package resolver

import (
	"regexp"
	"strings"

	"github.com/ticketpress/sheet-engine/pkg/ticketformat"
)

// placeholderPattern matches {{name}}, {{source.field}} and {{.field}},
// tolerating surrounding whitespace inside the braces
var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)

// Resolve substitutes every placeholder in template using the record and the
// project's configured sources. Three forms are supported:
//
//	{{name}}          direct field lookup
//	{{source.field}}  field from a specifically named source
//	{{.field}}        shorthand, valid only with exactly one csv source
//
// Missing keys resolve to an empty string. Resolve is a pure string
// transform with no side effects.
func Resolve(template string, record ticketformat.Record, sources []ticketformat.DataSource) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		token := placeholderPattern.FindStringSubmatch(match)[1]
		return resolveToken(token, record, sources)
	})
}

func resolveToken(token string, record ticketformat.Record, sources []ticketformat.DataSource) string {
	if token == "" {
		return ""
	}

	// {{.field}}: rewrite against the sole csv source, if there is one
	if strings.HasPrefix(token, ".") {
		name, ok := soleCSVSource(sources)
		if !ok {
			return ""
		}
		token = name + token
	}

	if value, ok := record[token]; ok {
		return value
	}

	// {{source.field}} may be stored unqualified in the record when the
	// generator flattened a single source
	if source, field, ok := strings.Cut(token, "."); ok {
		if !sourceExists(sources, source) {
			return ""
		}
		if value, ok := record[field]; ok {
			return value
		}
	}

	return ""
}

func soleCSVSource(sources []ticketformat.DataSource) (string, bool) {
	name := ""
	for _, src := range sources {
		if src.Kind != "csv" {
			continue
		}
		if name != "" {
			return "", false
		}
		name = src.Name
	}
	return name, name != ""
}

func sourceExists(sources []ticketformat.DataSource, name string) bool {
	for _, src := range sources {
		if src.Name == name {
			return true
		}
	}
	return false
}
