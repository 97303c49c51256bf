package cliui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Output formats accepted by --output.
const (
	FormatPretty = "pretty"
	FormatJSON   = "json"
	FormatYAML   = "yaml"
)

// Formats lists the accepted --output values.
var Formats = []string{FormatPretty, FormatJSON, FormatYAML}

// ValidFormat reports whether f is one of Formats.
func ValidFormat(f string) error {
	for _, known := range Formats {
		if f == known {
			return nil
		}
	}
	return fmt.Errorf("unknown output format %q (expected one of: %s)", f, strings.Join(Formats, ", "))
}

// Encode writes v to w as indented JSON or YAML. Values are round-tripped
// through JSON first so json tags and json.RawMessage fields are honored in
// the YAML output too.
func Encode(w io.Writer, format string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}

	switch format {
	case FormatJSON:
		_, err := fmt.Fprintln(w, string(raw))
		return err

	case FormatYAML:
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		return enc.Close()

	default:
		return fmt.Errorf("cannot encode %q output", format)
	}
}
