package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatTemplate Format = "template"
)

const templatePrefix = "template="

// Spec is a parsed --output value.
type Spec struct {
	Format   Format
	Template string
}

// Parse accepts table, json, yaml or template=<go template>. An empty value is table.
func Parse(value string) (Spec, error) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return Spec{Format: FormatTable}, nil
	case strings.HasPrefix(value, templatePrefix):
		tmpl := strings.TrimPrefix(value, templatePrefix)
		if tmpl == "" {
			return Spec{}, fmt.Errorf("template output requires a template, e.g. %s'{{.FoodName}}'", templatePrefix)
		}
		return Spec{Format: FormatTemplate, Template: tmpl}, nil
	}
	switch f := Format(strings.ToLower(value)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return Spec{Format: f}, nil
	default:
		return Spec{}, fmt.Errorf("unknown output format: %s", value)
	}
}

func WriteObject(w io.Writer, spec Spec, obj any) error {
	switch spec.Format {
	case FormatJSON:
		data, err := json.MarshalIndent(obj, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatYAML:
		data, err := yaml.Marshal(obj)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(w, string(data))
		return err
	case FormatTemplate:
		return writeTemplate(w, spec.Template, obj)
	case FormatTable:
		return fmt.Errorf("table format requires a specific formatter")
	default:
		return fmt.Errorf("unknown output format: %s", spec.Format)
	}
}

// writeTemplate executes tmpl with sprig functions. A trailing newline is
// added when the template does not end with one.
func writeTemplate(w io.Writer, tmpl string, obj any) error {
	t, err := template.New("output").Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return fmt.Errorf("invalid output template: %w", err)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, obj); err != nil {
		return fmt.Errorf("failed to render output template: %w", err)
	}
	out := sb.String()
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	_, err = io.WriteString(w, out)
	return err
}
