package modules

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/relayai/relay-oss/pkg/domain"
)

// Template renders a text/template over its named inputs and emits the
// result as its single output. It is the prompt-formatting unit: upstream
// retrieval output and the root query typically meet here.
type Template struct {
	id     string
	inputs []domain.InputSpec
	tmpl   *template.Template
}

// NewTemplate parses the template text and declares the given inputs. The
// template references inputs as {{.name}}.
func NewTemplate(id, text string, inputs []domain.InputSpec) (*Template, error) {
	tmpl, err := template.New(id).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("module %q: parse template: %w", id, err)
	}
	return &Template{id: id, inputs: inputs, tmpl: tmpl}, nil
}

// ID implements domain.Module.
func (t *Template) ID() string { return t.id }

// InputSpecs implements domain.Module.
func (t *Template) InputSpecs() []domain.InputSpec { return t.inputs }

// OutputNames implements domain.Module.
func (t *Template) OutputNames() []string { return []string{domain.DefaultOutput} }

// Run implements domain.Module.
func (t *Template) Run(_ context.Context, inputs map[string]any) (map[string]any, error) {
	var sb strings.Builder
	if err := t.tmpl.Execute(&sb, inputs); err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	return domain.SingleOutput(sb.String()), nil
}
