package gen

import (
	"bytes"
	"fmt"
	"slices"
	"sort"
	"sync"
	"text/template"
	"text/template/parse"

	"github.com/Masterminds/sprig/v3"
	"github.com/WessleyAI/wessley-fleet/engine/domain"
)

// Params binds template parameters by name.
type Params map[string]any

type entry struct {
	tmpl   *template.Template
	params []string
}

// Templates is a registry of prompt templates keyed by ID.
type Templates struct {
	mu sync.RWMutex
	m  map[string]entry
}

// NewTemplates creates an empty registry.
func NewTemplates() *Templates {
	return &Templates{m: make(map[string]entry)}
}

// Register parses text under id, replacing any template with the same id.
func (t *Templates) Register(id, text string) error {
	tmpl, err := template.New(id).Option("missingkey=error").Funcs(sprig.FuncMap()).Parse(text)
	if err != nil {
		return fmt.Errorf("gen: parse template %q: %w", id, err)
	}
	t.mu.Lock()
	t.m[id] = entry{tmpl: tmpl, params: collectParams(tmpl)}
	t.mu.Unlock()
	return nil
}

// MustRegister is Register that panics on a parse error.
func (t *Templates) MustRegister(id, text string) {
	if err := t.Register(id, text); err != nil {
		panic(err)
	}
}

// Params lists the top-level parameters template id refers to, sorted.
func (t *Templates) Params(id string) ([]string, bool) {
	t.mu.RLock()
	e, ok := t.m[id]
	t.mu.RUnlock()
	return slices.Clone(e.params), ok
}

// Render binds params into template id. Every referenced parameter must be
// present, otherwise a *domain.TemplateBindingError lists the missing ones.
func (t *Templates) Render(id string, params Params) (string, error) {
	t.mu.RLock()
	e, ok := t.m[id]
	t.mu.RUnlock()
	if !ok {
		return "", &domain.TemplateBindingError{Template: id, Err: domain.ErrUnknownTemplate}
	}

	var missing []string
	for _, p := range e.params {
		if _, ok := params[p]; !ok {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return "", &domain.TemplateBindingError{Template: id, Missing: missing}
	}

	var buf bytes.Buffer
	if err := e.tmpl.Execute(&buf, map[string]any(params)); err != nil {
		return "", &domain.TemplateBindingError{Template: id, Err: err}
	}
	return buf.String(), nil
}

// collectParams walks every parse tree of tmpl and returns the fields read
// from the top-level dot, plus $.field references anywhere.
func collectParams(tmpl *template.Template) []string {
	seen := map[string]bool{}
	for _, tt := range tmpl.Templates() {
		if tt.Tree != nil {
			walk(tt.Root, true, seen)
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func walk(n parse.Node, topDot bool, seen map[string]bool) {
	switch n := n.(type) {
	case nil:
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, c := range n.Nodes {
			walk(c, topDot, seen)
		}
	case *parse.ActionNode:
		walk(n.Pipe, topDot, seen)
	case *parse.PipeNode:
		if n == nil {
			return
		}
		for _, c := range n.Cmds {
			walk(c, topDot, seen)
		}
	case *parse.CommandNode:
		for _, a := range n.Args {
			walk(a, topDot, seen)
		}
	case *parse.ChainNode:
		walk(n.Node, topDot, seen)
	case *parse.FieldNode:
		if topDot && len(n.Ident) > 0 {
			seen[n.Ident[0]] = true
		}
	case *parse.VariableNode:
		if len(n.Ident) > 1 && n.Ident[0] == "$" {
			seen[n.Ident[1]] = true
		}
	case *parse.IfNode:
		walk(n.Pipe, topDot, seen)
		walk(n.List, topDot, seen)
		walk(n.ElseList, topDot, seen)
	case *parse.RangeNode:
		walk(n.Pipe, topDot, seen)
		walk(n.List, false, seen)
		walk(n.ElseList, topDot, seen)
	case *parse.WithNode:
		walk(n.Pipe, topDot, seen)
		walk(n.List, false, seen)
		walk(n.ElseList, topDot, seen)
	case *parse.TemplateNode:
		walk(n.Pipe, topDot, seen)
	}
}
