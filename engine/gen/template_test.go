package gen

import (
	"errors"
	"strings"
	"testing"

	"github.com/WessleyAI/wessley-fleet/engine/domain"
)

func TestTemplateParams(t *testing.T) {
	tpl := NewTemplates()
	tpl.MustRegister("risk", `Model: {{ .model_name }}
{{ if .details }}{{ .details | upper }}{{ end }}
{{ range .items }}- {{ .name }} {{ $.suffix }}{{ end }}
{{ with .extra }}{{ .inner }}{{ end }}`)
	got, ok := tpl.Params("risk")
	if !ok {
		t.Fatal("template not registered")
	}
	want := "details,extra,items,model_name,suffix"
	if strings.Join(got, ",") != want {
		t.Fatalf("params = %v, want %s", got, want)
	}
}

func TestRenderBindsParams(t *testing.T) {
	tpl := NewTemplates()
	tpl.MustRegister("cost", `Kryteria: {{ .criteria }}; max {{ .max }} {{ .names | join ", " }}`)
	out, err := tpl.Render("cost", Params{"criteria": "Klasy: C", "max": 5, "names": []string{"A", "B"}})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "Kryteria: Klasy: C; max 5 A, B" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderMissingParams(t *testing.T) {
	tpl := NewTemplates()
	tpl.MustRegister("synthesis", `{{ .cost_report }} {{ .risk_reports }} {{ .criteria }}`)
	_, err := tpl.Render("synthesis", Params{"criteria": "x"})
	var tbe *domain.TemplateBindingError
	if !errors.As(err, &tbe) {
		t.Fatalf("expected TemplateBindingError, got %v", err)
	}
	if strings.Join(tbe.Missing, ",") != "cost_report,risk_reports" {
		t.Fatalf("missing = %v", tbe.Missing)
	}
	if !errors.Is(err, domain.ErrTemplateBinding) {
		t.Fatal("must match ErrTemplateBinding")
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := NewTemplates().Render("nope", nil)
	if !errors.Is(err, domain.ErrTemplateBinding) || !errors.Is(err, domain.ErrUnknownTemplate) {
		t.Fatalf("unexpected %v", err)
	}
}

func TestRegisterParseError(t *testing.T) {
	if err := NewTemplates().Register("bad", "{{ .x "); err == nil {
		t.Fatal("expected parse error")
	}
}
