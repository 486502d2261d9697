package application_test

import (
	"strings"
	"testing"

	"github.com/mpriessner/ai-lab-assistent-v1/internal/application"
	"github.com/mpriessner/ai-lab-assistent-v1/internal/domain"
)

func TestSystemContext(t *testing.T) {
	req := application.ChatRequest{
		Instructions: "Heat the mixture carefully until dissolved.",
		Procedure: &domain.Procedure{
			Steps:     []string{"Mix A and B", "Heat to 60C"},
			Glassware: []string{"250mL beaker", "thermometer"},
			Warnings:  []string{"Wear gloves"},
		},
		StepNumber: 2,
	}

	got := req.SystemContext()

	for _, want := range []string{
		`"Heat the mixture carefully until dissolved."`,
		"1. Mix A and B\n2. Heat to 60C",
		"Recommended Glassware: 250mL beaker, thermometer",
		"Recommended Materials: None specified",
		"Safety Warnings: Wear gloves",
		`currently on step 2: "Heat to 60C".`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("system context missing %q:\n%s", want, got)
		}
	}
}

func TestSystemContext_StepOutOfRange(t *testing.T) {
	req := application.ChatRequest{
		Instructions: "Heat the mixture carefully until dissolved.",
		Procedure:    &domain.Procedure{Steps: []string{"Mix A and B"}},
		StepNumber:   5,
	}

	if got := req.SystemContext(); strings.Contains(got, "currently on step") {
		t.Errorf("out-of-range step mentioned:\n%s", got)
	}
}

func TestSystemContext_EmptyProcedure(t *testing.T) {
	req := application.ChatRequest{
		Instructions: "Do something vague.",
		Procedure:    &domain.Procedure{},
		StepNumber:   0,
	}

	got := req.SystemContext()
	if !strings.Contains(got, "Recommended Glassware: None specified") {
		t.Errorf("empty lists not rendered:\n%s", got)
	}
}
