package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/mpriessner/ai-lab-assistent-v1/internal/domain"
)

// ChatRequest carries everything a chat provider needs for one reply: the
// original instructions, the structured breakdown, the 1-based step the user
// is on (0 when none), the prior conversation and the new query.
type ChatRequest struct {
	Instructions string
	Procedure    *domain.Procedure
	StepNumber   int
	History      domain.History
	Query        string
}

// ChatResponder produces one assistant reply for a chat request.
type ChatResponder interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// SystemContext renders the per-call system message: the original
// instructions, the numbered step list, the three recommendation lists and,
// when the step pointer resolves to a valid step, a sentence quoting that
// step's text.
func (r ChatRequest) SystemContext() string {
	var b strings.Builder

	b.WriteString("You are LabAssist, an AI assistant specialized in chemical synthesis procedures.\n")
	b.WriteString("You are assisting a chemist who is following a set of AI-generated instructions.\n")
	b.WriteString("The original instructions provided by the user were:\n")
	fmt.Fprintf(&b, "%q\n\n", r.Instructions)

	b.WriteString("The AI-generated breakdown for this synthesis is as follows:\n")
	b.WriteString("Detailed Steps:\n")
	for i, step := range r.Procedure.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Recommended Glassware: %s\n", joinOrNone(r.Procedure.Glassware))
	fmt.Fprintf(&b, "Recommended Materials: %s\n", joinOrNone(r.Procedure.Materials))
	fmt.Fprintf(&b, "Safety Warnings: %s\n", joinOrNone(r.Procedure.Warnings))

	if r.StepNumber >= 1 && r.StepNumber <= len(r.Procedure.Steps) {
		fmt.Fprintf(&b, "\nThe user is likely asking about or is currently on step %d: %q.\n",
			r.StepNumber, r.Procedure.Steps[r.StepNumber-1])
	}

	b.WriteString("\nYour role is to answer the user's questions clearly and very concisely. ")
	b.WriteString("Provide only the most important details, clarifications, or explanations related to the synthesis. ")
	b.WriteString("Use the provided context. If the question is outside the scope of this specific synthesis, ")
	b.WriteString("politely state that you can only assist with the given procedure. ")
	b.WriteString("Keep your answers short and to the point.")

	return b.String()
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None specified"
	}
	return strings.Join(items, ", ")
}
