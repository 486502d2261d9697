package application

import (
	"context"

	"github.com/mpriessner/ai-lab-assistent-v1/internal/domain"
)

// ProcedureBreaker decomposes free-text synthesis instructions into a
// structured procedure by delegating to a text-generation provider.
type ProcedureBreaker interface {
	Breakdown(ctx context.Context, instructions string) (*domain.Procedure, error)
}
