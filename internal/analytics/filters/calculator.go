package filters

import (
	"context"
	"errors"
	"fmt"

	"fieldops-workers/internal/models"
)

const (
	// DefaultPartNumber is the Premier Plus SKU assumed when an order's filters
	// could not be calculated.
	DefaultPartNumber = "PCP-2-1"
	FallbackSeverity  = 5
	FallbackMessage   = "Filter calculation failed, assuming standard filters"
)

var ErrNoResult = errors.New("filter calculator returned no result")

// CalcWarning is one filter line reported by the calculator. Quantity is optional;
// zero means the line stands for a single unit.
type CalcWarning struct {
	PartNumber string  `json:"partNumber"`
	Severity   float64 `json:"severity"`
	Quantity   int     `json:"quantity,omitempty"`
	Message    string  `json:"message,omitempty"`
}

// Units is the number of filters this line contributes to its aggregate.
func (w CalcWarning) Units() int {
	if w.Quantity > 0 {
		return w.Quantity
	}
	return 1
}

// Result is what the per-order filter calculator returns.
type Result struct {
	GasFilters    int           `json:"gasFilters"`
	DieselFilters int           `json:"dieselFilters"`
	Warnings      []CalcWarning `json:"warnings"`
}

// Calculator computes the filters one work order needs. Implementations must be
// idempotent; they may be called concurrently for different orders.
type Calculator interface {
	Calculate(ctx context.Context, order models.WorkOrder) (*Result, error)
}

type CalculatorFunc func(ctx context.Context, order models.WorkOrder) (*Result, error)

func (f CalculatorFunc) Calculate(ctx context.Context, order models.WorkOrder) (*Result, error) {
	return f(ctx, order)
}

// Fallback is substituted for a failed calculation: one standard filter at a
// medium severity.
func Fallback(partNumber string) Result {
	if partNumber == "" {
		partNumber = DefaultPartNumber
	}
	return Result{
		Warnings: []CalcWarning{{
			PartNumber: partNumber,
			Severity:   FallbackSeverity,
			Message:    FallbackMessage,
		}},
	}
}

// safeCalculate turns panics and nil results into errors.
func safeCalculate(ctx context.Context, calc Calculator, order models.WorkOrder) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("filter calculator panicked: %v", r)
		}
	}()
	res, err = calc.Calculate(ctx, order)
	if err == nil && res == nil {
		err = ErrNoResult
	}
	return res, err
}
