// Package filters turns per-order filter calculations into purchasable
// quantities. The per-order calculator is an external dependency; its failures
// are absorbed here and replaced with a standard-filter fallback.
package filters

import (
	"context"

	"fieldops-workers/internal/analytics/fueltype"
	"fieldops-workers/internal/models"

	"golang.org/x/sync/errgroup"
)

// OrderResult is the outcome of calculating one order. When Fallback is set,
// Result holds the substituted fallback and Err the calculator's failure.
type OrderResult struct {
	Order    models.WorkOrder
	Fuel     fueltype.FuelTypes
	Result   Result
	Fallback bool
	Err      error
}

type Outcome struct {
	Needs  []FilterNeed
	Orders []OrderResult
}

// Totals are the calculator's reported gas and diesel filter counts summed
// over all orders.
type Totals struct {
	GasFilters    int `json:"gasFilters"`
	DieselFilters int `json:"dieselFilters"`
}

func (o Outcome) Totals() Totals {
	var t Totals
	for _, r := range o.Orders {
		t.GasFilters += r.Result.GasFilters
		t.DieselFilters += r.Result.DieselFilters
	}
	return t
}

// FallbackCount is the number of orders whose calculation failed.
func (o Outcome) FallbackCount() int {
	n := 0
	for _, r := range o.Orders {
		if r.Fallback {
			n++
		}
	}
	return n
}

type Aggregator struct {
	calc         Calculator
	parallelism  int
	fallbackPart string
}

type Option func(*Aggregator)

// WithParallelism bounds concurrent calculator calls. Values below 2 run
// sequentially.
func WithParallelism(n int) Option {
	return func(a *Aggregator) { a.parallelism = n }
}

// WithFallbackPart overrides the part number assumed for failed calculations.
func WithFallbackPart(pn string) Option {
	return func(a *Aggregator) {
		if pn != "" {
			a.fallbackPart = pn
		}
	}
}

func NewAggregator(calc Calculator, opts ...Option) *Aggregator {
	a := &Aggregator{calc: calc, parallelism: 1, fallbackPart: DefaultPartNumber}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) Run(ctx context.Context, orders []models.WorkOrder) Outcome {
	results := a.Evaluate(ctx, orders)
	return Outcome{Needs: Aggregate(results), Orders: results}
}

// Evaluate calls the calculator once per order. Results are indexed like the
// input regardless of parallelism.
func (a *Aggregator) Evaluate(ctx context.Context, orders []models.WorkOrder) []OrderResult {
	results := make([]OrderResult, len(orders))
	if a.parallelism < 2 {
		for i, o := range orders {
			results[i] = a.evaluate(ctx, o)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(a.parallelism)
	for i, o := range orders {
		g.Go(func() error {
			results[i] = a.evaluate(ctx, o)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (a *Aggregator) evaluate(ctx context.Context, order models.WorkOrder) OrderResult {
	r := OrderResult{Order: order, Fuel: fueltype.Detect(order)}
	if a.calc == nil {
		r.Result, r.Fallback, r.Err = Fallback(a.fallbackPart), true, ErrNoResult
		return r
	}
	res, err := safeCalculate(ctx, a.calc, order)
	if err != nil {
		r.Result, r.Fallback, r.Err = Fallback(a.fallbackPart), true, err
		return r
	}
	r.Result = *res
	return r
}

type needKey struct {
	partNumber string
	filterType FilterType
}

// Aggregate sums calculator lines by (part number, filter type). Needs are
// returned in first-seen order; lines without a part number are not purchasable
// and are skipped.
func Aggregate(results []OrderResult) []FilterNeed {
	var needs []FilterNeed
	index := make(map[needKey]int)
	seen := make(map[needKey]map[string]bool)

	for _, r := range results {
		store := r.Order.DisplayName()
		types := make([]FilterType, len(r.Result.Warnings))
		for i, w := range r.Result.Warnings {
			types[i] = ClassifyPart(w.PartNumber, r.Fuel.HasDEF)
		}
		units := lineUnits(r.Result, types)

		for j, w := range r.Result.Warnings {
			if w.PartNumber == "" {
				continue
			}
			key := needKey{w.PartNumber, types[j]}
			i, ok := index[key]
			if !ok {
				i = len(needs)
				index[key] = i
				seen[key] = make(map[string]bool)
				needs = append(needs, FilterNeed{PartNumber: key.partNumber, FilterType: key.filterType, Stores: []string{}})
			}
			needs[i].Quantity += units[j]
			if store != "" && !seen[key][store] {
				seen[key][store] = true
				needs[i].Stores = append(needs[i].Stores, store)
			}
		}
	}

	out := make([]FilterNeed, 0, len(needs))
	for _, n := range needs {
		if len(n.Stores) == 0 {
			continue
		}
		n.BoxesNeeded = n.Boxes()
		out = append(out, n)
	}
	return out
}

// lineUnits returns the units each calculator line contributes. A line with an
// explicit quantity keeps it and any other line counts once. When the result's
// gas or diesel count exceeds what the lines of that class already account
// for, the first unquantified line of the class takes the difference, so a
// single line plus a count of 4 yields 4 units.
func lineUnits(res Result, types []FilterType) []int {
	const gas, diesel = 0, 1
	units := make([]int, len(res.Warnings))
	reported := [2]int{res.GasFilters, res.DieselFilters}
	var covered [2]int
	first := [2]int{-1, -1}

	for i, w := range res.Warnings {
		if w.PartNumber == "" {
			continue
		}
		class := gas
		if types[i].Diesel() {
			class = diesel
		}
		units[i] = w.Units()
		covered[class] += units[i]
		if w.Quantity <= 0 && first[class] < 0 {
			first[class] = i
		}
	}
	for class, i := range first {
		if i >= 0 && reported[class] > covered[class] {
			units[i] += reported[class] - covered[class]
		}
	}
	return units
}
