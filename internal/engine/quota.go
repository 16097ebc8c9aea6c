package engine

// DefaultPropagationLimit is the default maximum number of events one Drain
// may process.
const DefaultPropagationLimit = 10000

// propagationBudget counts events processed by one Drain and stops the
// drain once the limit is passed. Change notifications settle on their own;
// the budget guards against hosts or loaders that keep posting work faster
// than it is consumed.
type propagationBudget struct {
	limit   int
	current int
}

func newPropagationBudget(limit int) *propagationBudget {
	return &propagationBudget{limit: limit}
}

// Check counts one event. It returns an error once the count exceeds the
// limit; a non-positive limit disables the check.
func (b *propagationBudget) Check(pending int) error {
	b.current++
	if b.limit > 0 && b.current > b.limit {
		return NewPropagationLimitError(b.current, b.limit, pending)
	}
	return nil
}

// Current returns the number of events counted.
func (b *propagationBudget) Current() int {
	return b.current
}
