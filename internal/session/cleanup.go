package session

import "go.uber.org/multierr"

// CleanupAggregator collects closers registered over the life of a round
// and runs every one of them on the way out, aggregating failures instead
// of stopping at the first one — a round abort must still release every
// socket and scratch directory it opened.
type CleanupAggregator struct {
	fns []func() error
}

// Defer registers fn to run when Run is called, LIFO.
func (c *CleanupAggregator) Defer(fn func() error) {
	c.fns = append(c.fns, fn)
}

// Run executes every registered closer and returns their combined error,
// or nil if all succeeded.
func (c *CleanupAggregator) Run() error {
	var err error
	for i := len(c.fns) - 1; i >= 0; i-- {
		err = multierr.Append(err, c.fns[i]())
	}
	c.fns = nil
	return err
}
