package diag

// Collector accumulates diagnostics in report order.
//
// Thread-safety: a Collector is owned by one Transpile call and is not safe for
// concurrent use.
type Collector struct {
	items []Diagnostic
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add appends a diagnostic. Nil is ignored.
func (c *Collector) Add(d *Diagnostic) {
	if d == nil {
		return
	}
	c.items = append(c.items, *d)
}

// Items returns a copy of the collected diagnostics in report order.
// Returns an empty slice (not nil) when nothing was reported.
func (c *Collector) Items() []Diagnostic {
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of collected diagnostics.
func (c *Collector) Len() int {
	return len(c.items)
}

// Count returns how many diagnostics of kind were collected.
func (c *Collector) Count(kind Kind) int {
	n := 0
	for _, d := range c.items {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// HasErrors reports whether any error-severity diagnostic was collected.
func (c *Collector) HasErrors() bool {
	for _, d := range c.items {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Mark returns a position that Since can later use to inspect what was added.
func (c *Collector) Mark() int {
	return len(c.items)
}

// Since returns the diagnostics added after mark.
func (c *Collector) Since(mark int) []Diagnostic {
	if mark >= len(c.items) {
		return nil
	}
	return c.items[mark:]
}
