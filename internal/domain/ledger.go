package domain

// Ledger is the in-memory set of identity keys guarding against re-capturing
// a record that is already in the collection. It is a derived index: never
// persisted, rebuilt from the collection on load, and grow-only within a
// session.
type Ledger struct {
	seen map[Key]struct{}
}

// NewLedger derives a ledger from all records currently in the collection.
func NewLedger(c *Collection) *Ledger {
	l := &Ledger{seen: make(map[Key]struct{}, c.Len())}
	for _, r := range c.Records() {
		l.Add(r.Key())
	}
	return l
}

// Contains reports whether the key has already been captured.
func (l *Ledger) Contains(k Key) bool {
	_, ok := l.seen[k]
	return ok
}

// Add inserts the key. Adding an existing key is a no-op.
func (l *Ledger) Add(k Key) {
	l.seen[k] = struct{}{}
}

// Len returns the number of distinct keys captured.
func (l *Ledger) Len() int {
	return len(l.seen)
}
