package cell

// Bag maps names to their current cells. Keys are the union of all atom
// names across all stages plus caller-supplied input names; insertion order
// carries no meaning.
type Bag map[string]Cell

// Clone returns a shallow copy of the bag. Cells are immutable values, so a
// clone is a safe observation snapshot.
func (b Bag) Clone() Bag {
	out := make(Bag, len(b))
	for name, c := range b {
		out[name] = c
	}
	return out
}

// Lookup returns the cell for name. A missing key classifies as Absent.
func (b Bag) Lookup(name string) Cell {
	if c, ok := b[name]; ok {
		return c
	}
	return NewAbsent()
}

// Values returns the best-known value of every cell that has one.
func (b Bag) Values() map[string]any {
	out := make(map[string]any)
	for name, c := range b {
		if v, ok := c.BestValue(); ok {
			out[name] = v
		}
	}
	return out
}
