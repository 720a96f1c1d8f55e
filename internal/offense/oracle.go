package offense

// StaticOracle resolves category tags against the built-in offense tables.
// It satisfies the query compiler's Oracle interface; the compiler treats a
// nil oracle as an empty resolution, so wiring one in is always optional.
type StaticOracle struct{}

// NewStaticOracle returns an oracle over the built-in tables.
func NewStaticOracle() *StaticOracle {
	return &StaticOracle{}
}

// OffensesFor returns the literal offense descriptions for a category tag.
// Unknown tags resolve to nil, never an error.
func (o *StaticOracle) OffensesFor(tag string) []string {
	return OffensesFor(tag)
}
