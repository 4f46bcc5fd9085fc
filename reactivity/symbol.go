package reactivity

// Symbol is a unique property key. Two symbols are equal only if they are
// the same pointer.
type Symbol struct {
	description string
	builtin     bool
}

func NewSymbol(description string) *Symbol {
	return &Symbol{description: description}
}

func (s *Symbol) String() string {
	return "Symbol(" + s.description + ")"
}

// Well known symbols. Reads and membership checks of these keys are never
// tracked.
var (
	SymbolIterator    = &Symbol{description: "Symbol.iterator", builtin: true}
	SymbolToStringTag = &Symbol{description: "Symbol.toStringTag", builtin: true}
	SymbolHasInstance = &Symbol{description: "Symbol.hasInstance", builtin: true}
	SymbolToPrimitive = &Symbol{description: "Symbol.toPrimitive", builtin: true}
)

func isBuiltinSymbol(key any) bool {
	s, ok := key.(*Symbol)
	return ok && s.builtin
}
