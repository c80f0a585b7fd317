package domain

import "sync"

// SymbolRegistry tracks the symbols the engine accepts orders for.
// The set is seeded from configuration at startup; orders for symbols
// outside the set are rejected before they reach the matching engine.
type SymbolRegistry struct {
	mu      sync.RWMutex
	symbols map[string]bool
}

// NewSymbolRegistry creates a registry seeded with the given symbols.
func NewSymbolRegistry(symbols ...string) *SymbolRegistry {
	r := &SymbolRegistry{symbols: make(map[string]bool, len(symbols))}
	for _, s := range symbols {
		r.symbols[s] = true
	}
	return r
}

// Register adds a symbol to the registry. Safe for concurrent use.
func (r *SymbolRegistry) Register(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.symbols[symbol] = true
}

// Exists returns true if the symbol is traded. Safe for concurrent use.
func (r *SymbolRegistry) Exists(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.symbols[symbol]
}

// List returns the registered symbols in unspecified order.
func (r *SymbolRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.symbols))
	for s := range r.symbols {
		out = append(out, s)
	}
	return out
}
