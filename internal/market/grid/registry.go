package grid

// Registry agrupa os grids por símbolo. É montado uma vez na inicialização e
// injetado no driver e nos leitores; não muda depois disso.
type Registry struct {
	grids   map[string]*Grid
	symbols []string
}

func NewRegistry(grids ...*Grid) *Registry {
	r := &Registry{grids: make(map[string]*Grid, len(grids))}
	for _, g := range grids {
		if _, dup := r.grids[g.Symbol()]; dup {
			continue
		}
		r.grids[g.Symbol()] = g
		r.symbols = append(r.symbols, g.Symbol())
	}
	return r
}

func (r *Registry) Get(symbol string) (*Grid, bool) {
	g, ok := r.grids[symbol]
	return g, ok
}

func (r *Registry) Symbols() []string {
	out := make([]string, len(r.symbols))
	copy(out, r.symbols)
	return out
}

func (r *Registry) All() []*Grid {
	out := make([]*Grid, 0, len(r.symbols))
	for _, s := range r.symbols {
		out = append(out, r.grids[s])
	}
	return out
}
