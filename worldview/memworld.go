package worldview

// MemWorld is a minimal in-memory World used by package tests across the
// render core; it is not meant for production use — a real host
// application backs World with its own ECS.
type MemWorld struct {
	Objects  []RenderObject
	Lights   []LightObject
	Selected map[EntityId]bool
	Valids   map[EntityId]bool
	Clock    Clocks
}

// NewMemWorld returns an empty world with its lookup maps initialized.
func NewMemWorld() *MemWorld {
	return &MemWorld{Selected: make(map[EntityId]bool), Valids: make(map[EntityId]bool)}
}

func (w *MemWorld) ViewEntities() []RenderObject { return w.Objects }
func (w *MemWorld) ViewLights() []LightObject    { return w.Lights }

func (w *MemWorld) IsSelected(e EntityId) bool { return w.Selected[e] }

func (w *MemWorld) SelectedEntities() []EntityId {
	out := make([]EntityId, 0, len(w.Selected))
	for e, sel := range w.Selected {
		if sel {
			out = append(out, e)
		}
	}
	return out
}

func (w *MemWorld) Valid(e EntityId) bool { return w.Valids[e] }
func (w *MemWorld) Clocks() Clocks        { return w.Clock }
