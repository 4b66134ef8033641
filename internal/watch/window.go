package watch

// idWindow is a bounded set of recently seen item IDs. Adjacent polls overlap
// at the boundary, so the window only needs to remember enough IDs to cover
// that overlap; memory stays constant regardless of session length.
type idWindow struct {
	max   int
	ids   map[int64]struct{}
	order []int64 // insertion order, oldest first
}

func newIDWindow(max int) *idWindow {
	if max < 1 {
		max = 1
	}
	return &idWindow{
		max: max,
		ids: make(map[int64]struct{}, max),
	}
}

func (w *idWindow) Contains(id int64) bool {
	_, ok := w.ids[id]
	return ok
}

// Add inserts id, evicting the oldest entry once the window is full.
func (w *idWindow) Add(id int64) {
	if _, ok := w.ids[id]; ok {
		return
	}
	if len(w.order) >= w.max {
		oldest := w.order[0]
		w.order = w.order[1:]
		delete(w.ids, oldest)
	}
	w.ids[id] = struct{}{}
	w.order = append(w.order, id)
}

func (w *idWindow) Len() int {
	return len(w.order)
}
