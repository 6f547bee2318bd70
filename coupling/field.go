package coupling

// Field is a value buffer of Dim components per located point of a mesh,
// exchanged in one direction.
type Field struct {
	ID        int
	Name      string
	MeshID    int
	Dim       int
	Location  Location
	TimeDiscr TimeDiscretization
	Direction Direction

	// Values holds NumPoints*Dim entries in engine order
	Values []float64

	previous []float64
	handle   *ParallelMesh
	dirty    bool
	version  uint64
}

func (f *Field) NumPoints() int { return len(f.Values) / f.Dim }

// Dirty reports whether values were exported since the last send
func (f *Field) Dirty() bool { return f.dirty }

// Version counts the updates of the buffer, by export or receive
func (f *Field) Version() uint64 { return f.version }

// Previous is the buffer before the last receive, for LinearTime fields
func (f *Field) Previous() []float64 { return f.previous }

func (f *Field) Handle() *ParallelMesh { return f.handle }

func (f *Field) markDirty() {
	f.dirty = true
	f.version++
}

// receive overwrites the buffer, keeping the old values for LinearTime
func (f *Field) receive(values []float64) {
	if f.TimeDiscr == LinearTime {
		if f.previous == nil {
			f.previous = make([]float64, len(f.Values))
			copy(f.previous, values)
		} else {
			copy(f.previous, f.Values)
		}
	}
	copy(f.Values, values)
	f.version++
}

func (f *Field) key() pointSetKey {
	return pointSetKey{mesh: f.handle.Name(), loc: f.Location}
}
