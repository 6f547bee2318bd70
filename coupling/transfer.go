package coupling

// fieldIndex resolves the scatter map of a field and the length a caller
// array must have
func (s *Session) fieldIndex(fieldID int, onParent bool) (*Field, []int, int, error) {
	if err := s.check(); err != nil {
		return nil, nil, 0, err
	}
	f := s.Field(fieldID)
	if f == nil {
		return nil, nil, 0, lookupErr("no field with id %d", fieldID)
	}
	a := s.meshes[f.MeshID].Adapter
	if onParent {
		return f, a.ParentIndex(f.Location), a.ParentSize(f.Location) * f.Dim, nil
	}
	return f, a.CompactIndex(f.Location), a.NumPoints(f.Location) * f.Dim, nil
}

// ExportValues copies values into the field buffer. Without onParent,
// values is already in the mesh's element order and is copied as one
// block; with onParent it is in native mesh order and is gathered through
// EltList.
func (s *Session) ExportValues(fieldID int, onParent bool, values []float64) error {
	f, index, need, err := s.fieldIndex(fieldID, onParent)
	if err != nil {
		return err
	}
	if len(values) < need {
		return configErr("export %s: %d values, want %d", f.Name, len(values), need)
	}
	if !onParent {
		copy(f.Values, values[:need])
		f.markDirty()
		return nil
	}
	d := f.Dim
	for i, k := range index {
		copy(f.Values[i*d:(i+1)*d], values[k*d:(k+1)*d])
	}
	f.markDirty()
	return nil
}

// ImportValues scatters the field buffer into values. Without onParent the
// buffer goes back to compact selection order through NewToOld, with
// onParent to native mesh order through EltList. Entries of values outside
// the selection are left as is.
func (s *Session) ImportValues(fieldID int, onParent bool, values []float64) error {
	f, index, need, err := s.fieldIndex(fieldID, onParent)
	if err != nil {
		return err
	}
	if len(values) < need {
		return configErr("import %s: %d values, want %d", f.Name, len(values), need)
	}
	scatter(f.Dim, index, f.Values, values)
	return nil
}

// ImportValuesAt imports a LinearTime field at fraction alpha of the
// interval between the last two receives.
func (s *Session) ImportValuesAt(fieldID int, onParent bool, alpha float64, values []float64) error {
	f, index, need, err := s.fieldIndex(fieldID, onParent)
	if err != nil {
		return err
	}
	if f.TimeDiscr != LinearTime {
		return configErr("import %s: %v field has no time interpolation", f.Name, f.TimeDiscr)
	}
	if f.previous == nil {
		return orderErr("import %s: nothing received yet", f.Name)
	}
	if len(values) < need {
		return configErr("import %s: %d values, want %d", f.Name, len(values), need)
	}
	blend := make([]float64, len(f.Values))
	for i, v := range f.Values {
		blend[i] = (1-alpha)*f.previous[i] + alpha*v
	}
	scatter(f.Dim, index, blend, values)
	return nil
}

func scatter(d int, index []int, buf, values []float64) {
	for i, k := range index {
		copy(values[k*d:(k+1)*d], buf[i*d:(i+1)*d])
	}
}
