package resource

// PickerExtent reports the current picker image's dimensions, or 0, 0
// when no picker image exists yet. The Readback Service does not call it;
// it bounds-checks against the picker image it is handed.
func (m *Manager) PickerExtent() (uint32, uint32) {
	if m.picker == nil {
		return 0, 0
	}
	return m.picker.Width(), m.picker.Height()
}
