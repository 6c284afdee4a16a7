package state

var manualClockKey = []byte("clock/manual")

// ManualClockTime returns the last persisted manual clock reading. The
// boolean is false on a node that never ran on a manual clock.
func (m *Manager) ManualClockTime() (int64, bool, error) {
	var ts uint64
	ok, err := m.KVGet(manualClockKey, &ts)
	if err != nil || !ok {
		return 0, ok, err
	}
	return int64(ts), true, nil
}

// SetManualClockTime persists the manual clock reading.
func (m *Manager) SetManualClockTime(ts int64) error {
	return m.KVPut(manualClockKey, unixToStored(ts))
}
