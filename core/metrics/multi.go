package metrics

// MultiSink fans records out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDispatch forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordDispatch(rec DispatchRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordDispatch(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordVote forwards vote records to sinks that support them.
func (m *MultiSink) RecordVote(rec VoteRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(VoteRecorder); ok {
			if err := r.RecordVote(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordSync forwards sync records to sinks that support them.
func (m *MultiSink) RecordSync(rec SyncRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(SyncRecorder); ok {
			if err := r.RecordSync(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordMachineState forwards telemetry samples to sinks that support them.
func (m *MultiSink) RecordMachineState(rec MachineStateRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(MachineStateRecorder); ok {
			if err := r.RecordMachineState(rec); err != nil {
				return err
			}
		}
	}
	return nil
}
