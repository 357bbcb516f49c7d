package forge

// Phase identifies which stage of an imaging operation a progress event
// belongs to. Within a phase, BytesDone is monotonically non-decreasing.
type Phase int

const (
	PhaseDecompressing Phase = iota
	PhaseWriting
	PhaseReading
	PhaseVerifying
)

func (p Phase) String() string {
	switch p {
	case PhaseDecompressing:
		return "Decompressing"
	case PhaseWriting:
		return "Writing"
	case PhaseReading:
		return "Reading"
	case PhaseVerifying:
		return "Verifying"
	default:
		return "Unknown"
	}
}

// ProgressEvent is one progress update, emitted once per chunk. TotalBytes
// is zero when the total is unknown in advance (streaming decompression);
// consumers then render a rate rather than a percentage.
type ProgressEvent struct {
	Phase      Phase
	BytesDone  int64
	TotalBytes int64
}

// ProgressFunc receives progress events. The engine owns emission cadence;
// the UI layer owns rendering. Implementations should be cheap, they are
// called once per chunk.
type ProgressFunc func(ProgressEvent)

// Report invokes the callback if one is set. A nil ProgressFunc is valid
// and discards all events.
func (f ProgressFunc) Report(phase Phase, done, total int64) {
	if f != nil {
		f(ProgressEvent{Phase: phase, BytesDone: done, TotalBytes: total})
	}
}
