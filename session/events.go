package session

// Progress is one immutable progress event emitted by an analysis run.
// Percent is the fraction of completed stages in [0,1]; DataType is set
// only on events announcing that an artifact category now has data
// available (summary, vocabulary, questions, flashcards, grammar).
type Progress struct {
	Message    string  `json:"message"`
	Percent    float64 `json:"percent"`
	Step       int     `json:"step"`
	TotalSteps int     `json:"total_steps"`
	DataType   string  `json:"data_type,omitempty"`
	Failed     bool    `json:"failed,omitempty"`
}

// Terminal reports whether this is the run's final event, either the
// completion event or the abort emitted when the backend is unreachable.
func (p Progress) Terminal() bool {
	return p.Failed || p.Percent >= 1
}

// Observer receives progress events. It is invoked from the analysis
// goroutine; implementations that touch UI state must hand the event off
// to their own loop instead of mutating shared state directly.
type Observer func(Progress)

// NewEventChannel returns an observer that forwards events into a bounded
// channel. Artifact-ready and terminal events are always delivered;
// intermediate chatter is dropped when the consumer lags.
func NewEventChannel(size int) (Observer, <-chan Progress) {
	ch := make(chan Progress, size)
	obs := func(p Progress) {
		if p.Terminal() || p.DataType != "" {
			ch <- p
			return
		}
		select {
		case ch <- p:
		default:
		}
	}
	return obs, ch
}
