package domain

const (
	EventNameStateChanged    = "state.changed"
	EventNameDrawCompleted   = "draw.completed"
	EventNameHistoryAppended = "history.appended"
)

// EventStateChanged fires after any operation that touches a persisted
// field. The saver re-reads the live snapshot, so the event itself carries
// only the reason for logging.
type EventStateChanged struct {
	Reason string
}

func (EventStateChanged) Name() string { return EventNameStateChanged }

// EventDrawCompleted fires at most once per distinct winner set, so UI
// consumers can trigger confetti and sound without double-firing on
// re-render.
type EventDrawCompleted struct {
	Winners []Participant
	// Key is the serialized identity of the winner set the event is for.
	Key string
}

func (EventDrawCompleted) Name() string { return EventNameDrawCompleted }

type EventHistoryAppended struct {
	Record HistoryRecord
}

func (EventHistoryAppended) Name() string { return EventNameHistoryAppended }
