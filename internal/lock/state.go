package lock

// State of a lock acquisition.
//
//	Idle -> Retrying -> Succeeded | GaveUp
//	Idle | Retrying -> Failed   (terminal open error, never retried)
type State int

const (
	Idle State = iota
	Retrying
	Succeeded
	GaveUp
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Retrying:
		return "retrying"
	case Succeeded:
		return "succeeded"
	case GaveUp:
		return "gave-up"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible
func (s State) Terminal() bool {
	return s == Succeeded || s == GaveUp || s == Failed
}
