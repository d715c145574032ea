package refresh

// State is the refresh loop's position in its cycle.
type State int32

const (
	Idle State = iota
	Fetching
	Applying
	Skipping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Applying:
		return "applying"
	case Skipping:
		return "skipping"
	default:
		return "unknown"
	}
}
