package loader

import "errors"

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCacheCheck
	PhaseShowingStale
	PhaseFetching
	PhaseShowingFresh
	PhaseShowingStaleWithError
	PhaseShowingError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCacheCheck:
		return "cache_check"
	case PhaseShowingStale:
		return "showing_stale"
	case PhaseFetching:
		return "fetching"
	case PhaseShowingFresh:
		return "showing_fresh"
	case PhaseShowingStaleWithError:
		return "showing_stale_with_error"
	case PhaseShowingError:
		return "showing_error"
	default:
		return "unknown"
	}
}

// State is what a screen renders from. Loading is the full-screen skeleton
// and is only ever set while nothing has been shown; Background is the
// non-blocking indicator shown over data.
type State struct {
	Phase      Phase
	Loading    bool
	Background bool
	Refreshing bool
	HasData    bool

	// Notice is the dismissible message shown over stale data after a
	// failed refresh.
	Notice string

	// Err is set only in PhaseShowingError.
	Err error
}

// Retriable reports whether the screen should offer a retry action.
func (s State) Retriable() bool { return s.Phase == PhaseShowingError }

// DefaultNotice is shown when a failure carries no message meant for users.
const DefaultNotice = "Couldn't refresh. Showing saved data."

// UserMessager is implemented by errors whose message may be shown verbatim.
type UserMessager interface {
	UserMessage() string
}

func noticeFor(err error) string {
	var um UserMessager
	if errors.As(err, &um) {
		if m := um.UserMessage(); m != "" {
			return m
		}
	}
	return DefaultNotice
}
