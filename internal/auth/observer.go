// ABOUTME: Hook interface for reporting authentication outcomes to metrics
// ABOUTME: A nil Observer in middleware config is replaced by a no-op

package auth

// Token check outcomes reported to Observer.TokenChecked besides the
// TokenErrorKind names.
const (
	OutcomeValid         = "valid"
	OutcomeNoToken       = "absent"
	OutcomeUnknownUser   = "unknown_subject"
	OutcomeLookupFailure = "lookup_error"
)

// Observer receives authentication and authorization outcomes.
// Implementations must be safe for concurrent use.
type Observer interface {
	TokenChecked(outcome string)
	Decided(d Decision)
}

type nopObserver struct{}

func (nopObserver) TokenChecked(string) {}
func (nopObserver) Decided(Decision)    {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
