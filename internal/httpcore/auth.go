package httpcore

import "sync"

// Authenticator is the capability set shared by every auth variant
// (spec.md §4.5, §9's "model as a tagged variant with a small capability
// interface"). authorize mutates req and must be idempotent w.r.t. repeated
// calls on the same request. login refreshes credentials; interactive
// logins across the whole process are serialized by the caller
// (ClientContext.Login) via a shared global lock, never by the
// Authenticator itself, to avoid the
// holding-the-lock-across-perform_request deadlock called out in spec.md §9.
type Authenticator interface {
	Authorize(req *HttpRequest)
	Login(interactive bool) bool
	Logout()
}

// NoneAuthenticator is the no-op variant: authorize is a no-op, login always
// reports failure without side effects (spec.md §4.5).
type NoneAuthenticator struct{}

func (NoneAuthenticator) Authorize(*HttpRequest) {}
func (NoneAuthenticator) Login(bool) bool        { return false }
func (NoneAuthenticator) Logout()                {}

// lockedSlot is the common "internal mutex guards a credential slot"
// primitive each stateful authenticator embeds (spec.md §5).
type lockedSlot struct {
	mu sync.Mutex
}
