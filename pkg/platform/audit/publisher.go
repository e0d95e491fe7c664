package audit

import "context"

// SecurityPublisher emits events on the security event bus. Implementations
// must not block on I/O and must not fail the caller.
type SecurityPublisher interface {
	Emit(ctx context.Context, event SecurityEvent)
}
