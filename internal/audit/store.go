package audit

import "context"

// Store persists audit events. Implementations must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAdmin(ctx context.Context, adminID string) ([]Event, error)
}
