// Package directory holds the collaborator interfaces this subsystem consumes
// but does not own: group membership checks and user profile lookups. The
// Mongo-backed implementations read collections maintained by the course and
// user services.
package directory

import (
	"context"

	"github.com/nikspatil0120/eduplatform-sub001/internal/model"
)

// AuthZ resolves group membership and moderation rights. Groups are course
// chat rooms, so membership means enrollment and moderation means teaching.
type AuthZ interface {
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	IsModerator(ctx context.Context, groupID, userID string) (bool, error)
}

// UserDirectory resolves user records: display fields for sender snapshots,
// contact details and notification preferences for delivery routing.
type UserDirectory interface {
	Get(ctx context.Context, userID string) (*model.User, error)
}
