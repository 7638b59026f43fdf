package bugtracker

import (
	"context"
)

// Client is the consumed bug tracker interface. VerifyEmail distinguishes a
// permanent "no such user" answer (sdk.ErrNoSuchTrackerUser) from a transient
// tracker fault (sdk.ErrServiceUnavailable), callers must never conflate the
// two.
type Client interface {
	VerifyEmail(ctx context.Context, email string) error

	// ReassignDefaultOwner changes the default assignee of the tracker
	// component for given package on given collection. Best effort, callers
	// log failures and carry on.
	ReassignDefaultOwner(ctx context.Context, component, collection, newEmail string) error
}
