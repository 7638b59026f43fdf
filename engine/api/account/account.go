package account

import (
	"context"

	"github.com/fedora-infra/packagedb-sub000/sdk"
)

// Directory resolves principals against the account system. Group membership
// is a point-in-time fact, implementations must not cache across requests.
type Directory interface {
	// ResolveUser returns the account for given username, sdk.ErrNotFound if
	// the username is unknown and sdk.ErrServiceUnavailable if the directory
	// cannot be reached.
	ResolveUser(ctx context.Context, username string) (*sdk.AccountUser, error)

	// GroupMemberships returns the names of the groups given username belongs to.
	GroupMemberships(ctx context.Context, username string) ([]string, error)

	// BugzillaEmail returns the bug tracker compatible email of given username.
	BugzillaEmail(ctx context.Context, username string) (string, error)
}

type contextKey int

const contextActor contextKey = iota

// ContextWithActor stores the resolved acting user in the context.
func ContextWithActor(ctx context.Context, u *sdk.AccountUser) context.Context {
	return context.WithValue(ctx, contextActor, u)
}

// Actor returns the acting user stored in the context, nil if none.
func Actor(ctx context.Context) *sdk.AccountUser {
	u, _ := ctx.Value(contextActor).(*sdk.AccountUser)
	return u
}
