// Package assets provides test fixtures: rows inserted through the real daos
// and in-memory fakes for the consumed external services.
package assets

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/go-gorp/gorp"
	"github.com/stretchr/testify/require"

	"github.com/fedora-infra/packagedb-sub000/engine/api/pkgstore"
	"github.com/fedora-infra/packagedb-sub000/sdk"
)

// InsertTestPackage inserts an Approved package with a random name prefix.
func InsertTestPackage(t *testing.T, db gorp.SqlExecutor, vocab sdk.StatusVocabulary, name string) *sdk.Package {
	code, err := vocab.Code(sdk.StatusApproved)
	require.NoError(t, err)
	pkg := &sdk.Package{
		Name:       name,
		Summary:    "test package " + name,
		StatusCode: code,
		ShouldOpen: true,
	}
	require.NoError(t, pkgstore.InsertPackage(db, pkg))
	return pkg
}

// InsertTestCollection inserts an Active collection carrying a branch.
func InsertTestCollection(t *testing.T, db gorp.SqlExecutor, vocab sdk.StatusVocabulary, name, version, branchName string) *sdk.Collection {
	code, err := vocab.Code(sdk.StatusActive)
	require.NoError(t, err)
	coll := &sdk.Collection{
		Name:       name,
		Version:    version,
		StatusCode: code,
		Owner:      "admin",
		Branch: &sdk.BranchInfo{
			BranchName: branchName,
			DistTag:    "." + branchName,
		},
	}
	require.NoError(t, pkgstore.InsertCollection(db, coll))
	return coll
}

// InsertTestListing inserts an Approved listing of pkg on coll.
func InsertTestListing(t *testing.T, db gorp.SqlExecutor, vocab sdk.StatusVocabulary, pkg *sdk.Package, coll *sdk.Collection, owner string) *sdk.PackageListing {
	code, err := vocab.Code(sdk.StatusApproved)
	require.NoError(t, err)
	listing := &sdk.PackageListing{
		PackageID:    pkg.ID,
		CollectionID: coll.ID,
		Owner:        owner,
		StatusCode:   code,
	}
	require.NoError(t, pkgstore.InsertListing(db, listing))
	return listing
}

// Vocabulary loads the status vocabulary of the test database.
func Vocabulary(t *testing.T, db gorp.SqlExecutor) sdk.StatusVocabulary {
	vocab, err := pkgstore.LoadVocabulary(db)
	require.NoError(t, err)
	return vocab
}

// RandomName returns a unique lowercase name for fixture rows.
func RandomName(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, sdk.RandomString(8))
}

// FakeDirectory is an in-memory account.Directory.
type FakeDirectory struct {
	Users map[string]*sdk.AccountUser
	Down  bool
}

func (d *FakeDirectory) ResolveUser(_ context.Context, username string) (*sdk.AccountUser, error) {
	if d.Down {
		return nil, sdk.NewErrorFrom(sdk.ErrServiceUnavailable, "directory is down")
	}
	u, ok := d.Users[username]
	if !ok {
		return nil, sdk.NewErrorFrom(sdk.ErrNotFound, "no such user %s", username)
	}
	return u, nil
}

func (d *FakeDirectory) GroupMemberships(ctx context.Context, username string) ([]string, error) {
	u, err := d.ResolveUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return u.Groups, nil
}

func (d *FakeDirectory) BugzillaEmail(ctx context.Context, username string) (string, error) {
	u, err := d.ResolveUser(ctx, username)
	if err != nil {
		return "", err
	}
	if u.BugzillaEmail == "" {
		return username + "@example.org", nil
	}
	return u.BugzillaEmail, nil
}

// FakeBugTracker is an in-memory bugtracker.Client. Emails listed in
// UnknownEmails fail verification permanently, Transient makes every call
// fail with a service error.
type FakeBugTracker struct {
	UnknownEmails map[string]bool
	Transient     bool

	mu         sync.Mutex
	Reassigned []string
}

func (b *FakeBugTracker) VerifyEmail(_ context.Context, email string) error {
	if b.Transient {
		return sdk.NewErrorFrom(sdk.ErrServiceUnavailable, "tracker is down")
	}
	if b.UnknownEmails[email] {
		return sdk.NewErrorFrom(sdk.ErrNoSuchTrackerUser, "no tracker account for %s", email)
	}
	return nil
}

func (b *FakeBugTracker) ReassignDefaultOwner(_ context.Context, component, collection, newEmail string) error {
	if b.Transient {
		return sdk.NewErrorFrom(sdk.ErrServiceUnavailable, "tracker is down")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Reassigned = append(b.Reassigned, fmt.Sprintf("%s/%s->%s", component, collection, newEmail))
	return nil
}

// Notification is one message captured by RecordingNotifier.
type Notification struct {
	Recipients []string
	Subject    string
	Body       string
}

// RecordingNotifier is a mail.Notifier capturing messages instead of sending.
type RecordingNotifier struct {
	mu   sync.Mutex
	Sent []Notification
}

func (n *RecordingNotifier) Send(_ context.Context, recipients []string, subject, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, Notification{Recipients: recipients, Subject: subject, Body: body})
}
