package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedora-infra/packagedb-sub000/engine/api/test/assets"
	"github.com/fedora-infra/packagedb-sub000/sdk"
)

func newTestEngine(tracker *assets.FakeBugTracker) *Engine {
	return New(Configuration{}, tracker, sdk.DefaultStatusVocabulary())
}

func TestCanAdministerAclsAdminAndOwner(t *testing.T) {
	e := newTestEngine(&assets.FakeBugTracker{})
	listing := &sdk.PackageListing{ID: 1, Owner: "bob"}

	// admin outranks everything, even on a listing they own
	role, err := e.CanAdministerAcls(context.TODO(), nil, &sdk.AccountUser{ID: 20001, Username: "root", Groups: []string{"cvsadmin"}}, listing)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	role, err = e.CanAdministerAcls(context.TODO(), nil, &sdk.AccountUser{ID: 20002, Username: "bob", Groups: []string{"packager"}}, listing)
	require.NoError(t, err)
	assert.Equal(t, RoleOwner, role)
}

func TestAclMayBeHeldByOwner(t *testing.T) {
	e := newTestEngine(&assets.FakeBugTracker{})

	// packager with a verified tracker address
	err := e.AclMayBeHeldBy(context.TODO(), sdk.AclOwner,
		&sdk.AccountUser{ID: 20001, Username: "bob", BugzillaEmail: "bob@example.org", Groups: []string{"packager"}})
	assert.NoError(t, err)

	// no owner-eligible group: rejection names the group set
	err = e.AclMayBeHeldBy(context.TODO(), sdk.AclOwner,
		&sdk.AccountUser{ID: 20002, Username: "carol", BugzillaEmail: "carol@example.org", Groups: []string{"designers"}})
	require.Error(t, err)
	assert.True(t, sdk.ErrorIs(err, sdk.ErrAclNotAllowed))
	assert.Contains(t, err.Error(), "cvsadmin, packager, provenpackager")

	// pseudo-users bypass the group requirement
	err = e.AclMayBeHeldBy(context.TODO(), sdk.AclOwner,
		&sdk.AccountUser{ID: 9001, Username: "releng-bot", BugzillaEmail: "releng@example.org"})
	assert.NoError(t, err)
}

func TestAclMayBeHeldByTrackerEmail(t *testing.T) {
	tracker := &assets.FakeBugTracker{UnknownEmails: map[string]bool{"ghost@example.org": true}}
	e := newTestEngine(tracker)

	// unknown tracker account is a permanent rejection
	err := e.AclMayBeHeldBy(context.TODO(), sdk.AclWatchBugzilla,
		&sdk.AccountUser{ID: 20001, Username: "ghost", BugzillaEmail: "ghost@example.org", Groups: []string{"packager"}})
	require.Error(t, err)
	assert.True(t, sdk.ErrorIs(err, sdk.ErrAclNotAllowed))

	// missing address is rejected before the tracker is even asked
	err = e.AclMayBeHeldBy(context.TODO(), sdk.AclOwner,
		&sdk.AccountUser{ID: 20002, Username: "noaddr", Groups: []string{"packager"}})
	require.Error(t, err)
	assert.True(t, sdk.ErrorIs(err, sdk.ErrAclNotAllowed))

	// transient tracker fault propagates as a service error, never a rejection
	tracker.Transient = true
	err = e.AclMayBeHeldBy(context.TODO(), sdk.AclOwner,
		&sdk.AccountUser{ID: 20003, Username: "bob", BugzillaEmail: "bob@example.org", Groups: []string{"packager"}})
	require.Error(t, err)
	assert.True(t, sdk.ErrorIs(err, sdk.ErrServiceUnavailable))
	assert.False(t, sdk.ErrorIs(err, sdk.ErrAclNotAllowed))
}

func TestAclMayBeHeldByWatchAndComaintainer(t *testing.T) {
	e := newTestEngine(&assets.FakeBugTracker{})

	// watchcommits needs no group and no tracker address
	err := e.AclMayBeHeldBy(context.TODO(), sdk.AclWatchCommits,
		&sdk.AccountUser{ID: 20001, Username: "anyone"})
	assert.NoError(t, err)

	// commit requires a comaintainer-eligible group
	err = e.AclMayBeHeldBy(context.TODO(), sdk.AclCommit,
		&sdk.AccountUser{ID: 20002, Username: "carol", Groups: []string{"designers"}})
	require.Error(t, err)
	assert.True(t, sdk.ErrorIs(err, sdk.ErrAclNotAllowed))
	assert.Contains(t, err.Error(), "commit")

	err = e.AclMayBeHeldBy(context.TODO(), sdk.AclApproveAcls,
		&sdk.AccountUser{ID: 20003, Username: "dave", Groups: []string{"provenpackager"}})
	assert.NoError(t, err)
}

func TestConfigurationNormalize(t *testing.T) {
	var c Configuration
	c.Normalize()
	assert.Equal(t, "cvsadmin", c.AdminGroup)
	assert.Equal(t, []string{"cvsadmin", "packager", "provenpackager"}, c.OwnerGroups)
	assert.Equal(t, []string{"cvsadmin", "packager", "provenpackager"}, c.ComaintainerGroups)
	assert.Equal(t, int64(10000), c.PseudoUserIDCeiling)

	c = Configuration{AdminGroup: "wheel"}
	c.Normalize()
	assert.Equal(t, []string{"wheel", "packager", "provenpackager"}, c.OwnerGroups)
}
