package sdk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusVocabulary(t *testing.T) {
	v := DefaultStatusVocabulary()

	code, err := v.Code(StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, 3, code)

	name, err := v.Name(code)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, name)

	assert.True(t, v.Has(StatusAwaitingReview))
	assert.False(t, v.Has(Status("Bogus")))
}

func TestStatusVocabularyUnknown(t *testing.T) {
	v := DefaultStatusVocabulary()

	_, err := v.Code(Status("Bogus"))
	require.Error(t, err)
	assert.True(t, ErrorIs(err, ErrStatusNotFound))

	_, err = v.Name(999)
	require.Error(t, err)
	assert.True(t, ErrorIs(err, ErrStatusNotFound))
}

func TestAclGrantability(t *testing.T) {
	assert.True(t, AclCommit.IsGrantable())
	assert.True(t, AclWatchBugzilla.IsGrantable())
	assert.False(t, AclOwner.IsGrantable())
	assert.False(t, Acl("deploy").IsGrantable())

	assert.True(t, AclWatchBugzilla.AutoApproved())
	assert.True(t, AclWatchCommits.AutoApproved())
	assert.False(t, AclCommit.AutoApproved())
	assert.False(t, AclApproveAcls.AutoApproved())
}

func TestPackageListingOrphaned(t *testing.T) {
	assert.True(t, PackageListing{Owner: OrphanOwner}.Orphaned())
	assert.False(t, PackageListing{Owner: "alice"}.Orphaned())
}

func TestAccountUserInAnyGroup(t *testing.T) {
	u := AccountUser{Username: "alice", Groups: []string{"packager", "provenpackager"}}
	assert.True(t, u.InAnyGroup("provenpackager"))
	assert.True(t, u.InAnyGroup("cvsadmin", "packager"))
	assert.False(t, u.InAnyGroup("cvsadmin"))
	assert.False(t, u.InAnyGroup())
}
