package dispatcher_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedora-infra/packagedb-sub000/engine/api/account"
	"github.com/fedora-infra/packagedb-sub000/engine/api/aclstore"
	"github.com/fedora-infra/packagedb-sub000/engine/api/auditlog"
	"github.com/fedora-infra/packagedb-sub000/engine/api/dispatcher"
	"github.com/fedora-infra/packagedb-sub000/engine/api/pkgstore"
	"github.com/fedora-infra/packagedb-sub000/engine/api/policy"
	"github.com/fedora-infra/packagedb-sub000/engine/api/test"
	"github.com/fedora-infra/packagedb-sub000/engine/api/test/assets"
	"github.com/fedora-infra/packagedb-sub000/sdk"
)

type fixture struct {
	d         *dispatcher.Dispatcher
	directory *assets.FakeDirectory
	tracker   *assets.FakeBugTracker
	notifier  *assets.RecordingNotifier
	vocab     sdk.StatusVocabulary
}

func newFixture(t *testing.T) fixture {
	dbFunc := test.DBFunc(t)
	vocab := assets.Vocabulary(t, dbFunc())

	directory := &assets.FakeDirectory{Users: map[string]*sdk.AccountUser{
		"alice": {ID: 20001, Username: "alice", BugzillaEmail: "alice@example.org", Groups: []string{"cvsadmin", "provenpackager"}},
		"bob":   {ID: 20002, Username: "bob", BugzillaEmail: "bob@example.org", Groups: []string{"packager"}},
		"carol": {ID: 20003, Username: "carol", BugzillaEmail: "carol@example.org", Groups: []string{"packager"}},
		"eve":   {ID: 20004, Username: "eve", BugzillaEmail: "eve@example.org", Groups: []string{"designers"}},
	}}
	tracker := &assets.FakeBugTracker{}
	notifier := &assets.RecordingNotifier{}
	pol := policy.New(policy.Configuration{}, tracker, vocab)

	return fixture{
		d:         dispatcher.New(dbFunc, directory, tracker, notifier, pol, vocab),
		directory: directory,
		tracker:   tracker,
		notifier:  notifier,
		vocab:     vocab,
	}
}

func (f fixture) as(username string) context.Context {
	return account.ContextWithActor(context.Background(), f.directory.Users[username])
}

func (f fixture) code(t *testing.T, name sdk.Status) int {
	code, err := f.vocab.Code(name)
	require.NoError(t, err)
	return code
}

func TestSupported(t *testing.T) {
	assert.True(t, dispatcher.Supported("toggle_ownership"))
	assert.True(t, dispatcher.Supported("mass_change_owner"))
	assert.False(t, dispatcher.Supported("drop_tables"))
	assert.Len(t, dispatcher.Operations, 11)
}

func TestAddPackage(t *testing.T) {
	f := newFixture(t)
	db := f.d.DBFunc()

	devel := assets.InsertTestCollection(t, db, f.vocab, assets.RandomName("Fedora"), "devel", assets.RandomName("devel"))
	f.d.DevelBranchName = devel.Branch.BranchName

	name := assets.RandomName("foo")
	pkg, err := f.d.AddPackage(f.as("alice"), name, "bob", "Foo tool")
	require.NoError(t, err)
	assert.Equal(t, f.code(t, sdk.StatusApproved), pkg.StatusCode)

	listing, err := pkgstore.LoadListing(db, pkg.ID, devel.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", listing.Owner)
	assert.Equal(t, f.code(t, sdk.StatusApproved), listing.StatusCode)

	// provenpackager gets commit (mirrored to build) and checkout pre-approved
	groupAcls, err := aclstore.LoadGroupAclsByListing(db, listing.ID)
	require.NoError(t, err)
	byAcl := map[sdk.Acl]int{}
	for _, a := range groupAcls {
		assert.Equal(t, "provenpackager", a.GroupName)
		byAcl[a.Acl] = a.StatusCode
	}
	for _, acl := range []sdk.Acl{sdk.AclCommit, sdk.AclBuild, sdk.AclCheckout} {
		assert.Equal(t, f.code(t, sdk.StatusApproved), byAcl[acl], string(acl))
	}

	pkgLogs, err := auditlog.LoadByRef(db, sdk.LogKindPackage, pkg.ID)
	require.NoError(t, err)
	listingLogs, err := auditlog.LoadByRef(db, sdk.LogKindListing, listing.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(pkgLogs)+len(listingLogs), 4)

	// the name is now taken
	_, err = f.d.AddPackage(f.as("alice"), name, "bob", "Foo tool")
	require.Error(t, err)
	assert.True(t, sdk.ErrorIs(err, sdk.ErrAlreadyExists))

	// non-admins may not add packages
	_, err = f.d.AddPackage(f.as("bob"), assets.RandomName("bar"), "bob", "Bar tool")
	require.Error(t, err)
	assert.True(t, sdk.ErrorIs(err, sdk.ErrForbidden))
}

func TestToggleOwnership(t *testing.T) {
	f := newFixture(t)
	db := f.d.DBFunc()

	pkg := assets.InsertTestPackage(t, db, f.vocab, assets.RandomName("pkg"))
	coll := assets.InsertTestCollection(t, db, f.vocab, assets.RandomName("Fedora"), "40", assets.RandomName("f40"))
	listing := assets.InsertTestListing(t, db, f.vocab, pkg, coll, sdk.OrphanOwner)

	// an eligible actor adopts the orphan
	updated, err := f.d.ToggleOwnership(f.as("bob"), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", updated.Owner)
	assert.Equal(t, f.code(t, sdk.StatusOwned), updated.StatusCode)
	assert.NotEmpty(t, f.tracker.Reassigned)

	// carol is neither admin nor owner: she may not release it
	_, err = f.d.ToggleOwnership(f.as("carol"), listing.ID)
	require.Error(t, err)
	assert.True(t, sdk.ErrorIs(err, sdk.ErrForbidden))

	// the owner releases it back to orphan
	updated, err = f.d.ToggleOwnership(f.as("bob"), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, sdk.OrphanOwner, updated.Owner)
	assert.Equal(t, f.code(t, sdk.StatusOrphaned), updated.StatusCode)

	// an ineligible actor may not adopt
	_, err = f.d.ToggleOwnership(f.as("eve"), listing.ID)
	require.Error(t, err)
	assert.True(t, sdk.ErrorIs(err, sdk.ErrAclNotAllowed))
}

func TestToggleOwnershipRetiredListing(t *testing.T) {
	f := newFixture(t)
	db := f.d.DBFunc()

	pkg := assets.InsertTestPackage(t, db, f.vocab, assets.RandomName("pkg"))
	coll := assets.InsertTestCollection(t, db, f.vocab, assets.RandomName("Fedora"), "40", assets.RandomName("f40"))
	listing := assets.InsertTestListing(t, db, f.vocab, pkg, coll, "bob")

	_, err := f.d.ToggleRetirement(f.as("bob"), listing.ID)
	require.NoError(t, err)

	// retiring leaves the orphan owner sentinel behind, but the listing is
	// not adoptable until an admin unretires it
	_, err = f.d.ToggleOwnership(f.as("carol"), listing.ID)
	require.Error(t, err)
	assert.True(t, sdk.ErrorIs(err, sdk.ErrForbidden))

	reloaded, err := pkgstore.LoadListingByID(db, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, f.code(t, sdk.StatusRetired), reloaded.StatusCode)
	assert.Equal(t, sdk.OrphanOwner, reloaded.Owner)

	_, err = f.d.ToggleRetirement(f.as("alice"), listing.ID)
	require.NoError(t, err)

	updated, err := f.d.ToggleOwnership(f.as("carol"), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", updated.Owner)
	assert.Equal(t, f.code(t, sdk.StatusOwned), updated.StatusCode)
}

func TestToggleRetirement(t *testing.T) {
	f := newFixture(t)
	db := f.d.DBFunc()

	pkg := assets.InsertTestPackage(t, db, f.vocab, assets.RandomName("pkg"))
	coll := assets.InsertTestCollection(t, db, f.vocab, assets.RandomName("Fedora"), "40", assets.RandomName("f40"))
	listing := assets.InsertTestListing(t, db, f.vocab, pkg, coll, "bob")

	// owned listing: owner retires it, which orphans it first
	updated, err := f.d.ToggleRetirement(f.as("bob"), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, f.code(t, sdk.StatusRetired), updated.StatusCode)
	assert.Equal(t, sdk.OrphanOwner, updated.Owner)

	// only an admin may unretire
	_, err = f.d.ToggleRetirement(f.as("bob"), listing.ID)
	require.Error(t, err)
	assert.True(t, sdk.ErrorIs(err, sdk.ErrForbidden))

	updated, err = f.d.ToggleRetirement(f.as("alice"), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, f.code(t, sdk.StatusOrphaned), updated.StatusCode)

	// anyone may retire an orphan
	updated, err = f.d.ToggleRetirement(f.as("eve"), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, f.code(t, sdk.StatusRetired), updated.StatusCode)
}

func TestSetAclStatus(t *testing.T) {
	f := newFixture(t)
	db := f.d.DBFunc()

	pkg := assets.InsertTestPackage(t, db, f.vocab, assets.RandomName("pkg"))
	coll := assets.InsertTestCollection(t, db, f.vocab, assets.RandomName("Fedora"), "40", assets.RandomName("f40"))
	listing := assets.InsertTestListing(t, db, f.vocab, pkg, coll, "bob")

	// the engine refuses an empty status, the http edge maps it beforehand
	_, err := f.d.SetAclStatus(f.as("bob"), listing.ID, "carol", sdk.AclCommit, "")
	require.Error(t, err)
	assert.True(t, sdk.ErrorIs(err, sdk.ErrValidation))

	// Owned is a listing status, not an acl status
	_, err = f.d.SetAclStatus(f.as("bob"), listing.ID, "carol", sdk.AclCommit, sdk.StatusOwned)
	require.Error(t, err)
	assert.True(t, sdk.ErrorIs(err, sdk.ErrValidation))

	// the owner approves carol's commit acl
	record, err := f.d.SetAclStatus(f.as("bob"), listing.ID, "carol", sdk.AclCommit, sdk.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, f.code(t, sdk.StatusApproved), record.StatusCode)

	// carol is not an administrator of the listing
	_, err = f.d.SetAclStatus(f.as("carol"), listing.ID, "eve", sdk.AclWatchCommits, sdk.StatusApproved)
	require.Error(t, err)
	assert.True(t, sdk.ErrorIs(err, sdk.ErrForbidden))

	// granting to an ineligible candidate is refused, revoking is not
	_, err = f.d.SetAclStatus(f.as("bob"), listing.ID, "eve", sdk.AclCommit, sdk.StatusApproved)
	require.Error(t, err)
	assert.True(t, sdk.ErrorIs(err, sdk.ErrAclNotAllowed))

	_, err = f.d.SetAclStatus(f.as("bob"), listing.ID, "carol", sdk.AclCommit, sdk.StatusObsolete)
	require.NoError(t, err)

	// an approved approveacls makes carol a comaintainer who may administer
	_, err = f.d.SetAclStatus(f.as("bob"), listing.ID, "carol", sdk.AclApproveAcls, sdk.StatusApproved)
	require.NoError(t, err)
	record, err = f.d.SetAclStatus(f.as("carol"), listing.ID, "carol", sdk.AclCheckout, sdk.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, f.code(t, sdk.StatusApproved), record.StatusCode)
}

func TestToggleAclRequest(t *testing.T) {
	f := newFixture(t)
	db := f.d.DBFunc()

	pkg := assets.InsertTestPackage(t, db, f.vocab, assets.RandomName("pkg"))
	coll := assets.InsertTestCollection(t, db, f.vocab, assets.RandomName("Fedora"), "40", assets.RandomName("f40"))
	listing := assets.InsertTestListing(t, db, f.vocab, pkg, coll, "bob")

	// a commit request awaits review
	record, err := f.d.ToggleAclRequest(f.as("carol"), listing.ID, sdk.AclCommit)
	require.NoError(t, err)
	assert.Equal(t, f.code(t, sdk.StatusAwaitingReview), record.StatusCode)

	// toggling again withdraws it
	record, err = f.d.ToggleAclRequest(f.as("carol"), listing.ID, sdk.AclCommit)
	require.NoError(t, err)
	assert.Equal(t, f.code(t, sdk.StatusObsolete), record.StatusCode)

	// watch acls are approved on request
	record, err = f.d.ToggleAclRequest(f.as("carol"), listing.ID, sdk.AclWatchCommits)
	require.NoError(t, err)
	assert.Equal(t, f.code(t, sdk.StatusApproved), record.StatusCode)
}

func TestToggleGroupAcl(t *testing.T) {
	f := newFixture(t)
	db := f.d.DBFunc()

	pkg := assets.InsertTestPackage(t, db, f.vocab, assets.RandomName("pkg"))
	coll := assets.InsertTestCollection(t, db, f.vocab, assets.RandomName("Fedora"), "40", assets.RandomName("f40"))
	listing := assets.InsertTestListing(t, db, f.vocab, pkg, coll, "bob")

	// admin only
	_, err := f.d.ToggleGroupAcl(f.as("bob"), listing.ID, "provenpackager", sdk.AclCommit)
	require.Error(t, err)
	assert.True(t, sdk.ErrorIs(err, sdk.ErrForbidden))

	record, err := f.d.ToggleGroupAcl(f.as("alice"), listing.ID, "provenpackager", sdk.AclCommit)
	require.NoError(t, err)
	assert.Equal(t, f.code(t, sdk.StatusApproved), record.StatusCode)

	record, err = f.d.ToggleGroupAcl(f.as("alice"), listing.ID, "provenpackager", sdk.AclCommit)
	require.NoError(t, err)
	assert.Equal(t, f.code(t, sdk.StatusDenied), record.StatusCode)

	// build mirrors the flip
	build, found, err := aclstore.LoadGroupAcl(db, listing.ID, "provenpackager", sdk.AclBuild)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, f.code(t, sdk.StatusDenied), build.StatusCode)
}

func TestCloneBranchIdempotent(t *testing.T) {
	f := newFixture(t)
	db := f.d.DBFunc()

	pkg := assets.InsertTestPackage(t, db, f.vocab, assets.RandomName("pkg"))
	source := assets.InsertTestCollection(t, db, f.vocab, assets.RandomName("Fedora"), "40", assets.RandomName("f40"))
	target := assets.InsertTestCollection(t, db, f.vocab, assets.RandomName("Fedora"), "41", assets.RandomName("f41"))
	listing := assets.InsertTestListing(t, db, f.vocab, pkg, source, "bob")

	_, err := aclstore.UpsertPersonAcl(db, listing.ID, "carol", sdk.AclCommit, f.code(t, sdk.StatusApproved))
	require.NoError(t, err)
	_, err = aclstore.UpsertGroupAcl(db, listing.ID, "provenpackager", sdk.AclCheckout, f.code(t, sdk.StatusApproved))
	require.NoError(t, err)

	cloned, err := f.d.CloneBranch(f.as("alice"), pkg.Name, target.Branch.BranchName, source.Branch.BranchName)
	require.NoError(t, err)
	assert.Equal(t, "bob", cloned.Owner)

	personAcls, err := aclstore.LoadPersonAclsByListing(db, cloned.ID)
	require.NoError(t, err)
	assert.Len(t, personAcls, 2) // commit + mirrored build

	// re-cloning updates rather than duplicates
	again, err := f.d.CloneBranch(f.as("alice"), pkg.Name, target.Branch.BranchName, source.Branch.BranchName)
	require.NoError(t, err)
	assert.Equal(t, cloned.ID, again.ID)

	personAcls, err = aclstore.LoadPersonAclsByListing(db, cloned.ID)
	require.NoError(t, err)
	assert.Len(t, personAcls, 2)

	// unknown branches and missing source listings are typed failures
	_, err = f.d.CloneBranch(f.as("alice"), pkg.Name, assets.RandomName("nope"), source.Branch.BranchName)
	require.Error(t, err)
	assert.True(t, sdk.ErrorIs(err, sdk.ErrInvalidBranch))

	empty := assets.InsertTestCollection(t, db, f.vocab, assets.RandomName("Fedora"), "42", assets.RandomName("f42"))
	_, err = f.d.CloneBranch(f.as("alice"), pkg.Name, target.Branch.BranchName, empty.Branch.BranchName)
	require.Error(t, err)
	assert.True(t, sdk.ErrorIs(err, sdk.ErrCannotClone))
}

func TestRemoveUser(t *testing.T) {
	f := newFixture(t)
	db := f.d.DBFunc()

	pkg := assets.InsertTestPackage(t, db, f.vocab, assets.RandomName("pkg"))
	coll := assets.InsertTestCollection(t, db, f.vocab, assets.RandomName("Fedora"), "40", assets.RandomName("f40"))
	listing := assets.InsertTestListing(t, db, f.vocab, pkg, coll, "bob")

	_, err := aclstore.UpsertPersonAcl(db, listing.ID, "carol", sdk.AclCommit, f.code(t, sdk.StatusApproved))
	require.NoError(t, err)
	_, err = aclstore.UpsertPersonAcl(db, listing.ID, "carol", sdk.AclWatchCommits, f.code(t, sdk.StatusApproved))
	require.NoError(t, err)

	obsoleted, err := f.d.RemoveUser(f.as("alice"), "carol", pkg.Name, nil)
	require.NoError(t, err)
	assert.Len(t, obsoleted, 3) // commit, build, watchcommits

	acls, err := aclstore.LoadPersonAclsByUser(db, listing.ID, "carol")
	require.NoError(t, err)
	for _, a := range acls {
		assert.Equal(t, f.code(t, sdk.StatusObsolete), a.StatusCode)
	}

	// a second pass finds nothing left to obsolete
	obsoleted, err = f.d.RemoveUser(f.as("alice"), "carol", pkg.Name, nil)
	require.NoError(t, err)
	assert.Empty(t, obsoleted)
}

func TestEditPackage(t *testing.T) {
	f := newFixture(t)
	db := f.d.DBFunc()

	devel := assets.InsertTestCollection(t, db, f.vocab, assets.RandomName("Fedora"), "devel", assets.RandomName("devel"))
	f.d.DevelBranchName = devel.Branch.BranchName

	name := assets.RandomName("foo")
	pkg, err := f.d.AddPackage(f.as("alice"), name, "bob", "Foo tool")
	require.NoError(t, err)

	f41 := assets.InsertTestCollection(t, db, f.vocab, assets.RandomName("Fedora"), "41", assets.RandomName("f41"))

	summary := "Foo tool, improved"
	_, err = f.d.EditPackage(f.as("alice"), name, dispatcher.EditPackageRequest{
		Summary:       &summary,
		Collections:   []string{f41.Branch.BranchName},
		Comaintainers: []string{"carol"},
	})
	require.NoError(t, err)

	pkg, err = pkgstore.LoadPackageByName(db, name)
	require.NoError(t, err)
	assert.Equal(t, summary, pkg.Summary)

	// the new collection got a listing mirroring devel
	listing, err := pkgstore.LoadListing(db, pkg.ID, f41.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", listing.Owner)

	// carol got the comaintainer acls on the named collection, commit mirrored to build
	acls, err := aclstore.LoadPersonAclsByUser(db, listing.ID, "carol")
	require.NoError(t, err)
	assert.Len(t, acls, 5)

	// an ineligible comaintainer fails before anything is written
	_, err = f.d.EditPackage(f.as("alice"), name, dispatcher.EditPackageRequest{Comaintainers: []string{"eve"}})
	require.Error(t, err)
	assert.True(t, sdk.ErrorIs(err, sdk.ErrAclNotAllowed))
}
