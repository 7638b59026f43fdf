package pkgstore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedora-infra/packagedb-sub000/engine/api/pkgstore"
	"github.com/fedora-infra/packagedb-sub000/engine/api/test"
	"github.com/fedora-infra/packagedb-sub000/engine/api/test/assets"
	"github.com/fedora-infra/packagedb-sub000/sdk"
)

func TestLoadPackageByName(t *testing.T) {
	db := test.SetupPG(t)
	vocab := assets.Vocabulary(t, db)

	pkg := assets.InsertTestPackage(t, db, vocab, assets.RandomName("pkg"))

	loaded, err := pkgstore.LoadPackageByName(db, pkg.Name)
	require.NoError(t, err)
	assert.Equal(t, pkg.ID, loaded.ID)

	_, err = pkgstore.LoadPackageByName(db, assets.RandomName("missing"))
	require.Error(t, err)
	assert.True(t, sdk.ErrorIs(err, sdk.ErrNotFound))
}

func TestLoadCollectionByBranchName(t *testing.T) {
	db := test.SetupPG(t)
	vocab := assets.Vocabulary(t, db)

	coll := assets.InsertTestCollection(t, db, vocab, assets.RandomName("Fedora"), "40", assets.RandomName("f40"))

	loaded, err := pkgstore.LoadCollectionByBranchName(db, coll.Branch.BranchName)
	require.NoError(t, err)
	assert.Equal(t, coll.ID, loaded.ID)
	require.NotNil(t, loaded.Branch)
	assert.Equal(t, coll.Branch.BranchName, loaded.Branch.BranchName)

	_, err = pkgstore.LoadCollectionByBranchName(db, assets.RandomName("nope"))
	require.Error(t, err)
	assert.True(t, sdk.ErrorIs(err, sdk.ErrInvalidBranch))
}

func TestUpdateListingTouchesStatusChange(t *testing.T) {
	db := test.SetupPG(t)
	vocab := assets.Vocabulary(t, db)

	pkg := assets.InsertTestPackage(t, db, vocab, assets.RandomName("pkg"))
	coll := assets.InsertTestCollection(t, db, vocab, assets.RandomName("Fedora"), "40", assets.RandomName("f40"))
	listing := assets.InsertTestListing(t, db, vocab, pkg, coll, "bob")
	stamped := listing.StatusChange

	// an owner change alone leaves statuschange untouched
	listing.Owner = "carol"
	require.NoError(t, pkgstore.UpdateListing(db, listing))
	assert.True(t, listing.StatusChange.Equal(stamped))

	time.Sleep(10 * time.Millisecond)

	orphaned, err := vocab.Code(sdk.StatusOrphaned)
	require.NoError(t, err)
	listing.StatusCode = orphaned
	require.NoError(t, pkgstore.UpdateListing(db, listing))
	assert.True(t, listing.StatusChange.After(stamped))
}

func TestLoadVocabulary(t *testing.T) {
	db := test.SetupPG(t)

	vocab, err := pkgstore.LoadVocabulary(db)
	require.NoError(t, err)

	code, err := vocab.Code(sdk.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, 3, code)

	for _, s := range []sdk.Status{sdk.StatusAwaitingReview, sdk.StatusObsolete, sdk.StatusOrphaned, sdk.StatusRetired} {
		assert.True(t, vocab.Has(s), string(s))
	}
}
