package pkgstore

import (
	"time"

	"github.com/go-gorp/gorp"

	"github.com/fedora-infra/packagedb-sub000/engine/api/database/gorpmapping"
	"github.com/fedora-infra/packagedb-sub000/sdk"
)

// InsertPackage inserts a new package.
func InsertPackage(db gorp.SqlExecutor, p *sdk.Package) error {
	return sdk.WrapError(gorpmapping.Insert(db, p), "unable to insert package %s", p.Name)
}

// UpdatePackage updates given package.
func UpdatePackage(db gorp.SqlExecutor, p *sdk.Package) error {
	return sdk.WrapError(gorpmapping.Update(db, p), "unable to update package %s", p.Name)
}

// LoadPackageByName returns the package with given name.
func LoadPackageByName(db gorp.SqlExecutor, name string) (*sdk.Package, error) {
	var p sdk.Package
	query := gorpmapping.NewQuery("SELECT * FROM package WHERE name = $1").Args(name)
	found, err := gorpmapping.Get(db, query, &p)
	if err != nil {
		return nil, sdk.WrapError(err, "cannot load package %s", name)
	}
	if !found {
		return nil, sdk.NewErrorFrom(sdk.ErrNotFound, "no package named %q", name)
	}
	return &p, nil
}

// LoadPackageByID returns the package with given id.
func LoadPackageByID(db gorp.SqlExecutor, id int64) (*sdk.Package, error) {
	var p sdk.Package
	query := gorpmapping.NewQuery("SELECT * FROM package WHERE id = $1").Args(id)
	found, err := gorpmapping.Get(db, query, &p)
	if err != nil {
		return nil, sdk.WrapError(err, "cannot load package %d", id)
	}
	if !found {
		return nil, sdk.NewErrorFrom(sdk.ErrNotFound, "no package with id %d", id)
	}
	return &p, nil
}

// InsertCollection inserts a new collection.
func InsertCollection(db gorp.SqlExecutor, c *sdk.Collection) error {
	row := newCollectionRow(*c)
	if err := gorpmapping.Insert(db, &row); err != nil {
		return sdk.WrapError(err, "unable to insert collection %s %s", c.Name, c.Version)
	}
	c.ID = row.ID
	return nil
}

// LoadCollectionByID returns the collection with given id.
func LoadCollectionByID(db gorp.SqlExecutor, id int64) (*sdk.Collection, error) {
	var row collection
	query := gorpmapping.NewQuery("SELECT * FROM collection WHERE id = $1").Args(id)
	found, err := gorpmapping.Get(db, query, &row)
	if err != nil {
		return nil, sdk.WrapError(err, "cannot load collection %d", id)
	}
	if !found {
		return nil, sdk.NewErrorFrom(sdk.ErrNotFound, "no collection with id %d", id)
	}
	res := row.toSDK()
	return &res, nil
}

// LoadCollectionByBranchName returns the collection carrying given VCS branch name.
func LoadCollectionByBranchName(db gorp.SqlExecutor, branchName string) (*sdk.Collection, error) {
	var row collection
	query := gorpmapping.NewQuery("SELECT * FROM collection WHERE branchname = $1").Args(branchName)
	found, err := gorpmapping.Get(db, query, &row)
	if err != nil {
		return nil, sdk.WrapError(err, "cannot load collection for branch %s", branchName)
	}
	if !found {
		return nil, sdk.NewErrorFrom(sdk.ErrInvalidBranch, "no branch named %q", branchName)
	}
	res := row.toSDK()
	return &res, nil
}

// LoadAllCollections returns every collection.
func LoadAllCollections(db gorp.SqlExecutor) ([]sdk.Collection, error) {
	var rows []collection
	query := gorpmapping.NewQuery("SELECT * FROM collection ORDER BY name, version")
	if err := gorpmapping.GetAll(db, query, &rows); err != nil {
		return nil, sdk.WrapError(err, "cannot load collections")
	}
	res := make([]sdk.Collection, len(rows))
	for i := range rows {
		res[i] = rows[i].toSDK()
	}
	return res, nil
}

// InsertListing inserts a new package listing, stamping statuschange.
func InsertListing(db gorp.SqlExecutor, l *sdk.PackageListing) error {
	l.StatusChange = time.Now()
	return sdk.WrapError(gorpmapping.Insert(db, l), "unable to insert listing for package %d on collection %d", l.PackageID, l.CollectionID)
}

// UpdateListing updates given listing. statuschange is touched whenever the
// status column changes, which reproduces the legacy database trigger.
func UpdateListing(db gorp.SqlExecutor, l *sdk.PackageListing) error {
	var previousStatus int
	if err := db.QueryRow("SELECT statuscode FROM package_listing WHERE id = $1", l.ID).Scan(&previousStatus); err != nil {
		return sdk.WrapError(gorpmapping.Error(err), "cannot load listing %d", l.ID)
	}
	if previousStatus != l.StatusCode {
		l.StatusChange = time.Now()
	}
	return sdk.WrapError(gorpmapping.Update(db, l), "unable to update listing %d", l.ID)
}

// LoadListingByID returns the listing with given id.
func LoadListingByID(db gorp.SqlExecutor, id int64) (*sdk.PackageListing, error) {
	var l sdk.PackageListing
	query := gorpmapping.NewQuery("SELECT * FROM package_listing WHERE id = $1").Args(id)
	found, err := gorpmapping.Get(db, query, &l)
	if err != nil {
		return nil, sdk.WrapError(err, "cannot load listing %d", id)
	}
	if !found {
		return nil, sdk.NewErrorFrom(sdk.ErrNoPackageListings, "no package listing with id %d", id)
	}
	return &l, nil
}

// LoadListing returns the listing of given package on given collection.
func LoadListing(db gorp.SqlExecutor, packageID, collectionID int64) (*sdk.PackageListing, error) {
	var l sdk.PackageListing
	query := gorpmapping.NewQuery("SELECT * FROM package_listing WHERE package_id = $1 AND collection_id = $2").
		Args(packageID, collectionID)
	found, err := gorpmapping.Get(db, query, &l)
	if err != nil {
		return nil, sdk.WrapError(err, "cannot load listing for package %d on collection %d", packageID, collectionID)
	}
	if !found {
		return nil, sdk.NewErrorFrom(sdk.ErrNoPackageListings, "package %d has no listing on collection %d", packageID, collectionID)
	}
	return &l, nil
}

// LoadListingsByPackage returns every listing of given package.
func LoadListingsByPackage(db gorp.SqlExecutor, packageID int64) ([]sdk.PackageListing, error) {
	var ls []sdk.PackageListing
	query := gorpmapping.NewQuery("SELECT * FROM package_listing WHERE package_id = $1 ORDER BY id").Args(packageID)
	if err := gorpmapping.GetAll(db, query, &ls); err != nil {
		return nil, sdk.WrapError(err, "cannot load listings for package %d", packageID)
	}
	return ls, nil
}
