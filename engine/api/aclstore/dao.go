package aclstore

import (
	"github.com/go-gorp/gorp"

	"github.com/fedora-infra/packagedb-sub000/engine/api/database/gorpmapping"
	"github.com/fedora-infra/packagedb-sub000/sdk"
)

// The upserts below are single atomic statements backed by the unique
// constraints on (package_listing_id, principal) and (principal_listing_id,
// acl). Two actors hitting the same pair concurrently cannot produce
// duplicate rows or lost updates.

const upsertPersonListingQuery = `
	INSERT INTO person_package_listing (package_listing_id, username)
	VALUES ($1, $2)
	ON CONFLICT (package_listing_id, username) DO UPDATE SET username = EXCLUDED.username
	RETURNING id`

const upsertPersonAclQuery = `
	INSERT INTO person_package_listing_acl (person_listing_id, acl, statuscode)
	VALUES ($1, $2, $3)
	ON CONFLICT (person_listing_id, acl) DO UPDATE SET statuscode = EXCLUDED.statuscode
	RETURNING id`

const upsertGroupListingQuery = `
	INSERT INTO group_package_listing (package_listing_id, group_name)
	VALUES ($1, $2)
	ON CONFLICT (package_listing_id, group_name) DO UPDATE SET group_name = EXCLUDED.group_name
	RETURNING id`

const upsertGroupAclQuery = `
	INSERT INTO group_package_listing_acl (group_listing_id, acl, statuscode)
	VALUES ($1, $2, $3)
	ON CONFLICT (group_listing_id, acl) DO UPDATE SET statuscode = EXCLUDED.statuscode
	RETURNING id`

// UpsertPersonAcl creates or updates the acl row held by given person on
// given listing, creating the person association lazily. Granting or
// modifying commit performs the same upsert for build with the same status,
// build always mirrors commit.
func UpsertPersonAcl(db gorp.SqlExecutor, listingID int64, username string, acl sdk.Acl, statusCode int) (*sdk.PersonAcl, error) {
	if !acl.IsGrantable() {
		return nil, sdk.NewErrorFrom(sdk.ErrValidation, "acl %q cannot be granted", acl)
	}

	var personListingID int64
	if err := db.QueryRow(upsertPersonListingQuery, listingID, username).Scan(&personListingID); err != nil {
		return nil, sdk.WrapError(gorpmapping.Error(err), "unable to upsert person listing for %s on listing %d", username, listingID)
	}

	var aclID int64
	if err := db.QueryRow(upsertPersonAclQuery, personListingID, string(acl), statusCode).Scan(&aclID); err != nil {
		return nil, sdk.WrapError(gorpmapping.Error(err), "unable to upsert %s acl for %s on listing %d", acl, username, listingID)
	}

	if acl == sdk.AclCommit {
		if err := db.QueryRow(upsertPersonAclQuery, personListingID, string(sdk.AclBuild), statusCode).Scan(new(int64)); err != nil {
			return nil, sdk.WrapError(gorpmapping.Error(err), "unable to mirror build acl for %s on listing %d", username, listingID)
		}
	}

	return &sdk.PersonAcl{
		ID:              aclID,
		PersonListingID: personListingID,
		Acl:             acl,
		StatusCode:      statusCode,
	}, nil
}

// UpsertGroupAcl creates or updates the acl row held by given group on given
// listing, with the same commit to build mirroring as UpsertPersonAcl.
func UpsertGroupAcl(db gorp.SqlExecutor, listingID int64, groupName string, acl sdk.Acl, statusCode int) (*sdk.GroupAcl, error) {
	if !acl.IsGrantable() {
		return nil, sdk.NewErrorFrom(sdk.ErrValidation, "acl %q cannot be granted", acl)
	}

	var groupListingID int64
	if err := db.QueryRow(upsertGroupListingQuery, listingID, groupName).Scan(&groupListingID); err != nil {
		return nil, sdk.WrapError(gorpmapping.Error(err), "unable to upsert group listing for %s on listing %d", groupName, listingID)
	}

	var aclID int64
	if err := db.QueryRow(upsertGroupAclQuery, groupListingID, string(acl), statusCode).Scan(&aclID); err != nil {
		return nil, sdk.WrapError(gorpmapping.Error(err), "unable to upsert %s acl for group %s on listing %d", acl, groupName, listingID)
	}

	if acl == sdk.AclCommit {
		if err := db.QueryRow(upsertGroupAclQuery, groupListingID, string(sdk.AclBuild), statusCode).Scan(new(int64)); err != nil {
			return nil, sdk.WrapError(gorpmapping.Error(err), "unable to mirror build acl for group %s on listing %d", groupName, listingID)
		}
	}

	return &sdk.GroupAcl{
		ID:             aclID,
		GroupListingID: groupListingID,
		Acl:            acl,
		StatusCode:     statusCode,
	}, nil
}

// LoadPersonAcl returns the acl row held by given person on given listing,
// or false when there is none.
func LoadPersonAcl(db gorp.SqlExecutor, listingID int64, username string, acl sdk.Acl) (*sdk.PersonAcl, bool, error) {
	var res sdk.PersonAcl
	query := gorpmapping.NewQuery(`
		SELECT ppla.*
		FROM person_package_listing_acl ppla
		JOIN person_package_listing ppl ON ppl.id = ppla.person_listing_id
		WHERE ppl.package_listing_id = $1 AND ppl.username = $2 AND ppla.acl = $3`).
		Args(listingID, username, string(acl))
	found, err := gorpmapping.Get(db, query, &res)
	if err != nil {
		return nil, false, sdk.WrapError(err, "cannot load %s acl for %s on listing %d", acl, username, listingID)
	}
	return &res, found, nil
}

// LoadGroupAcl returns the acl row held by given group on given listing.
func LoadGroupAcl(db gorp.SqlExecutor, listingID int64, groupName string, acl sdk.Acl) (*sdk.GroupAcl, bool, error) {
	var res sdk.GroupAcl
	query := gorpmapping.NewQuery(`
		SELECT gpla.*
		FROM group_package_listing_acl gpla
		JOIN group_package_listing gpl ON gpl.id = gpla.group_listing_id
		WHERE gpl.package_listing_id = $1 AND gpl.group_name = $2 AND gpla.acl = $3`).
		Args(listingID, groupName, string(acl))
	found, err := gorpmapping.Get(db, query, &res)
	if err != nil {
		return nil, false, sdk.WrapError(err, "cannot load %s acl for group %s on listing %d", acl, groupName, listingID)
	}
	return &res, found, nil
}

// LoadPersonAclsByListing returns every person acl on given listing.
func LoadPersonAclsByListing(db gorp.SqlExecutor, listingID int64) ([]PersonAclDetail, error) {
	var res []PersonAclDetail
	query := gorpmapping.NewQuery(`
		SELECT ppl.username AS username, ppl.package_listing_id AS package_listing_id,
		       ppla.acl AS acl, ppla.statuscode AS statuscode
		FROM person_package_listing_acl ppla
		JOIN person_package_listing ppl ON ppl.id = ppla.person_listing_id
		WHERE ppl.package_listing_id = $1
		ORDER BY ppl.username, ppla.acl`).
		Args(listingID)
	if err := gorpmapping.GetAll(db, query, &res); err != nil {
		return nil, sdk.WrapError(err, "cannot load person acls on listing %d", listingID)
	}
	return res, nil
}

// LoadGroupAclsByListing returns every group acl on given listing.
func LoadGroupAclsByListing(db gorp.SqlExecutor, listingID int64) ([]GroupAclDetail, error) {
	var res []GroupAclDetail
	query := gorpmapping.NewQuery(`
		SELECT gpl.group_name AS group_name, gpl.package_listing_id AS package_listing_id,
		       gpla.acl AS acl, gpla.statuscode AS statuscode
		FROM group_package_listing_acl gpla
		JOIN group_package_listing gpl ON gpl.id = gpla.group_listing_id
		WHERE gpl.package_listing_id = $1
		ORDER BY gpl.group_name, gpla.acl`).
		Args(listingID)
	if err := gorpmapping.GetAll(db, query, &res); err != nil {
		return nil, sdk.WrapError(err, "cannot load group acls on listing %d", listingID)
	}
	return res, nil
}

// LoadPersonAclsByUser returns every acl given person holds on given listing.
func LoadPersonAclsByUser(db gorp.SqlExecutor, listingID int64, username string) ([]PersonAclDetail, error) {
	var res []PersonAclDetail
	query := gorpmapping.NewQuery(`
		SELECT ppl.username AS username, ppl.package_listing_id AS package_listing_id,
		       ppla.acl AS acl, ppla.statuscode AS statuscode
		FROM person_package_listing_acl ppla
		JOIN person_package_listing ppl ON ppl.id = ppla.person_listing_id
		WHERE ppl.package_listing_id = $1 AND ppl.username = $2
		ORDER BY ppla.acl`).
		Args(listingID, username)
	if err := gorpmapping.GetAll(db, query, &res); err != nil {
		return nil, sdk.WrapError(err, "cannot load acls of %s on listing %d", username, listingID)
	}
	return res, nil
}

// HasAclWithStatus returns true if given person holds given acl with given
// status code on given listing.
func HasAclWithStatus(db gorp.SqlExecutor, listingID int64, username string, acl sdk.Acl, statusCode int) (bool, error) {
	count, err := db.SelectInt(`
		SELECT COUNT(1)
		FROM person_package_listing_acl ppla
		JOIN person_package_listing ppl ON ppl.id = ppla.person_listing_id
		WHERE ppl.package_listing_id = $1 AND ppl.username = $2 AND ppla.acl = $3 AND ppla.statuscode = $4`,
		listingID, username, string(acl), statusCode)
	if err != nil {
		return false, sdk.WrapError(gorpmapping.Error(err), "cannot check %s acl for %s on listing %d", acl, username, listingID)
	}
	return count > 0, nil
}
