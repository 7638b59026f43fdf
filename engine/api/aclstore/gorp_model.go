package aclstore

import (
	"github.com/fedora-infra/packagedb-sub000/engine/api/database/gorpmapping"
	"github.com/fedora-infra/packagedb-sub000/sdk"
)

func init() {
	gorpmapping.Register(
		gorpmapping.New(sdk.PersonListing{}, "person_package_listing", true, "id"),
		gorpmapping.New(sdk.GroupListing{}, "group_package_listing", true, "id"),
		gorpmapping.New(sdk.PersonAcl{}, "person_package_listing_acl", true, "id"),
		gorpmapping.New(sdk.GroupAcl{}, "group_package_listing_acl", true, "id"),
	)
}

// PersonAclDetail is a person acl joined with its holder and listing.
type PersonAclDetail struct {
	Username         string  `db:"username"`
	PackageListingID int64   `db:"package_listing_id"`
	Acl              sdk.Acl `db:"acl"`
	StatusCode       int     `db:"statuscode"`
}

// GroupAclDetail is a group acl joined with its holder and listing.
type GroupAclDetail struct {
	GroupName        string  `db:"group_name"`
	PackageListingID int64   `db:"package_listing_id"`
	Acl              sdk.Acl `db:"acl"`
	StatusCode       int     `db:"statuscode"`
}
