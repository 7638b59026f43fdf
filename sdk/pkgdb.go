package sdk

import (
	"time"
)

// OrphanOwner is the sentinel owner of a listing with no current human owner.
// Orphaned listings are adoptable by any principal eligible for ownership.
const OrphanOwner = "orphan"

// Acl is a named permission grantable to a person or a group on a package
// listing. AclOwner is not a stored grant, it only names the ownership
// eligibility rule.
type Acl string

const (
	AclOwner         Acl = "owner"
	AclApproveAcls   Acl = "approveacls"
	AclCommit        Acl = "commit"
	AclBuild         Acl = "build"
	AclCheckout      Acl = "checkout"
	AclWatchBugzilla Acl = "watchbugzilla"
	AclWatchCommits  Acl = "watchcommits"
)

// GrantableAcls are the acls that may exist as rows on a listing.
var GrantableAcls = []Acl{
	AclApproveAcls,
	AclCommit,
	AclBuild,
	AclCheckout,
	AclWatchBugzilla,
	AclWatchCommits,
}

// IsGrantable returns true if given acl may be stored on a listing.
func (a Acl) IsGrantable() bool {
	for _, g := range GrantableAcls {
		if g == a {
			return true
		}
	}
	return false
}

// AutoApproved returns true for the watch acls, which skip the review state
// and go straight to Approved when requested.
func (a Acl) AutoApproved() bool {
	return a == AclWatchBugzilla || a == AclWatchCommits
}

// Package is a distinct piece of software, unversioned. It is never deleted,
// only soft-disabled through its status.
type Package struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Summary     string `json:"summary" db:"summary"`
	Description string `json:"description" db:"description"`
	StatusCode  int    `json:"statuscode" db:"statuscode"`
	ShouldOpen  bool   `json:"shouldopen" db:"shouldopen"` // open acls to provenpackager
}

// BranchInfo carries the VCS data of a collection that has a physical branch.
type BranchInfo struct {
	BranchName string `json:"branchname"`
	DistTag    string `json:"disttag"`
	ParentID   int64  `json:"parent_id,omitempty"` // source collection of the clone lineage, 0 if none
}

// Collection is a distribution release line. Branch is set when the
// collection has a corresponding VCS branch.
type Collection struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Version    string      `json:"version"`
	StatusCode int         `json:"statuscode"`
	Owner      string      `json:"owner"`
	Branch     *BranchInfo `json:"branch,omitempty"`
}

// PackageListing binds one package to one collection. It is the unit acls
// attach to. StatusChange is touched by the store every time StatusCode
// changes.
type PackageListing struct {
	ID           int64     `json:"id" db:"id"`
	PackageID    int64     `json:"package_id" db:"package_id"`
	CollectionID int64     `json:"collection_id" db:"collection_id"`
	Owner        string    `json:"owner" db:"owner"`
	QAContact    string    `json:"qacontact" db:"qacontact"`
	StatusCode   int       `json:"statuscode" db:"statuscode"`
	Critpath     bool      `json:"critpath" db:"critpath"`
	StatusChange time.Time `json:"statuschange" db:"statuschange"`
}

// Orphaned returns true if the listing has no current human owner.
func (l PackageListing) Orphaned() bool {
	return l.Owner == OrphanOwner
}

// PersonListing associates one person with one package listing. It is created
// lazily the first time an acl is granted to that person on that listing.
type PersonListing struct {
	ID               int64  `json:"id" db:"id"`
	PackageListingID int64  `json:"package_listing_id" db:"package_listing_id"`
	Username         string `json:"username" db:"username"`
}

// GroupListing associates one group with one package listing.
type GroupListing struct {
	ID               int64  `json:"id" db:"id"`
	PackageListingID int64  `json:"package_listing_id" db:"package_listing_id"`
	GroupName        string `json:"group_name" db:"group_name"`
}

// PersonAcl is an acl grant held by a person on a listing. At most one row
// exists per (person listing, acl), enforced by a unique constraint.
type PersonAcl struct {
	ID              int64 `json:"id" db:"id"`
	PersonListingID int64 `json:"person_listing_id" db:"person_listing_id"`
	Acl             Acl   `json:"acl" db:"acl"`
	StatusCode      int   `json:"statuscode" db:"statuscode"`
}

// GroupAcl is an acl grant held by a group on a listing.
type GroupAcl struct {
	ID             int64 `json:"id" db:"id"`
	GroupListingID int64 `json:"group_listing_id" db:"group_listing_id"`
	Acl            Acl   `json:"acl" db:"acl"`
	StatusCode     int   `json:"statuscode" db:"statuscode"`
}

// AccountUser is a principal resolved from the account directory.
type AccountUser struct {
	ID            int64    `json:"id"`
	Username      string   `json:"username"`
	BugzillaEmail string   `json:"bugzilla_email"`
	Groups        []string `json:"groups"`
}

// InAnyGroup returns true if the user belongs to at least one of given groups.
func (u AccountUser) InAnyGroup(names ...string) bool {
	for _, n := range names {
		for _, g := range u.Groups {
			if g == n {
				return true
			}
		}
	}
	return false
}

// MonitoringStatusLine is one line of the monitoring status handler.
type MonitoringStatusLine struct {
	Component string `json:"component"`
	Value     string `json:"value"`
	Status    string `json:"status"`
}

const (
	MonitoringStatusOK    = "OK"
	MonitoringStatusWarn  = "WARN"
	MonitoringStatusAlert = "AL"
)
