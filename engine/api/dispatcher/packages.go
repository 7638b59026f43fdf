package dispatcher

import (
	"context"
	"fmt"

	"github.com/go-gorp/gorp"

	"github.com/fedora-infra/packagedb-sub000/engine/api/aclstore"
	"github.com/fedora-infra/packagedb-sub000/engine/api/pkgstore"
	"github.com/fedora-infra/packagedb-sub000/sdk"
)

// comaintainerAcls are granted to every comaintainer named in an edit.
var comaintainerAcls = []sdk.Acl{
	sdk.AclWatchBugzilla,
	sdk.AclWatchCommits,
	sdk.AclCommit,
	sdk.AclApproveAcls,
}

// defaultGroupAcls are pre-approved for the provenpackager group on every new
// listing.
var defaultGroupAcls = []sdk.Acl{
	sdk.AclCommit,
	sdk.AclCheckout,
}

// AddPackage creates a package, its initial listing on the devel collection
// and the default group acls. Admin only, rejected when the name is taken.
func (d *Dispatcher) AddPackage(ctx context.Context, name, ownerName, summary string) (*sdk.Package, error) {
	actor, err := d.actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := d.requireAdmin(actor); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, sdk.NewErrorFrom(sdk.ErrValidation, "empty package name")
	}

	owner, err := d.Directory.ResolveUser(ctx, ownerName)
	if err != nil {
		return nil, err
	}
	if err := d.Policy.AclMayBeHeldBy(ctx, sdk.AclOwner, owner); err != nil {
		return nil, err
	}

	approvedCode, err := d.Vocab.Code(sdk.StatusApproved)
	if err != nil {
		return nil, err
	}
	addedCode, err := d.Vocab.Code(sdk.StatusAdded)
	if err != nil {
		return nil, err
	}

	tx, err := d.begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() // nolint

	if _, err := pkgstore.LoadPackageByName(tx, name); err == nil {
		return nil, sdk.NewErrorFrom(sdk.ErrAlreadyExists, "package %s already exists", name)
	} else if !sdk.ErrorIs(err, sdk.ErrNotFound) {
		return nil, err
	}

	devel, err := pkgstore.LoadCollectionByBranchName(tx, d.DevelBranchName)
	if err != nil {
		return nil, err
	}

	pkg := &sdk.Package{
		Name:       name,
		Summary:    summary,
		StatusCode: approvedCode,
		ShouldOpen: true,
	}
	if err := pkgstore.InsertPackage(tx, pkg); err != nil {
		return nil, err
	}
	if err := logChange(tx, sdk.LogKindPackage, pkg.ID, actor.Username, addedCode, "%s added package %s", actor.Username, name); err != nil {
		return nil, err
	}
	if err := logChange(tx, sdk.LogKindPackage, pkg.ID, actor.Username, approvedCode, "%s approved package %s", actor.Username, name); err != nil {
		return nil, err
	}

	listing := &sdk.PackageListing{
		PackageID:    pkg.ID,
		CollectionID: devel.ID,
		Owner:        owner.Username,
		StatusCode:   approvedCode,
	}
	if err := pkgstore.InsertListing(tx, listing); err != nil {
		return nil, err
	}
	if err := logChange(tx, sdk.LogKindListing, listing.ID, actor.Username, addedCode,
		"%s added a %s %s listing for %s with owner %s", actor.Username, devel.Name, devel.Version, name, owner.Username); err != nil {
		return nil, err
	}
	if err := logChange(tx, sdk.LogKindListing, listing.ID, actor.Username, approvedCode,
		"%s approved the %s %s listing of %s", actor.Username, devel.Name, devel.Version, name); err != nil {
		return nil, err
	}

	if err := d.grantDefaultGroupAcls(tx, actor.Username, listing); err != nil {
		return nil, err
	}

	if err := commit(tx); err != nil {
		return nil, err
	}

	d.notify(ctx, []string{actor.Username, owner.Username},
		fmt.Sprintf("%s was added for %s", name, owner.Username),
		fmt.Sprintf("%s has added package %s (%s) with owner %s", actor.Username, name, summary, owner.Username))
	return pkg, nil
}

// EditPackageRequest is a partial update: nil or empty fields are untouched.
type EditPackageRequest struct {
	Summary       *string         `json:"summary,omitempty"`
	Description   *string         `json:"description,omitempty"`
	Owner         *string         `json:"owner,omitempty"`
	Collections   []string        `json:"collections,omitempty"` // branch names that must carry a listing
	CCList        []string        `json:"cclist,omitempty"`
	Comaintainers []string        `json:"comaintainers,omitempty"`
	GroupCommit   map[string]bool `json:"group_commit,omitempty"`
}

// EditPackage applies a partial update to a package and its listings. Admin
// only. New collections get a listing cloned from the devel one, owner
// reassignment is re-validated against the ownership policy, and every named
// comaintainer is validated before any acl is written.
func (d *Dispatcher) EditPackage(ctx context.Context, name string, req EditPackageRequest) (*sdk.Package, error) {
	actor, err := d.actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := d.requireAdmin(actor); err != nil {
		return nil, err
	}

	approvedCode, err := d.Vocab.Code(sdk.StatusApproved)
	if err != nil {
		return nil, err
	}
	modifiedCode, err := d.Vocab.Code(sdk.StatusModified)
	if err != nil {
		return nil, err
	}
	ownedCode, err := d.Vocab.Code(sdk.StatusOwned)
	if err != nil {
		return nil, err
	}
	deniedCode, err := d.Vocab.Code(sdk.StatusDenied)
	if err != nil {
		return nil, err
	}

	var newOwner *sdk.AccountUser
	if req.Owner != nil {
		newOwner, err = d.Directory.ResolveUser(ctx, *req.Owner)
		if err != nil {
			return nil, err
		}
		if err := d.Policy.AclMayBeHeldBy(ctx, sdk.AclOwner, newOwner); err != nil {
			return nil, err
		}
	}

	// validate every comaintainer before any mutation
	comaintainers := make([]*sdk.AccountUser, 0, len(req.Comaintainers))
	for _, username := range req.Comaintainers {
		u, err := d.Directory.ResolveUser(ctx, username)
		if err != nil {
			return nil, err
		}
		if err := d.Policy.AclMayBeHeldBy(ctx, sdk.AclApproveAcls, u); err != nil {
			return nil, err
		}
		comaintainers = append(comaintainers, u)
	}

	tx, err := d.begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() // nolint

	pkg, err := pkgstore.LoadPackageByName(tx, name)
	if err != nil {
		return nil, err
	}

	if req.Summary != nil || req.Description != nil {
		if req.Summary != nil {
			pkg.Summary = *req.Summary
		}
		if req.Description != nil {
			pkg.Description = *req.Description
		}
		if err := pkgstore.UpdatePackage(tx, pkg); err != nil {
			return nil, err
		}
		if err := logChange(tx, sdk.LogKindPackage, pkg.ID, actor.Username, modifiedCode, "%s edited package %s", actor.Username, name); err != nil {
			return nil, err
		}
	}

	// make sure every named collection carries a listing
	for _, branch := range req.Collections {
		coll, err := pkgstore.LoadCollectionByBranchName(tx, branch)
		if err != nil {
			return nil, err
		}
		if _, err := pkgstore.LoadListing(tx, pkg.ID, coll.ID); err == nil {
			continue
		} else if !sdk.ErrorIs(err, sdk.ErrNoPackageListings) {
			return nil, err
		}
		if _, err := d.createListingFromDevel(tx, actor.Username, pkg, coll.ID); err != nil {
			return nil, err
		}
	}

	// scope of the acl and ownership updates: the named collections, or every
	// listing when none is named
	listings, err := d.scopeListings(tx, pkg, req.Collections)
	if err != nil {
		return nil, err
	}

	for i := range listings {
		listing := &listings[i]
		label := d.listingLabel(tx, listing)

		if newOwner != nil && listing.Owner != newOwner.Username {
			listing.Owner = newOwner.Username
			listing.StatusCode = ownedCode
			if err := pkgstore.UpdateListing(tx, listing); err != nil {
				return nil, err
			}
			if err := logChange(tx, sdk.LogKindListing, listing.ID, actor.Username, ownedCode,
				"%s changed the owner of %s to %s", actor.Username, label, newOwner.Username); err != nil {
				return nil, err
			}
		}

		for _, u := range comaintainers {
			for _, acl := range comaintainerAcls {
				record, err := aclstore.UpsertPersonAcl(tx, listing.ID, u.Username, acl, approvedCode)
				if err != nil {
					return nil, err
				}
				if err := logChange(tx, sdk.LogKindPersonAcl, record.ID, actor.Username, approvedCode,
					"%s approved the %s acl of %s on %s", actor.Username, acl, u.Username, label); err != nil {
					return nil, err
				}
			}
		}

		for _, username := range req.CCList {
			for _, acl := range []sdk.Acl{sdk.AclWatchBugzilla, sdk.AclWatchCommits} {
				record, err := aclstore.UpsertPersonAcl(tx, listing.ID, username, acl, approvedCode)
				if err != nil {
					return nil, err
				}
				if err := logChange(tx, sdk.LogKindPersonAcl, record.ID, actor.Username, approvedCode,
					"%s approved the %s acl of %s on %s", actor.Username, acl, username, label); err != nil {
					return nil, err
				}
			}
		}

		for groupName, allowed := range req.GroupCommit {
			code := approvedCode
			statusName := sdk.StatusApproved
			if !allowed {
				code = deniedCode
				statusName = sdk.StatusDenied
			}
			record, err := aclstore.UpsertGroupAcl(tx, listing.ID, groupName, sdk.AclCommit, code)
			if err != nil {
				return nil, err
			}
			if err := logChange(tx, sdk.LogKindGroupAcl, record.ID, actor.Username, code,
				"%s set the commit acl of group %s on %s to %s", actor.Username, groupName, label, statusName); err != nil {
				return nil, err
			}
		}
	}

	if err := commit(tx); err != nil {
		return nil, err
	}

	d.notify(ctx, []string{actor.Username}, fmt.Sprintf("%s updated", name),
		fmt.Sprintf("%s has edited package %s", actor.Username, name))
	return pkg, nil
}

// CloneBranch copies every person and group acl of a package from the source
// branch listing to the target branch listing, creating the target listing
// when absent. Admin only and idempotent: re-cloning updates instead of
// duplicating.
func (d *Dispatcher) CloneBranch(ctx context.Context, packageName, targetBranch, sourceBranch string) (*sdk.PackageListing, error) {
	actor, err := d.actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := d.requireAdmin(actor); err != nil {
		return nil, err
	}

	addedCode, err := d.Vocab.Code(sdk.StatusAdded)
	if err != nil {
		return nil, err
	}

	tx, err := d.begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() // nolint

	pkg, err := pkgstore.LoadPackageByName(tx, packageName)
	if err != nil {
		return nil, err
	}
	sourceColl, err := pkgstore.LoadCollectionByBranchName(tx, sourceBranch)
	if err != nil {
		return nil, err
	}
	targetColl, err := pkgstore.LoadCollectionByBranchName(tx, targetBranch)
	if err != nil {
		return nil, err
	}

	source, err := pkgstore.LoadListing(tx, pkg.ID, sourceColl.ID)
	if err != nil {
		if sdk.ErrorIs(err, sdk.ErrNoPackageListings) {
			return nil, sdk.NewErrorFrom(sdk.ErrCannotClone, "%s has no listing on branch %s", packageName, sourceBranch)
		}
		return nil, err
	}

	target, err := pkgstore.LoadListing(tx, pkg.ID, targetColl.ID)
	if err != nil {
		if !sdk.ErrorIs(err, sdk.ErrNoPackageListings) {
			return nil, err
		}
		target = &sdk.PackageListing{
			PackageID:    pkg.ID,
			CollectionID: targetColl.ID,
			Owner:        source.Owner,
			QAContact:    source.QAContact,
			StatusCode:   source.StatusCode,
			Critpath:     source.Critpath,
		}
		if err := pkgstore.InsertListing(tx, target); err != nil {
			return nil, err
		}
		if err := logChange(tx, sdk.LogKindListing, target.ID, actor.Username, addedCode,
			"%s added a listing for %s on branch %s cloned from %s", actor.Username, packageName, targetBranch, sourceBranch); err != nil {
			return nil, err
		}
	}

	personAcls, err := aclstore.LoadPersonAclsByListing(tx, source.ID)
	if err != nil {
		return nil, err
	}
	for _, a := range personAcls {
		if _, err := aclstore.UpsertPersonAcl(tx, target.ID, a.Username, a.Acl, a.StatusCode); err != nil {
			return nil, err
		}
	}

	groupAcls, err := aclstore.LoadGroupAclsByListing(tx, source.ID)
	if err != nil {
		return nil, err
	}
	for _, a := range groupAcls {
		if _, err := aclstore.UpsertGroupAcl(tx, target.ID, a.GroupName, a.Acl, a.StatusCode); err != nil {
			return nil, err
		}
	}

	if err := logChange(tx, sdk.LogKindListing, target.ID, actor.Username, target.StatusCode,
		"%s cloned %d person acls and %d group acls of %s from %s to %s",
		actor.Username, len(personAcls), len(groupAcls), packageName, sourceBranch, targetBranch); err != nil {
		return nil, err
	}

	parties := d.interestedParties(tx, target, actor.Username)
	if err := commit(tx); err != nil {
		return nil, err
	}

	d.notify(ctx, parties,
		fmt.Sprintf("%s branched to %s", packageName, targetBranch),
		fmt.Sprintf("%s has cloned branch %s of %s from %s", actor.Username, targetBranch, packageName, sourceBranch))
	return target, nil
}

// createListingFromDevel creates a listing on given collection mirroring the
// devel listing's owner and group acls.
func (d *Dispatcher) createListingFromDevel(tx gorp.SqlExecutor, actor string, pkg *sdk.Package, collectionID int64) (*sdk.PackageListing, error) {
	approvedCode, err := d.Vocab.Code(sdk.StatusApproved)
	if err != nil {
		return nil, err
	}
	addedCode, err := d.Vocab.Code(sdk.StatusAdded)
	if err != nil {
		return nil, err
	}

	devel, err := pkgstore.LoadCollectionByBranchName(tx, d.DevelBranchName)
	if err != nil {
		return nil, err
	}

	owner := sdk.OrphanOwner
	critpath := false
	var groupAcls []aclstore.GroupAclDetail
	develListing, err := pkgstore.LoadListing(tx, pkg.ID, devel.ID)
	if err == nil {
		owner = develListing.Owner
		critpath = develListing.Critpath
		groupAcls, err = aclstore.LoadGroupAclsByListing(tx, develListing.ID)
		if err != nil {
			return nil, err
		}
	} else if !sdk.ErrorIs(err, sdk.ErrNoPackageListings) {
		return nil, err
	}

	listing := &sdk.PackageListing{
		PackageID:    pkg.ID,
		CollectionID: collectionID,
		Owner:        owner,
		StatusCode:   approvedCode,
		Critpath:     critpath,
	}
	if err := pkgstore.InsertListing(tx, listing); err != nil {
		return nil, err
	}
	if err := logChange(tx, sdk.LogKindListing, listing.ID, actor, addedCode,
		"%s added a listing for %s on collection %d", actor, pkg.Name, collectionID); err != nil {
		return nil, err
	}

	if len(groupAcls) == 0 {
		return listing, d.grantDefaultGroupAcls(tx, actor, listing)
	}
	for _, a := range groupAcls {
		if _, err := aclstore.UpsertGroupAcl(tx, listing.ID, a.GroupName, a.Acl, a.StatusCode); err != nil {
			return nil, err
		}
	}
	return listing, nil
}

// grantDefaultGroupAcls pre-approves the provenpackager group acls on a new
// listing: commit (which mirrors to build) and checkout.
func (d *Dispatcher) grantDefaultGroupAcls(tx gorp.SqlExecutor, actor string, listing *sdk.PackageListing) error {
	approvedCode, err := d.Vocab.Code(sdk.StatusApproved)
	if err != nil {
		return err
	}
	groupName := d.Policy.Conf.ProvenPackagerGroup
	for _, acl := range defaultGroupAcls {
		record, err := aclstore.UpsertGroupAcl(tx, listing.ID, groupName, acl, approvedCode)
		if err != nil {
			return err
		}
		if err := logChange(tx, sdk.LogKindGroupAcl, record.ID, actor, approvedCode,
			"%s approved the %s acl of group %s on listing %d", actor, acl, groupName, listing.ID); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) scopeListings(tx gorp.SqlExecutor, pkg *sdk.Package, branchNames []string) ([]sdk.PackageListing, error) {
	if len(branchNames) == 0 {
		return pkgstore.LoadListingsByPackage(tx, pkg.ID)
	}
	var res []sdk.PackageListing
	for _, branch := range branchNames {
		coll, err := pkgstore.LoadCollectionByBranchName(tx, branch)
		if err != nil {
			return nil, err
		}
		listing, err := pkgstore.LoadListing(tx, pkg.ID, coll.ID)
		if err != nil {
			return nil, err
		}
		res = append(res, *listing)
	}
	return res, nil
}
