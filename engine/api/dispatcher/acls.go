package dispatcher

import (
	"context"
	"fmt"

	"github.com/fedora-infra/packagedb-sub000/engine/api/aclstore"
	"github.com/fedora-infra/packagedb-sub000/engine/api/pkgstore"
	"github.com/fedora-infra/packagedb-sub000/engine/api/policy"
	"github.com/fedora-infra/packagedb-sub000/sdk"
)

// SetAclStatus sets the status of a person's acl on a listing. The actor must
// hold an administration role on the listing, and a grant (anything but
// Denied or Obsolete) requires the candidate to be eligible for the acl.
func (d *Dispatcher) SetAclStatus(ctx context.Context, listingID int64, personName string, acl sdk.Acl, statusName sdk.Status) (*sdk.PersonAcl, error) {
	actor, err := d.actor(ctx)
	if err != nil {
		return nil, err
	}

	if statusName == "" {
		// The legacy UI sent an empty string to mean Obsolete. That mapping
		// lives at the HTTP edge now, the engine refuses it.
		return nil, sdk.NewErrorFrom(sdk.ErrValidation, "empty status name")
	}
	if !aclstore.IsGrantStatus(statusName) {
		return nil, sdk.NewErrorFrom(sdk.ErrValidation, "status %q cannot be set on an acl", statusName)
	}
	if !acl.IsGrantable() {
		return nil, sdk.NewErrorFrom(sdk.ErrValidation, "unknown acl %q", acl)
	}
	statusCode, err := d.Vocab.Code(statusName)
	if err != nil {
		return nil, err
	}

	candidate, err := d.Directory.ResolveUser(ctx, personName)
	if err != nil {
		return nil, err
	}

	// granting requires eligibility, revoking does not
	if statusName != sdk.StatusDenied && statusName != sdk.StatusObsolete {
		if err := d.Policy.AclMayBeHeldBy(ctx, acl, candidate); err != nil {
			return nil, err
		}
	}

	tx, err := d.begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() // nolint

	listing, err := pkgstore.LoadListingByID(tx, listingID)
	if err != nil {
		return nil, err
	}

	role, err := d.Policy.CanAdministerAcls(ctx, tx, actor, listing)
	if err != nil {
		return nil, err
	}
	if role == policy.RoleDenied {
		return nil, sdk.NewErrorFrom(sdk.ErrForbidden, "%s may not administer acls on listing %d", actor.Username, listingID)
	}

	record, err := aclstore.UpsertPersonAcl(tx, listing.ID, candidate.Username, acl, statusCode)
	if err != nil {
		return nil, err
	}

	label := d.listingLabel(tx, listing)
	if err := logChange(tx, sdk.LogKindPersonAcl, record.ID, actor.Username, statusCode,
		"%s set the %s acl of %s on %s to %s", actor.Username, acl, candidate.Username, label, statusName); err != nil {
		return nil, err
	}

	parties := d.interestedParties(tx, listing, actor.Username)
	if err := commit(tx); err != nil {
		return nil, err
	}

	d.notify(ctx, parties,
		fmt.Sprintf("%s acls updated", label),
		fmt.Sprintf("%s has set the %s acl on %s to %s for %s", actor.Username, acl, label, statusName, candidate.Username))
	return record, nil
}

// ToggleGroupAcl flips the named group's acl on a listing between Approved
// and Denied. Admin only, this backs the "open to provenpackager" switch.
func (d *Dispatcher) ToggleGroupAcl(ctx context.Context, listingID int64, groupName string, acl sdk.Acl) (*sdk.GroupAcl, error) {
	actor, err := d.actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := d.requireAdmin(actor); err != nil {
		return nil, err
	}
	if !acl.IsGrantable() {
		return nil, sdk.NewErrorFrom(sdk.ErrValidation, "unknown acl %q", acl)
	}

	approvedCode, err := d.Vocab.Code(sdk.StatusApproved)
	if err != nil {
		return nil, err
	}
	deniedCode, err := d.Vocab.Code(sdk.StatusDenied)
	if err != nil {
		return nil, err
	}

	tx, err := d.begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() // nolint

	listing, err := pkgstore.LoadListingByID(tx, listingID)
	if err != nil {
		return nil, err
	}

	current, exists, err := aclstore.LoadGroupAcl(tx, listing.ID, groupName, acl)
	if err != nil {
		return nil, err
	}
	next := approvedCode
	nextName := sdk.StatusApproved
	if exists && current.StatusCode == approvedCode {
		next = deniedCode
		nextName = sdk.StatusDenied
	}

	record, err := aclstore.UpsertGroupAcl(tx, listing.ID, groupName, acl, next)
	if err != nil {
		return nil, err
	}

	label := d.listingLabel(tx, listing)
	if err := logChange(tx, sdk.LogKindGroupAcl, record.ID, actor.Username, next,
		"%s set the %s acl of group %s on %s to %s", actor.Username, acl, groupName, label, nextName); err != nil {
		return nil, err
	}

	parties := d.interestedParties(tx, listing, actor.Username)
	if err := commit(tx); err != nil {
		return nil, err
	}

	d.notify(ctx, parties,
		fmt.Sprintf("%s group acls updated", label),
		fmt.Sprintf("%s has set the %s acl of group %s on %s to %s", actor.Username, acl, groupName, label, nextName))
	return record, nil
}

// ToggleAclRequest requests or withdraws the actor's own acl on a listing,
// following the acl state machine: absent, obsolete or denied acls get
// (re-)requested, pending or held acls get withdrawn.
func (d *Dispatcher) ToggleAclRequest(ctx context.Context, listingID int64, acl sdk.Acl) (*sdk.PersonAcl, error) {
	actor, err := d.actor(ctx)
	if err != nil {
		return nil, err
	}
	if !acl.IsGrantable() {
		return nil, sdk.NewErrorFrom(sdk.ErrValidation, "unknown acl %q", acl)
	}

	tx, err := d.begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() // nolint

	listing, err := pkgstore.LoadListingByID(tx, listingID)
	if err != nil {
		return nil, err
	}

	current, exists, err := aclstore.LoadPersonAcl(tx, listing.ID, actor.Username, acl)
	if err != nil {
		return nil, err
	}
	var currentName sdk.Status
	if exists {
		currentName, err = d.Vocab.Name(current.StatusCode)
		if err != nil {
			return nil, err
		}
	}

	nextName := aclstore.ToggleRequest(acl, currentName, exists)
	if nextName != sdk.StatusObsolete {
		if err := d.Policy.AclMayBeHeldBy(ctx, acl, actor); err != nil {
			return nil, err
		}
	}
	nextCode, err := d.Vocab.Code(nextName)
	if err != nil {
		return nil, err
	}

	record, err := aclstore.UpsertPersonAcl(tx, listing.ID, actor.Username, acl, nextCode)
	if err != nil {
		return nil, err
	}

	label := d.listingLabel(tx, listing)
	if err := logChange(tx, sdk.LogKindPersonAcl, record.ID, actor.Username, nextCode,
		"%s set their %s acl on %s to %s", actor.Username, acl, label, nextName); err != nil {
		return nil, err
	}

	parties := d.interestedParties(tx, listing, actor.Username)
	if err := commit(tx); err != nil {
		return nil, err
	}

	d.notify(ctx, parties,
		fmt.Sprintf("%s acls updated", label),
		fmt.Sprintf("%s has set their %s acl on %s to %s", actor.Username, acl, label, nextName))
	return record, nil
}

// RemoveUser sets every acl given user holds on the named collections of a
// package (every collection when none is named) to Obsolete. Admin only.
func (d *Dispatcher) RemoveUser(ctx context.Context, username, packageName string, branchNames []string) ([]sdk.PersonAcl, error) {
	actor, err := d.actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := d.requireAdmin(actor); err != nil {
		return nil, err
	}

	obsoleteCode, err := d.Vocab.Code(sdk.StatusObsolete)
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

	var listings []sdk.PackageListing
	if len(branchNames) == 0 {
		listings, err = pkgstore.LoadListingsByPackage(tx, pkg.ID)
		if err != nil {
			return nil, err
		}
	} else {
		for _, branch := range branchNames {
			coll, err := pkgstore.LoadCollectionByBranchName(tx, branch)
			if err != nil {
				return nil, err
			}
			listing, err := pkgstore.LoadListing(tx, pkg.ID, coll.ID)
			if err != nil {
				return nil, err
			}
			listings = append(listings, *listing)
		}
	}
	if len(listings) == 0 {
		return nil, sdk.NewErrorFrom(sdk.ErrNoPackageListings, "package %s has no listings", packageName)
	}

	var obsoleted []sdk.PersonAcl
	var touched []string
	for i := range listings {
		listing := &listings[i]
		acls, err := aclstore.LoadPersonAclsByUser(tx, listing.ID, username)
		if err != nil {
			return nil, err
		}
		for _, a := range acls {
			if a.StatusCode == obsoleteCode {
				continue
			}
			record, err := aclstore.UpsertPersonAcl(tx, listing.ID, username, a.Acl, obsoleteCode)
			if err != nil {
				return nil, err
			}
			label := d.listingLabel(tx, listing)
			if err := logChange(tx, sdk.LogKindPersonAcl, record.ID, actor.Username, obsoleteCode,
				"%s obsoleted the %s acl of %s on %s", actor.Username, a.Acl, username, label); err != nil {
				return nil, err
			}
			obsoleted = append(obsoleted, *record)
			touched = append(touched, fmt.Sprintf("%s on %s", a.Acl, label))
		}
	}

	if err := commit(tx); err != nil {
		return nil, err
	}

	if len(touched) > 0 {
		d.notify(ctx, []string{actor.Username, username},
			fmt.Sprintf("%s removed from %s", username, packageName),
			fmt.Sprintf("%s has obsoleted the acls of %s: %v", actor.Username, username, touched))
	}
	return obsoleted, nil
}
