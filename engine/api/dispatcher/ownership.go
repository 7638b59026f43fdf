package dispatcher

import (
	"context"
	"fmt"

	"github.com/go-gorp/gorp"
	"github.com/rockbears/log"

	"github.com/fedora-infra/packagedb-sub000/engine/api/pkgstore"
	"github.com/fedora-infra/packagedb-sub000/engine/api/policy"
	"github.com/fedora-infra/packagedb-sub000/sdk"
)

// ToggleOwnership takes ownership of an orphaned listing for the actor, or
// releases an owned listing back to orphan. Releasing requires the Admin or
// Owner role. The bug tracker default assignee is reassigned best effort
// after the transaction commits.
func (d *Dispatcher) ToggleOwnership(ctx context.Context, listingID int64) (*sdk.PackageListing, error) {
	actor, err := d.actor(ctx)
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
	label := d.listingLabel(tx, listing)
	parties := d.interestedParties(tx, listing, actor.Username)

	retiredCode, err := d.Vocab.Code(sdk.StatusRetired)
	if err != nil {
		return nil, err
	}
	// A retired listing carries the orphan owner sentinel but is not up for
	// adoption. It has to go through ToggleRetirement first.
	if listing.StatusCode == retiredCode {
		return nil, sdk.NewErrorFrom(sdk.ErrForbidden, "%s is retired and must be unretired first", label)
	}

	var subject, body string
	if listing.Orphaned() {
		if err := d.Policy.AclMayBeHeldBy(ctx, sdk.AclOwner, actor); err != nil {
			return nil, err
		}
		if err := d.takeOwnership(tx, listing, actor.Username); err != nil {
			return nil, err
		}
		subject = fmt.Sprintf("%s ownership updated", label)
		body = fmt.Sprintf("Package %s was taken by %s", label, actor.Username)
	} else {
		role, err := d.Policy.CanAdministerAcls(ctx, tx, actor, listing)
		if err != nil {
			return nil, err
		}
		if role != policy.RoleAdmin && role != policy.RoleOwner {
			return nil, sdk.NewErrorFrom(sdk.ErrForbidden, "%s may not release ownership of %s", actor.Username, label)
		}
		if err := d.releaseOwnership(tx, listing, actor.Username); err != nil {
			return nil, err
		}
		subject = fmt.Sprintf("%s ownership updated", label)
		body = fmt.Sprintf("Package %s was orphaned by %s", label, actor.Username)
	}

	if err := commit(tx); err != nil {
		return nil, err
	}

	d.reassignTracker(ctx, listing)
	d.notify(ctx, parties, subject, body)
	return listing, nil
}

// ToggleRetirement retires a listing or brings a retired listing back to
// orphaned. Orphaned listings may be retired by anyone, owned listings by
// Admin or Owner (the listing is orphaned first), and only an Admin may
// unretire.
func (d *Dispatcher) ToggleRetirement(ctx context.Context, listingID int64) (*sdk.PackageListing, error) {
	actor, err := d.actor(ctx)
	if err != nil {
		return nil, err
	}

	retiredCode, err := d.Vocab.Code(sdk.StatusRetired)
	if err != nil {
		return nil, err
	}
	orphanedCode, err := d.Vocab.Code(sdk.StatusOrphaned)
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
	label := d.listingLabel(tx, listing)
	parties := d.interestedParties(tx, listing, actor.Username)

	var subject, body string
	switch {
	case listing.StatusCode == retiredCode:
		if !d.isAdmin(actor) {
			return nil, sdk.NewErrorFrom(sdk.ErrForbidden, "only an administrator may unretire %s", label)
		}
		listing.StatusCode = orphanedCode
		if err := pkgstore.UpdateListing(tx, listing); err != nil {
			return nil, err
		}
		if err := logChange(tx, sdk.LogKindListing, listing.ID, actor.Username, orphanedCode, "%s unretired %s", actor.Username, label); err != nil {
			return nil, err
		}
		subject = fmt.Sprintf("%s unretired", label)
		body = fmt.Sprintf("Package %s was unretired by %s", label, actor.Username)

	case listing.Orphaned():
		listing.StatusCode = retiredCode
		if err := pkgstore.UpdateListing(tx, listing); err != nil {
			return nil, err
		}
		if err := logChange(tx, sdk.LogKindListing, listing.ID, actor.Username, retiredCode, "%s retired %s", actor.Username, label); err != nil {
			return nil, err
		}
		subject = fmt.Sprintf("%s retired", label)
		body = fmt.Sprintf("Package %s was retired by %s", label, actor.Username)

	default:
		role, err := d.Policy.CanAdministerAcls(ctx, tx, actor, listing)
		if err != nil {
			return nil, err
		}
		if role != policy.RoleAdmin && role != policy.RoleOwner {
			return nil, sdk.NewErrorFrom(sdk.ErrForbidden, "%s may not retire %s", actor.Username, label)
		}
		if err := d.releaseOwnership(tx, listing, actor.Username); err != nil {
			return nil, err
		}
		listing.StatusCode = retiredCode
		if err := pkgstore.UpdateListing(tx, listing); err != nil {
			return nil, err
		}
		if err := logChange(tx, sdk.LogKindListing, listing.ID, actor.Username, retiredCode, "%s retired %s", actor.Username, label); err != nil {
			return nil, err
		}
		subject = fmt.Sprintf("%s retired", label)
		body = fmt.Sprintf("Package %s was orphaned and retired by %s", label, actor.Username)
	}

	if err := commit(tx); err != nil {
		return nil, err
	}

	d.notify(ctx, parties, subject, body)
	return listing, nil
}

func (d *Dispatcher) takeOwnership(tx gorp.SqlExecutor, listing *sdk.PackageListing, username string) error {
	ownedCode, err := d.Vocab.Code(sdk.StatusOwned)
	if err != nil {
		return err
	}
	listing.Owner = username
	listing.StatusCode = ownedCode
	if err := pkgstore.UpdateListing(tx, listing); err != nil {
		return err
	}
	return logChange(tx, sdk.LogKindListing, listing.ID, username, ownedCode, "%s took ownership of listing %d", username, listing.ID)
}

func (d *Dispatcher) releaseOwnership(tx gorp.SqlExecutor, listing *sdk.PackageListing, actor string) error {
	orphanedCode, err := d.Vocab.Code(sdk.StatusOrphaned)
	if err != nil {
		return err
	}
	listing.Owner = sdk.OrphanOwner
	listing.StatusCode = orphanedCode
	if err := pkgstore.UpdateListing(tx, listing); err != nil {
		return err
	}
	return logChange(tx, sdk.LogKindListing, listing.ID, actor, orphanedCode, "%s orphaned listing %d", actor, listing.ID)
}

// reassignTracker updates the bug tracker default assignee for the listing's
// component. Best effort: a failure is logged, never fatal.
func (d *Dispatcher) reassignTracker(ctx context.Context, listing *sdk.PackageListing) {
	db := d.DBFunc()
	if db == nil {
		return
	}
	pkg, err := pkgstore.LoadPackageByID(db, listing.PackageID)
	if err != nil {
		log.Warn(ctx, "dispatcher> cannot load package %d for tracker reassignment: %v", listing.PackageID, err)
		return
	}
	coll, err := pkgstore.LoadCollectionByID(db, listing.CollectionID)
	if err != nil {
		log.Warn(ctx, "dispatcher> cannot load collection %d for tracker reassignment: %v", listing.CollectionID, err)
		return
	}

	email := ""
	if !listing.Orphaned() {
		email, err = d.Directory.BugzillaEmail(ctx, listing.Owner)
		if err != nil {
			log.Warn(ctx, "dispatcher> cannot resolve tracker address of %s: %v", listing.Owner, err)
			return
		}
	}
	if email == "" {
		return
	}
	if err := d.BugTracker.ReassignDefaultOwner(ctx, pkg.Name, coll.Name, email); err != nil {
		log.Warn(ctx, "dispatcher> cannot reassign tracker component %s: %v", pkg.Name, err)
	}
}
