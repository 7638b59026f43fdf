package policy

import (
	"context"
	"strings"

	"github.com/go-gorp/gorp"

	"github.com/fedora-infra/packagedb-sub000/engine/api/aclstore"
	"github.com/fedora-infra/packagedb-sub000/engine/api/bugtracker"
	"github.com/fedora-infra/packagedb-sub000/sdk"
)

// Role is the outcome of an acl administration check on a listing.
type Role string

const (
	RoleAdmin        Role = "Admin"
	RoleOwner        Role = "Owner"
	RoleComaintainer Role = "Comaintainer"
	RoleDenied       Role = "Denied"
)

// Configuration is the exposed configuration of the policy engine.
type Configuration struct {
	AdminGroup          string   `toml:"adminGroup" default:"cvsadmin" json:"adminGroup"`
	OwnerGroups         []string `toml:"ownerGroups" json:"ownerGroups"`
	ComaintainerGroups  []string `toml:"comaintainerGroups" json:"comaintainerGroups"`
	ProvenPackagerGroup string   `toml:"provenPackagerGroup" default:"provenpackager" json:"provenPackagerGroup"`
	PseudoUserIDCeiling int64    `toml:"pseudoUserIDCeiling" default:"10000" json:"pseudoUserIDCeiling"`
}

// Normalize fills the group sets left empty by the configuration file.
func (c *Configuration) Normalize() {
	if c.AdminGroup == "" {
		c.AdminGroup = "cvsadmin"
	}
	if c.ProvenPackagerGroup == "" {
		c.ProvenPackagerGroup = "provenpackager"
	}
	if len(c.OwnerGroups) == 0 {
		c.OwnerGroups = []string{c.AdminGroup, "packager", c.ProvenPackagerGroup}
	}
	if len(c.ComaintainerGroups) == 0 {
		c.ComaintainerGroups = []string{c.AdminGroup, "packager", c.ProvenPackagerGroup}
	}
	if c.PseudoUserIDCeiling == 0 {
		c.PseudoUserIDCeiling = 10000
	}
}

// Engine decides who may administer acls on a listing and who may hold a
// given acl.
type Engine struct {
	Conf       Configuration
	BugTracker bugtracker.Client
	Vocab      sdk.StatusVocabulary
}

// New returns a policy engine on given configuration.
func New(conf Configuration, tracker bugtracker.Client, vocab sdk.StatusVocabulary) *Engine {
	conf.Normalize()
	return &Engine{Conf: conf, BugTracker: tracker, Vocab: vocab}
}

// CanAdministerAcls returns the role under which given actor may set acls on
// given listing. The resolution order is load bearing: an admin who is not
// the owner still outranks a comaintainer, and ownership outranks
// comaintainer status even without an explicit approveacls row.
func (e *Engine) CanAdministerAcls(ctx context.Context, db gorp.SqlExecutor, actor *sdk.AccountUser, listing *sdk.PackageListing) (Role, error) {
	if actor.InAnyGroup(e.Conf.AdminGroup) {
		return RoleAdmin, nil
	}
	if actor.Username == listing.Owner {
		return RoleOwner, nil
	}

	approvedCode, err := e.Vocab.Code(sdk.StatusApproved)
	if err != nil {
		return RoleDenied, err
	}
	held, err := aclstore.HasAclWithStatus(db, listing.ID, actor.Username, sdk.AclApproveAcls, approvedCode)
	if err != nil {
		return RoleDenied, err
	}
	if held {
		return RoleComaintainer, nil
	}
	return RoleDenied, nil
}

// AclMayBeHeldBy returns nil if given acl may legally be granted to given
// candidate, or an ErrAclNotAllowed naming the required group set. A
// transient bug tracker fault propagates as ErrServiceUnavailable, never as
// a rejection.
func (e *Engine) AclMayBeHeldBy(ctx context.Context, acl sdk.Acl, candidate *sdk.AccountUser) error {
	// owner and watchbugzilla both require a bugzilla compatible address
	if acl == sdk.AclOwner || acl == sdk.AclWatchBugzilla {
		if candidate.BugzillaEmail == "" {
			return sdk.NewErrorFrom(sdk.ErrAclNotAllowed, "%s has no bug tracker email address", candidate.Username)
		}
		if err := e.BugTracker.VerifyEmail(ctx, candidate.BugzillaEmail); err != nil {
			if sdk.ErrorIs(err, sdk.ErrNoSuchTrackerUser) {
				return sdk.NewErrorFrom(sdk.ErrAclNotAllowed, "%s's address %s is not known to the bug tracker", candidate.Username, candidate.BugzillaEmail)
			}
			return err
		}
	}

	switch acl {
	case sdk.AclWatchBugzilla, sdk.AclWatchCommits:
		return nil
	case sdk.AclOwner:
		if candidate.ID < e.Conf.PseudoUserIDCeiling {
			// system pseudo-user
			return nil
		}
		if candidate.InAnyGroup(e.Conf.OwnerGroups...) {
			return nil
		}
		return sdk.NewErrorFrom(sdk.ErrAclNotAllowed,
			"%s must be in one of these groups to own a package: %s",
			candidate.Username, strings.Join(e.Conf.OwnerGroups, ", "))
	default:
		if candidate.InAnyGroup(e.Conf.ComaintainerGroups...) {
			return nil
		}
		return sdk.NewErrorFrom(sdk.ErrAclNotAllowed,
			"%s must be in one of these groups to hold the %s acl: %s",
			candidate.Username, acl, strings.Join(e.Conf.ComaintainerGroups, ", "))
	}
}
