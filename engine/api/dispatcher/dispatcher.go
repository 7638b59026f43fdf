package dispatcher

import (
	"context"
	"fmt"

	"github.com/go-gorp/gorp"
	"github.com/rockbears/log"

	"github.com/fedora-infra/packagedb-sub000/engine/api/account"
	"github.com/fedora-infra/packagedb-sub000/engine/api/aclstore"
	"github.com/fedora-infra/packagedb-sub000/engine/api/auditlog"
	"github.com/fedora-infra/packagedb-sub000/engine/api/bugtracker"
	"github.com/fedora-infra/packagedb-sub000/engine/api/mail"
	"github.com/fedora-infra/packagedb-sub000/engine/api/pkgstore"
	"github.com/fedora-infra/packagedb-sub000/engine/api/policy"
	"github.com/fedora-infra/packagedb-sub000/sdk"
)

// Operation names an externally invocable dispatcher verb. The set is a
// static table, handlers and monitoring enumerate it instead of reflecting
// over the dispatcher.
type Operation string

const (
	OpToggleOwnership      Operation = "toggle_ownership"
	OpToggleRetirement     Operation = "toggle_retirement"
	OpSetAclStatus         Operation = "set_acl_status"
	OpToggleGroupAcl       Operation = "toggle_group_acl"
	OpToggleAclRequest     Operation = "toggle_acl_request"
	OpAddPackage           Operation = "add_package"
	OpEditPackage          Operation = "edit_package"
	OpCloneBranch          Operation = "clone_branch"
	OpRemoveUser           Operation = "remove_user"
	OpMassAddComaintainers Operation = "mass_add_comaintainers"
	OpMassChangeOwner      Operation = "mass_change_owner"
)

// Operations is the static registry of supported operations.
var Operations = []Operation{
	OpToggleOwnership,
	OpToggleRetirement,
	OpSetAclStatus,
	OpToggleGroupAcl,
	OpToggleAclRequest,
	OpAddPackage,
	OpEditPackage,
	OpCloneBranch,
	OpRemoveUser,
	OpMassAddComaintainers,
	OpMassChangeOwner,
}

// Supported returns true if given name is a registered operation.
func Supported(name string) bool {
	for _, op := range Operations {
		if string(op) == name {
			return true
		}
	}
	return false
}

// Dispatcher orchestrates the acl state machine: every operation authorizes
// the actor, performs its upserts and audit log writes in one transaction,
// then informs the notifier.
type Dispatcher struct {
	DBFunc          func() *gorp.DbMap
	Directory       account.Directory
	BugTracker      bugtracker.Client
	Notifier        mail.Notifier
	Policy          *policy.Engine
	Vocab           sdk.StatusVocabulary
	DevelBranchName string
}

// New returns a dispatcher over given collaborators.
func New(dbFunc func() *gorp.DbMap, dir account.Directory, tracker bugtracker.Client, notifier mail.Notifier, pol *policy.Engine, vocab sdk.StatusVocabulary) *Dispatcher {
	return &Dispatcher{
		DBFunc:          dbFunc,
		Directory:       dir,
		BugTracker:      tracker,
		Notifier:        notifier,
		Policy:          pol,
		Vocab:           vocab,
		DevelBranchName: "devel",
	}
}

func (d *Dispatcher) actor(ctx context.Context) (*sdk.AccountUser, error) {
	u := account.Actor(ctx)
	if u == nil {
		return nil, sdk.NewErrorFrom(sdk.ErrForbidden, "no acting user")
	}
	return u, nil
}

func (d *Dispatcher) isAdmin(u *sdk.AccountUser) bool {
	return u.InAnyGroup(d.Policy.Conf.AdminGroup)
}

func (d *Dispatcher) requireAdmin(u *sdk.AccountUser) error {
	if !d.isAdmin(u) {
		return sdk.NewErrorFrom(sdk.ErrForbidden, "%s is not in the %s group", u.Username, d.Policy.Conf.AdminGroup)
	}
	return nil
}

func (d *Dispatcher) begin() (*gorp.Transaction, error) {
	db := d.DBFunc()
	if db == nil {
		return nil, sdk.NewErrorFrom(sdk.ErrDatabase, "no database connection")
	}
	tx, err := db.Begin()
	if err != nil {
		return nil, sdk.NewError(sdk.ErrDatabase, err)
	}
	return tx, nil
}

func commit(tx *gorp.Transaction) error {
	if err := tx.Commit(); err != nil {
		return sdk.NewError(sdk.ErrDatabase, err)
	}
	return nil
}

func logChange(tx gorp.SqlExecutor, kind sdk.LogKind, refID int64, actor string, statusCode int, format string, args ...interface{}) error {
	return auditlog.Insert(tx, &sdk.LogEntry{
		Kind:        kind,
		RefID:       refID,
		Username:    actor,
		StatusCode:  statusCode,
		Description: fmt.Sprintf(format, args...),
	})
}

// listingLabel renders "name (collection version)" for notifications and logs.
func (d *Dispatcher) listingLabel(tx gorp.SqlExecutor, listing *sdk.PackageListing) string {
	pkg, err := pkgstore.LoadPackageByID(tx, listing.PackageID)
	if err != nil {
		return fmt.Sprintf("listing %d", listing.ID)
	}
	coll, err := pkgstore.LoadCollectionByID(tx, listing.CollectionID)
	if err != nil {
		return pkg.Name
	}
	return fmt.Sprintf("%s (%s %s)", pkg.Name, coll.Name, coll.Version)
}

// interestedParties returns the usernames notified about a change on given
// listing: the owner, every approved acl holder and the actor.
func (d *Dispatcher) interestedParties(tx gorp.SqlExecutor, listing *sdk.PackageListing, actor string) []string {
	seen := map[string]bool{actor: true}
	res := []string{actor}
	if !listing.Orphaned() && !seen[listing.Owner] {
		seen[listing.Owner] = true
		res = append(res, listing.Owner)
	}
	approvedCode, err := d.Vocab.Code(sdk.StatusApproved)
	if err != nil {
		return res
	}
	acls, err := aclstore.LoadPersonAclsByListing(tx, listing.ID)
	if err != nil {
		return res
	}
	for _, a := range acls {
		if a.StatusCode == approvedCode && !seen[a.Username] {
			seen[a.Username] = true
			res = append(res, a.Username)
		}
	}
	return res
}

// notify resolves recipients to addresses best effort and hands the message
// to the notifier. Runs after the transaction commits, never before.
func (d *Dispatcher) notify(ctx context.Context, usernames []string, subject, body string) {
	var recipients []string
	for _, username := range usernames {
		email, err := d.Directory.BugzillaEmail(ctx, username)
		if err != nil || email == "" {
			log.Warn(ctx, "dispatcher> cannot resolve notification address for %s: %v", username, err)
			continue
		}
		recipients = append(recipients, email)
	}
	if len(recipients) == 0 {
		return
	}
	d.Notifier.Send(ctx, recipients, subject, body)
}
