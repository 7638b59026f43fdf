// Package massacl implements the bulk acl operations: granting comaintainer
// acls or reassigning ownership across every listing of a collection whose
// package name matches a pattern and whose owner is the invoking actor.
//
// Bulk operations are deliberately not atomic across listings. Every target
// user is validated before any write, then each listing is mutated in its own
// transaction so a failure partway through keeps the already applied changes.
package massacl

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-gorp/gorp"
	"github.com/rockbears/log"

	"github.com/fedora-infra/packagedb-sub000/engine/api/account"
	"github.com/fedora-infra/packagedb-sub000/engine/api/aclstore"
	"github.com/fedora-infra/packagedb-sub000/engine/api/auditlog"
	"github.com/fedora-infra/packagedb-sub000/engine/api/bugtracker"
	"github.com/fedora-infra/packagedb-sub000/engine/api/mail"
	"github.com/fedora-infra/packagedb-sub000/engine/api/policy"
	"github.com/fedora-infra/packagedb-sub000/sdk"
)

// comaintainerAcls are granted to each new comaintainer on each matched
// listing. Commit mirrors to build in the acl store.
var comaintainerAcls = []sdk.Acl{
	sdk.AclWatchBugzilla,
	sdk.AclWatchCommits,
	sdk.AclCommit,
	sdk.AclApproveAcls,
}

const defaultBatchSize = 500

// Engine runs the bulk operations.
type Engine struct {
	DBFunc     func() *gorp.DbMap
	Directory  account.Directory
	BugTracker bugtracker.Client
	Notifier   mail.Notifier
	Policy     *policy.Engine
	Vocab      sdk.StatusVocabulary
	BatchSize  int
}

func New(dbFunc func() *gorp.DbMap, dir account.Directory, tracker bugtracker.Client, notifier mail.Notifier, pol *policy.Engine, vocab sdk.StatusVocabulary) *Engine {
	return &Engine{
		DBFunc:     dbFunc,
		Directory:  dir,
		BugTracker: tracker,
		Notifier:   notifier,
		Policy:     pol,
		Vocab:      vocab,
		BatchSize:  defaultBatchSize,
	}
}

// BulkFailure records one listing whose mutation failed.
type BulkFailure struct {
	ListingID int64  `json:"listing_id"`
	Package   string `json:"package"`
	Error     string `json:"error"`
}

// BulkResult summarizes a bulk operation. Updated can be lower than Matched
// when individual listings failed.
type BulkResult struct {
	Matched  int           `json:"matched"`
	Updated  int           `json:"updated"`
	Failures []BulkFailure `json:"failures,omitempty"`
}

// candidate is one matched listing with enough context for labels.
type candidate struct {
	ListingID      int64  `db:"id"`
	PackageID      int64  `db:"package_id"`
	PackageName    string `db:"name"`
	CollectionName string `db:"collection_name"`
	Version        string `db:"version"`
	Owner          string `db:"owner"`
	StatusCode     int    `db:"statuscode"`
}

func (c candidate) label() string {
	return fmt.Sprintf("%s (%s %s)", c.PackageName, c.CollectionName, c.Version)
}

// AddComaintainers grants the comaintainer acls to every given user on every
// listing of branchName whose package name matches pattern and which the
// actor owns. With includeAclHolders, listings where the actor merely holds
// an Approved approveacls acl are matched too. Every user is validated
// against the comaintainer policy before any listing is touched.
func (e *Engine) AddComaintainers(ctx context.Context, pattern, branchName string, usernames []string, includeAclHolders bool) (*BulkResult, error) {
	actor := account.Actor(ctx)
	if actor == nil {
		return nil, sdk.WithStack(sdk.ErrForbidden)
	}
	if len(usernames) == 0 {
		return nil, sdk.NewErrorFrom(sdk.ErrValidation, "no comaintainer given")
	}

	users := make([]*sdk.AccountUser, 0, len(usernames))
	for _, username := range usernames {
		u, err := e.Directory.ResolveUser(ctx, username)
		if err != nil {
			return nil, err
		}
		if err := e.Policy.AclMayBeHeldBy(ctx, sdk.AclApproveAcls, u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	approvedCode, err := e.Vocab.Code(sdk.StatusApproved)
	if err != nil {
		return nil, err
	}

	res, err := e.forEachMatch(ctx, pattern, branchName, actor, includeAclHolders, func(tx gorp.SqlExecutor, c candidate) error {
		for _, u := range users {
			for _, acl := range comaintainerAcls {
				record, err := aclstore.UpsertPersonAcl(tx, c.ListingID, u.Username, acl, approvedCode)
				if err != nil {
					return err
				}
				if err := logAclChange(tx, record.ID, actor.Username, approvedCode,
					"%s approved the %s acl of %s on %s", actor.Username, acl, u.Username, c.label()); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.Notifier.Send(ctx, e.emails(ctx, append([]string{actor.Username}, usernames...)),
		fmt.Sprintf("comaintainers added on %d packages", res.Updated),
		fmt.Sprintf("%s has added %s as comaintainers of %d packages matching %q on %s",
			actor.Username, strings.Join(usernames, ", "), res.Updated, pattern, branchName))
	return res, nil
}

// ChangeOwner reassigns every matched listing to newOwner, who must pass the
// ownership policy. The bug tracker default assignee is reassigned per
// listing, best effort.
func (e *Engine) ChangeOwner(ctx context.Context, pattern, branchName, newOwner string, includeAclHolders bool) (*BulkResult, error) {
	actor := account.Actor(ctx)
	if actor == nil {
		return nil, sdk.WithStack(sdk.ErrForbidden)
	}

	owner, err := e.Directory.ResolveUser(ctx, newOwner)
	if err != nil {
		return nil, err
	}
	if err := e.Policy.AclMayBeHeldBy(ctx, sdk.AclOwner, owner); err != nil {
		return nil, err
	}

	ownedCode, err := e.Vocab.Code(sdk.StatusOwned)
	if err != nil {
		return nil, err
	}

	var updated []candidate
	res, err := e.forEachMatch(ctx, pattern, branchName, actor, includeAclHolders, func(tx gorp.SqlExecutor, c candidate) error {
		if c.Owner == owner.Username {
			return nil
		}
		query := `UPDATE package_listing SET owner = $1, statuscode = $2, statuschange = now() WHERE id = $3`
		if _, err := tx.Exec(query, owner.Username, ownedCode, c.ListingID); err != nil {
			return sdk.NewError(sdk.ErrDatabase, err)
		}
		if err := logListingChange(tx, c.ListingID, actor.Username, ownedCode,
			"%s changed the owner of %s to %s", actor.Username, c.label(), owner.Username); err != nil {
			return err
		}
		updated = append(updated, c)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// fn runs before the sub-transaction commits, so a candidate may land in
	// updated even though its owner change rolled back
	if email, err := e.Directory.BugzillaEmail(ctx, owner.Username); err == nil {
		for _, c := range committed(updated, res.Failures) {
			if err := e.BugTracker.ReassignDefaultOwner(ctx, c.PackageName, c.CollectionName, email); err != nil {
				log.Warn(ctx, "massacl> unable to reassign tracker component %s: %v", c.PackageName, err)
			}
		}
	}

	e.Notifier.Send(ctx, e.emails(ctx, []string{actor.Username, owner.Username}),
		fmt.Sprintf("owner changed on %d packages", res.Updated),
		fmt.Sprintf("%s has reassigned %d packages matching %q on %s to %s",
			actor.Username, res.Updated, pattern, branchName, owner.Username))
	return res, nil
}

// committed filters out the candidates whose sub-transaction ended up in the
// failure list, rollbacks after a successful fn call included.
func committed(updated []candidate, failures []BulkFailure) []candidate {
	if len(failures) == 0 {
		return updated
	}
	failed := make(map[int64]struct{}, len(failures))
	for _, f := range failures {
		failed[f.ListingID] = struct{}{}
	}
	out := make([]candidate, 0, len(updated))
	for _, c := range updated {
		if _, ok := failed[c.ListingID]; ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

// forEachMatch streams matched listings in id-ordered batches and runs fn on
// each inside its own transaction. Keyset pagination on the listing id keeps
// the scan stable even when fn removes a row from the match set.
func (e *Engine) forEachMatch(ctx context.Context, pattern, branchName string, actor *sdk.AccountUser, includeAclHolders bool, fn func(tx gorp.SqlExecutor, c candidate) error) (*BulkResult, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, sdk.NewErrorFrom(sdk.ErrValidation, "empty package pattern")
	}
	likePattern := strings.ReplaceAll(pattern, "*", "%")

	approvedCode, err := e.Vocab.Code(sdk.StatusApproved)
	if err != nil {
		return nil, err
	}
	retiredCode, err := e.Vocab.Code(sdk.StatusRetired)
	if err != nil {
		return nil, err
	}

	batchSize := e.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	res := &BulkResult{}
	var lastID int64
	for {
		batch, err := e.loadBatch(likePattern, branchName, actor.Username, includeAclHolders, approvedCode, retiredCode, lastID, batchSize)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		for _, c := range batch {
			lastID = c.ListingID
			res.Matched++
			if err := e.applyOne(ctx, c, fn); err != nil {
				log.Error(ctx, "massacl> %s: %v", c.label(), err)
				res.Failures = append(res.Failures, BulkFailure{
					ListingID: c.ListingID,
					Package:   c.PackageName,
					Error:     sdk.ExtractHTTPError(err).Message,
				})
				continue
			}
			res.Updated++
		}
		if len(batch) < batchSize {
			break
		}
	}

	if res.Matched == 0 {
		return nil, sdk.NewErrorFrom(sdk.ErrNoPackageListings, "no listing matching %q on %s owned by %s", pattern, branchName, actor.Username)
	}
	return res, nil
}

func (e *Engine) loadBatch(likePattern, branchName, actor string, includeAclHolders bool, approvedCode, retiredCode int, lastID int64, limit int) ([]candidate, error) {
	query := `
		SELECT pl.id, pl.package_id, p.name, c.name AS collection_name, c.version, pl.owner, pl.statuscode
		FROM package_listing pl
		JOIN package p ON p.id = pl.package_id
		JOIN collection c ON c.id = pl.collection_id
		WHERE p.name LIKE $1
		AND c.branchname = $2
		AND pl.statuscode <> $3
		AND pl.id > $4
		AND (pl.owner = $5 OR ($6 AND EXISTS (
			SELECT 1 FROM person_package_listing ppl
			JOIN person_package_listing_acl ppla ON ppla.person_listing_id = ppl.id
			WHERE ppl.package_listing_id = pl.id
			AND ppl.username = $5
			AND ppla.acl = $7
			AND ppla.statuscode = $8
		)))
		ORDER BY pl.id
		LIMIT $9`

	var batch []candidate
	if _, err := e.DBFunc().Select(&batch, query,
		likePattern, branchName, retiredCode, lastID, actor,
		includeAclHolders, string(sdk.AclApproveAcls), approvedCode, limit); err != nil {
		return nil, sdk.NewError(sdk.ErrDatabase, err)
	}
	return batch, nil
}

func (e *Engine) applyOne(ctx context.Context, c candidate, fn func(tx gorp.SqlExecutor, c candidate) error) error {
	tx, err := e.DBFunc().Begin()
	if err != nil {
		return sdk.NewError(sdk.ErrDatabase, err)
	}
	defer tx.Rollback() // nolint
	if err := fn(tx, c); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return sdk.NewError(sdk.ErrDatabase, err)
	}
	log.Info(ctx, "massacl> updated listing %d (%s)", c.ListingID, c.PackageName)
	return nil
}

func (e *Engine) emails(ctx context.Context, usernames []string) []string {
	seen := map[string]struct{}{}
	var emails []string
	for _, username := range usernames {
		if _, ok := seen[username]; ok {
			continue
		}
		seen[username] = struct{}{}
		email, err := e.Directory.BugzillaEmail(ctx, username)
		if err != nil {
			log.Warn(ctx, "massacl> no email for %s: %v", username, err)
			continue
		}
		emails = append(emails, email)
	}
	return emails
}

func logAclChange(tx gorp.SqlExecutor, refID int64, actor string, statusCode int, format string, args ...interface{}) error {
	return auditlog.Insert(tx, &sdk.LogEntry{
		Kind:        sdk.LogKindPersonAcl,
		RefID:       refID,
		Username:    actor,
		StatusCode:  statusCode,
		Description: fmt.Sprintf(format, args...),
	})
}

func logListingChange(tx gorp.SqlExecutor, refID int64, actor string, statusCode int, format string, args ...interface{}) error {
	return auditlog.Insert(tx, &sdk.LogEntry{
		Kind:        sdk.LogKindListing,
		RefID:       refID,
		Username:    actor,
		StatusCode:  statusCode,
		Description: fmt.Sprintf(format, args...),
	})
}
