package auditlog

import (
	"time"

	"github.com/go-gorp/gorp"

	"github.com/fedora-infra/packagedb-sub000/engine/api/database/gorpmapping"
	"github.com/fedora-infra/packagedb-sub000/sdk"
)

func init() {
	gorpmapping.Register(
		gorpmapping.New(sdk.LogEntry{}, "audit_log", true, "id"),
	)
}

// Insert appends one log entry. It must run in the same transaction as the
// state change it describes.
func Insert(db gorp.SqlExecutor, e *sdk.LogEntry) error {
	e.CreatedAt = time.Now()
	return sdk.WrapError(gorpmapping.Insert(db, e), "unable to insert audit log for %s %d", e.Kind, e.RefID)
}

// LoadByRef returns the log entries for given entity, most recent last.
func LoadByRef(db gorp.SqlExecutor, kind sdk.LogKind, refID int64) ([]sdk.LogEntry, error) {
	var es []sdk.LogEntry
	query := gorpmapping.NewQuery("SELECT * FROM audit_log WHERE kind = $1 AND ref_id = $2 ORDER BY id").
		Args(string(kind), refID)
	if err := gorpmapping.GetAll(db, query, &es); err != nil {
		return nil, sdk.WrapError(err, "cannot load audit log for %s %d", kind, refID)
	}
	return es, nil
}
