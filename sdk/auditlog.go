package sdk

import (
	"time"
)

// LogKind discriminates the entity a log entry refers to. The audit trail is
// a single append-only store, RefID points into the table named by the kind.
type LogKind string

const (
	LogKindPackage   LogKind = "package"
	LogKindListing   LogKind = "package_listing"
	LogKindPersonAcl LogKind = "person_acl"
	LogKindGroupAcl  LogKind = "group_acl"
)

// LogEntry is one append-only audit record. Entries are written in the same
// transaction as the state change they describe, exactly once per mutation,
// and are never updated or deleted.
type LogEntry struct {
	ID          int64     `json:"id" db:"id"`
	Kind        LogKind   `json:"kind" db:"kind"`
	RefID       int64     `json:"ref_id" db:"ref_id"`
	Username    string    `json:"username" db:"username"`
	StatusCode  int       `json:"statuscode" db:"statuscode"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
