package gorpmapping

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-gorp/gorp"
	"github.com/lib/pq"

	"github.com/fedora-infra/packagedb-sub000/sdk"
)

const (
	// ViolateForeignKeyPGCode is the pg code when violating foreign key
	ViolateForeignKeyPGCode = "23503"

	// ViolateUniqueKeyPGCode is the pg code when duplicating unique key
	ViolateUniqueKeyPGCode = "23505"

	// RowLockedPGCode is the pg code when trying to access to a locked row
	RowLockedPGCode = "55P03"

	// StringDataRightTruncation is raised when a value is too long for varchar
	StringDataRightTruncation = "22001"
)

// NewQuery returns a new query from given string request.
func NewQuery(q string) Query { return Query{query: q} }

// Query to get gorp entities in database.
type Query struct {
	query     string
	arguments []interface{}
}

// Args store query arguments.
func (q Query) Args(as ...interface{}) Query {
	q.arguments = as
	return q
}

func (q Query) String() string {
	return fmt.Sprintf("query: %s - args: %v", q.query, q.arguments)
}

// IDsToQueryString returns a comma separated list of given ids.
func IDsToQueryString(ids []int64) string {
	res := make([]string, len(ids))
	for i := range ids {
		res[i] = fmt.Sprintf("%d", ids[i])
	}
	return strings.Join(res, ",")
}

// Error translates pg error codes into the engine error taxonomy.
func Error(err error) error {
	if e, ok := err.(*pq.Error); ok {
		switch e.Code {
		case ViolateUniqueKeyPGCode:
			return sdk.NewError(sdk.ErrAlreadyExists, e)
		case ViolateForeignKeyPGCode:
			return sdk.NewError(sdk.ErrValidation, e)
		case StringDataRightTruncation:
			return sdk.NewError(sdk.ErrValidation, e)
		case RowLockedPGCode, "40001", "40P01":
			// serialization failure or deadlock, the operation is safe to retry
			return sdk.NewError(sdk.ErrDatabase, e)
		}
		return sdk.NewError(sdk.ErrDatabase, e)
	}
	return sdk.WithStack(err)
}

// Insert value in given db.
func Insert(db gorp.SqlExecutor, i interface{}) error {
	if err := db.Insert(i); err != nil {
		return Error(err)
	}
	return nil
}

// Update value in given db.
func Update(db gorp.SqlExecutor, i interface{}) error {
	if _, err := db.Update(i); err != nil {
		return Error(err)
	}
	return nil
}

// Delete value in given db.
func Delete(db gorp.SqlExecutor, i interface{}) error {
	if _, err := db.Delete(i); err != nil {
		return Error(err)
	}
	return nil
}

// GetAll values from database.
func GetAll(db gorp.SqlExecutor, q Query, i interface{}) error {
	if _, err := db.Select(i, q.query, q.arguments...); err != nil {
		return Error(err)
	}
	return nil
}

// Get a value from database. Returns false without error when no row matches.
func Get(db gorp.SqlExecutor, q Query, i interface{}) (bool, error) {
	if err := db.SelectOne(i, q.query, q.arguments...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, Error(err)
	}
	return true, nil
}
