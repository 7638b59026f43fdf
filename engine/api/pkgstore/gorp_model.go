package pkgstore

import (
	"database/sql"

	"github.com/fedora-infra/packagedb-sub000/engine/api/database/gorpmapping"
	"github.com/fedora-infra/packagedb-sub000/sdk"
)

// collection is the database row for sdk.Collection. The branch columns are
// nullable, a collection without a branch name is a plain release line.
type collection struct {
	ID         int64          `db:"id"`
	Name       string         `db:"name"`
	Version    string         `db:"version"`
	StatusCode int            `db:"statuscode"`
	Owner      string         `db:"owner"`
	BranchName sql.NullString `db:"branchname"`
	DistTag    sql.NullString `db:"disttag"`
	ParentID   sql.NullInt64  `db:"parent_collection_id"`
}

func (c collection) toSDK() sdk.Collection {
	res := sdk.Collection{
		ID:         c.ID,
		Name:       c.Name,
		Version:    c.Version,
		StatusCode: c.StatusCode,
		Owner:      c.Owner,
	}
	if c.BranchName.Valid {
		res.Branch = &sdk.BranchInfo{
			BranchName: c.BranchName.String,
			DistTag:    c.DistTag.String,
			ParentID:   c.ParentID.Int64,
		}
	}
	return res
}

func newCollectionRow(c sdk.Collection) collection {
	row := collection{
		ID:         c.ID,
		Name:       c.Name,
		Version:    c.Version,
		StatusCode: c.StatusCode,
		Owner:      c.Owner,
	}
	if c.Branch != nil {
		row.BranchName = sql.NullString{Valid: true, String: c.Branch.BranchName}
		row.DistTag = sql.NullString{Valid: true, String: c.Branch.DistTag}
		if c.Branch.ParentID != 0 {
			row.ParentID = sql.NullInt64{Valid: true, Int64: c.Branch.ParentID}
		}
	}
	return row
}

func init() {
	gorpmapping.Register(
		gorpmapping.New(sdk.Package{}, "package", true, "id"),
		gorpmapping.New(collection{}, "collection", true, "id"),
		gorpmapping.New(sdk.PackageListing{}, "package_listing", true, "id"),
	)
}
