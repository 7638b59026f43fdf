package database

import (
	"database/sql"

	"github.com/go-gorp/gorp"

	"github.com/fedora-infra/packagedb-sub000/engine/api/database/gorpmapping"
)

// DBMap returns a gorp.DbMap with every registered table mapping.
func DBMap(db *sql.DB) *gorp.DbMap {
	if db == nil {
		return nil
	}
	dbmap := &gorp.DbMap{Db: db, Dialect: gorp.PostgresDialect{}}
	for _, m := range gorpmapping.Mapping {
		dbmap.AddTableWithName(m.Target, m.Name).SetKeys(m.AutoIncrement, m.Keys...)
	}
	return dbmap
}
