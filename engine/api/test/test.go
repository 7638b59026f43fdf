package test

import (
	"database/sql"
	"flag"
	"fmt"
	"testing"

	"github.com/go-gorp/gorp"

	"github.com/fedora-infra/packagedb-sub000/engine/api/database"
	pkgdblog "github.com/fedora-infra/packagedb-sub000/sdk/log"
)

// DBDriver is exported for testing purpose
var (
	DBDriver   string
	dbUser     string
	dbPassword string
	dbName     string
	dbHost     string
	dbPort     string
	dbSSLMode  string
)

var factory = &database.DBConnectionFactory{}

func init() {
	if flag.Lookup("dbDriver") == nil {
		flag.String("dbDriver", "", "driver")
		flag.String("dbUser", "pkgdb", "user")
		flag.String("dbPassword", "pkgdb", "password")
		flag.String("dbName", "pkgdb", "database name")
		flag.String("dbHost", "localhost", "host")
		flag.String("dbPort", "15432", "port")
		flag.String("sslMode", "disable", "ssl mode")

		pkgdblog.Initialize(&pkgdblog.Conf{Level: "debug"})
	}
}

// SetupPG connects to the test database and returns a gorp DbMap on it. The
// test is skipped when no -dbDriver flag is given.
func SetupPG(t *testing.T) *gorp.DbMap {
	DBDriver = flag.Lookup("dbDriver").Value.String()
	dbUser = flag.Lookup("dbUser").Value.String()
	dbPassword = flag.Lookup("dbPassword").Value.String()
	dbName = flag.Lookup("dbName").Value.String()
	dbHost = flag.Lookup("dbHost").Value.String()
	dbPort = flag.Lookup("dbPort").Value.String()
	dbSSLMode = flag.Lookup("sslMode").Value.String()

	if DBDriver == "" {
		t.Skip("This should be run with a database")
		return nil
	}

	if factory.DB() == nil {
		dsn := fmt.Sprintf("user=%s password=%s dbname=%s host=%s port=%s sslmode=%s connect_timeout=10 statement_timeout=5000",
			dbUser, dbPassword, dbName, dbHost, dbPort, dbSSLMode)
		db, err := sql.Open(DBDriver, dsn)
		if err != nil {
			t.Fatalf("Cannot open database: %s", err)
			return nil
		}
		if err := db.Ping(); err != nil {
			t.Fatalf("Cannot ping database: %s", err)
			return nil
		}
		db.SetMaxOpenConns(100)
		db.SetMaxIdleConns(20)
		factory.Set(db)
	}
	return database.DBMap(factory.DB())
}

// DBFunc returns the DbMap getter the dispatcher and the mass engine take.
func DBFunc(t *testing.T) func() *gorp.DbMap {
	db := SetupPG(t)
	return func() *gorp.DbMap { return db }
}
