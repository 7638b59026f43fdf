package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/go-gorp/gorp"
	_ "github.com/lib/pq"
	"github.com/rockbears/log"

	"github.com/fedora-infra/packagedb-sub000/sdk"
)

// DBConfiguration is the exposed configuration of the database connection.
type DBConfiguration struct {
	User           string `toml:"user" default:"pkgdb" json:"user"`
	Password       string `toml:"password" default:"pkgdb" json:"-"`
	Name           string `toml:"name" default:"pkgdb" json:"name"`
	Host           string `toml:"host" default:"localhost" json:"host"`
	Port           int    `toml:"port" default:"5432" json:"port"`
	SSLMode        string `toml:"sslmode" default:"disable" json:"sslmode"`
	MaxConn        int    `toml:"maxconn" default:"20" json:"maxconn"`
	Timeout        int    `toml:"timeout" default:"3000" json:"timeout"`
	ConnectTimeout int    `toml:"connectTimeout" default:"10" json:"connectTimeout"`
}

// DBConnectionFactory is a database connection factory on postgres with gorp.
type DBConnectionFactory struct {
	DBUser           string
	DBPassword       string
	DBName           string
	DBHost           string
	DBPort           int
	DBSSLMode        string
	DBTimeout        int
	DBConnectTimeout int
	DBMaxConn        int
	Database         *sql.DB
	mutex            *sync.Mutex
}

// DB returns the current sql.DB object.
func (f *DBConnectionFactory) DB() *sql.DB {
	if f.Database == nil {
		if f.DBName == "" {
			return nil
		}
		newF, err := Init(context.TODO(), DBConfiguration{
			User:           f.DBUser,
			Password:       f.DBPassword,
			Name:           f.DBName,
			Host:           f.DBHost,
			Port:           f.DBPort,
			SSLMode:        f.DBSSLMode,
			MaxConn:        f.DBMaxConn,
			Timeout:        f.DBTimeout,
			ConnectTimeout: f.DBConnectTimeout,
		})
		if err != nil {
			err = sdk.WithStack(err)
			ctx := sdk.ContextWithStacktrace(context.TODO(), err)
			log.Error(ctx, "unable to init db connection: %v", err)
			return nil
		}
		*f = *newF
	}
	if err := f.Database.Ping(); err != nil {
		log.Error(context.TODO(), "database> cannot ping db: %v", err)
		f.Database = nil
		return nil
	}
	return f.Database
}

// GetDBMap returns a gorp.DbMap getter on the current connection.
func (f *DBConnectionFactory) GetDBMap() func() *gorp.DbMap {
	return func() *gorp.DbMap {
		return DBMap(f.DB())
	}
}

// Set is for testing purpose, we need to set manually the connection.
func (f *DBConnectionFactory) Set(d *sql.DB) {
	f.Database = d
}

// Init initializes the sql.DB object by connecting to the database.
func Init(ctx context.Context, conf DBConfiguration) (*DBConnectionFactory, error) {
	f := &DBConnectionFactory{
		DBUser:           conf.User,
		DBPassword:       conf.Password,
		DBName:           conf.Name,
		DBHost:           conf.Host,
		DBPort:           conf.Port,
		DBSSLMode:        conf.SSLMode,
		DBTimeout:        conf.Timeout,
		DBConnectTimeout: conf.ConnectTimeout,
		DBMaxConn:        conf.MaxConn,
		mutex:            &sync.Mutex{},
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.DBUser == "" || f.DBName == "" || f.DBHost == "" || f.DBPort == 0 {
		return nil, sdk.WithStack(fmt.Errorf("missing database infos"))
	}

	if f.DBTimeout < 200 || f.DBTimeout > 30000 {
		f.DBTimeout = 3000
	}

	if f.DBConnectTimeout <= 0 {
		f.DBConnectTimeout = 10
	}

	// connect_timeout in seconds, statement_timeout in milliseconds
	dsn := fmt.Sprintf("user=%s password=%s dbname=%s host=%s port=%d sslmode=%s connect_timeout=%d statement_timeout=%d",
		f.DBUser, f.DBPassword, f.DBName, f.DBHost, f.DBPort, f.DBSSLMode, f.DBConnectTimeout, f.DBTimeout)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, sdk.WrapError(err, "cannot open database")
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, sdk.WrapError(err, "cannot ping database %s", f.DBName)
	}

	db.SetMaxOpenConns(f.DBMaxConn)
	db.SetMaxIdleConns(f.DBMaxConn / 2)

	f.Database = db
	return f, nil
}

// Status returns a monitoring status line on the database connection.
func (f *DBConnectionFactory) Status(ctx context.Context) sdk.MonitoringStatusLine {
	if f.DB() == nil {
		return sdk.MonitoringStatusLine{Component: "Database", Value: "no connection", Status: sdk.MonitoringStatusAlert}
	}
	return sdk.MonitoringStatusLine{
		Component: "Database",
		Value:     fmt.Sprintf("%d conns", f.Database.Stats().OpenConnections),
		Status:    sdk.MonitoringStatusOK,
	}
}

// Close closes the database connection.
func (f *DBConnectionFactory) Close() error {
	if f.Database != nil {
		return sdk.WithStack(f.Database.Close())
	}
	return nil
}
