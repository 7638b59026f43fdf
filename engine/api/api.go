// Package api exposes the dispatcher operations over a JSON HTTP interface.
//
// Authentication is delegated to the fronting web layer: the acting username
// arrives in the X-PkgDb-Actor header and is resolved against the account
// directory before any operation runs.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rockbears/log"

	"github.com/fedora-infra/packagedb-sub000/engine/api/account"
	"github.com/fedora-infra/packagedb-sub000/engine/api/bugtracker"
	"github.com/fedora-infra/packagedb-sub000/engine/api/database"
	"github.com/fedora-infra/packagedb-sub000/engine/api/dispatcher"
	"github.com/fedora-infra/packagedb-sub000/engine/api/mail"
	"github.com/fedora-infra/packagedb-sub000/engine/api/massacl"
	"github.com/fedora-infra/packagedb-sub000/engine/api/pkgstore"
	"github.com/fedora-infra/packagedb-sub000/engine/api/policy"
	"github.com/fedora-infra/packagedb-sub000/sdk"
)

// Configuration is the api root configuration.
type Configuration struct {
	HTTP struct {
		Addr string `toml:"addr" default:"" commented:"true" comment:"Listen address without port, example: 127.0.0.1" json:"addr"`
		Port int    `toml:"port" default:"8081" json:"port"`
	} `toml:"http" json:"http"`
	URL struct {
		API string `toml:"api" default:"http://localhost:8081" json:"api"`
	} `toml:"url" comment:"#####################\n PKGDB URLS Settings \n####################" json:"url"`
	Database    database.DBConfiguration `toml:"database" comment:"################################\n Postgresql Database settings \n###############################" json:"database"`
	Account     account.Configuration    `toml:"account" comment:"######################\n Account directory settings \n######################" json:"account"`
	Bugzilla    bugtracker.Configuration `toml:"bugzilla" comment:"######################\n Bug tracker settings \n######################" json:"bugzilla"`
	SMTP        mail.Configuration       `toml:"smtp" comment:"#####################\n SMTP Settings \n####################" json:"smtp"`
	Policy      policy.Configuration     `toml:"policy" comment:"######################\n Permission policy settings \n######################" json:"policy"`
	DevelBranch string                   `toml:"develBranch" default:"devel" comment:"Branch name of the development collection new packages are listed on" json:"develBranch"`
}

// API is the pkgdb engine.
type API struct {
	Config              Configuration
	Router              *mux.Router
	DBConnectionFactory *database.DBConnectionFactory
	Directory           account.Directory
	BugTracker          bugtracker.Client
	Notifier            mail.Notifier
	Policy              *policy.Engine
	Vocab               sdk.StatusVocabulary
	Dispatcher          *dispatcher.Dispatcher
	MassAcl             *massacl.Engine
	StartupTime         time.Time
}

// New returns a new empty api.
func New() *API {
	return &API{}
}

// Init hooks the api up to its database and collaborators. It loads the
// status vocabulary once, everything downstream takes it by injection.
func (a *API) Init(ctx context.Context, config Configuration) error {
	a.Config = config
	a.StartupTime = time.Now()
	a.Config.Policy.Normalize()

	log.Info(ctx, "Initializing database connection...")
	dbFactory, err := database.Init(ctx, config.Database)
	if err != nil {
		return sdk.WrapError(err, "cannot connect to database")
	}
	a.DBConnectionFactory = dbFactory

	log.Info(ctx, "Loading status vocabulary...")
	vocab, err := pkgstore.LoadVocabulary(a.DBConnectionFactory.GetDBMap()())
	if err != nil {
		return sdk.WrapError(err, "cannot load status vocabulary")
	}
	a.Vocab = vocab

	a.Directory = account.NewClient(config.Account)
	a.BugTracker = bugtracker.NewClient(config.Bugzilla)
	a.Notifier = mail.New(config.SMTP)
	a.Policy = policy.New(a.Config.Policy, a.BugTracker, a.Vocab)
	a.Dispatcher = dispatcher.New(a.DBConnectionFactory.GetDBMap(), a.Directory, a.BugTracker, a.Notifier, a.Policy, a.Vocab)
	a.Dispatcher.DevelBranchName = config.DevelBranch
	a.MassAcl = massacl.New(a.DBConnectionFactory.GetDBMap(), a.Directory, a.BugTracker, a.Notifier, a.Policy, a.Vocab)

	a.Router = mux.NewRouter()
	a.InitRouter()
	return nil
}

// Serve starts the http server and blocks until ctx is done.
func (a *API) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", a.Config.HTTP.Addr, a.Config.HTTP.Port)
	server := &http.Server{
		Addr:           addr,
		Handler:        a.Router,
		ReadTimeout:    10 * time.Minute,
		WriteTimeout:   10 * time.Minute,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		<-ctx.Done()
		log.Warn(ctx, "Cleanup SQL connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		_ = a.DBConnectionFactory.Close()
	}()

	log.Info(ctx, "Starting pkgdb engine on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return sdk.WrapError(err, "cannot start http server")
	}
	return nil
}

// Status composes the monitoring lines of the engine and its collaborators.
func (a *API) Status(ctx context.Context) []sdk.MonitoringStatusLine {
	return []sdk.MonitoringStatusLine{
		{Component: "Version", Value: sdk.VERSION, Status: sdk.MonitoringStatusOK},
		{Component: "Uptime", Value: fmt.Sprintf("%s", time.Since(a.StartupTime)), Status: sdk.MonitoringStatusOK},
		{Component: "Time", Value: fmt.Sprintf("%dh%dm%ds", time.Now().Hour(), time.Now().Minute(), time.Now().Second()), Status: sdk.MonitoringStatusOK},
		a.DBConnectionFactory.Status(ctx),
		mail.Status(a.Config.SMTP),
	}
}
