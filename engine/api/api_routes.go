package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rockbears/log"

	"github.com/fedora-infra/packagedb-sub000/engine/api/account"
	"github.com/fedora-infra/packagedb-sub000/engine/service"
	"github.com/fedora-infra/packagedb-sub000/sdk"
	pkgdblog "github.com/fedora-infra/packagedb-sub000/sdk/log"
)

// HeaderActor carries the acting username, set by the trusted fronting layer.
const HeaderActor = "X-PkgDb-Actor"

// InitRouter initializes the router of the api.
func (a *API) InitRouter() {
	r := a.Router

	r.HandleFunc("/packages", a.handle(a.postPackageHandler)).Methods(http.MethodPost)
	r.HandleFunc("/packages/{name}", a.handle(a.getPackageHandler)).Methods(http.MethodGet)
	r.HandleFunc("/packages/{name}", a.handle(a.putPackageHandler)).Methods(http.MethodPut)
	r.HandleFunc("/packages/{name}/branch", a.handle(a.postCloneBranchHandler)).Methods(http.MethodPost)
	r.HandleFunc("/packages/{name}/acls/{user}", a.handle(a.deleteUserAclsHandler)).Methods(http.MethodDelete)

	r.HandleFunc("/listings/{id}/owner", a.handle(a.postToggleOwnershipHandler)).Methods(http.MethodPost)
	r.HandleFunc("/listings/{id}/retirement", a.handle(a.postToggleRetirementHandler)).Methods(http.MethodPost)
	r.HandleFunc("/listings/{id}/acls", a.handle(a.postSetAclStatusHandler)).Methods(http.MethodPost)
	r.HandleFunc("/listings/{id}/acls/request", a.handle(a.postToggleAclRequestHandler)).Methods(http.MethodPost)
	r.HandleFunc("/listings/{id}/groupacls", a.handle(a.postToggleGroupAclHandler)).Methods(http.MethodPost)

	r.HandleFunc("/mass/comaintainers", a.handle(a.postMassComaintainersHandler)).Methods(http.MethodPost)
	r.HandleFunc("/mass/owner", a.handle(a.postMassOwnerHandler)).Methods(http.MethodPost)

	r.HandleFunc("/mon/status", a.handle(a.getStatusHandler)).Methods(http.MethodGet)
}

// handle adapts a service.Handler to the router, resolving the actor header
// and logging the request.
func (a *API) handle(h service.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = context.WithValue(ctx, pkgdblog.FieldMethod, r.Method)
		ctx = context.WithValue(ctx, pkgdblog.FieldRoute, r.URL.Path)
		start := time.Now()

		ctx, err := a.authMiddleware(ctx, r)
		if err != nil {
			service.WriteError(ctx, w, r, err)
			return
		}

		if err := h(ctx, w, r); err != nil {
			service.WriteError(ctx, w, r, err)
			return
		}
		log.Debug(ctx, "%s %s handled in %v", r.Method, r.URL.Path, time.Since(start))
	}
}

// authMiddleware resolves the X-PkgDb-Actor header through the account
// directory. Routes run anonymously when the header is absent, each
// operation enforces its own requirements.
func (a *API) authMiddleware(ctx context.Context, r *http.Request) (context.Context, error) {
	username := r.Header.Get(HeaderActor)
	if username == "" {
		return ctx, nil
	}
	actor, err := a.Directory.ResolveUser(ctx, username)
	if err != nil {
		if sdk.ErrorIs(err, sdk.ErrNotFound) {
			return ctx, sdk.NewErrorFrom(sdk.ErrForbidden, "unknown actor %s", username)
		}
		return ctx, err
	}
	ctx = context.WithValue(ctx, pkgdblog.FieldActor, actor.Username)
	return account.ContextWithActor(ctx, actor), nil
}
