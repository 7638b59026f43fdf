package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fedora-infra/packagedb-sub000/engine/api/aclstore"
	"github.com/fedora-infra/packagedb-sub000/engine/api/dispatcher"
	"github.com/fedora-infra/packagedb-sub000/engine/api/pkgstore"
	"github.com/fedora-infra/packagedb-sub000/engine/service"
	"github.com/fedora-infra/packagedb-sub000/sdk"
)

type addPackageRequest struct {
	Name    string `json:"name"`
	Owner   string `json:"owner"`
	Summary string `json:"summary"`
}

func (a *API) postPackageHandler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req addPackageRequest
	if err := service.UnmarshalBody(r, &req); err != nil {
		return err
	}
	pkg, err := a.Dispatcher.AddPackage(ctx, req.Name, req.Owner, req.Summary)
	if err != nil {
		return err
	}
	return service.WriteJSON(w, pkg, http.StatusCreated)
}

func (a *API) putPackageHandler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	name := mux.Vars(r)["name"]
	var req dispatcher.EditPackageRequest
	if err := service.UnmarshalBody(r, &req); err != nil {
		return err
	}
	pkg, err := a.Dispatcher.EditPackage(ctx, name, req)
	if err != nil {
		return err
	}
	return service.WriteJSON(w, pkg, http.StatusOK)
}

type listingView struct {
	sdk.PackageListing
	Collection *sdk.Collection           `json:"collection"`
	StatusName sdk.Status                `json:"status"`
	PersonAcls []aclstore.PersonAclDetail `json:"person_acls"`
	GroupAcls  []aclstore.GroupAclDetail  `json:"group_acls"`
}

type packageView struct {
	sdk.Package
	StatusName sdk.Status    `json:"status"`
	Listings   []listingView `json:"listings"`
}

func (a *API) getPackageHandler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	name := mux.Vars(r)["name"]
	db := a.DBConnectionFactory.GetDBMap()()

	pkg, err := pkgstore.LoadPackageByName(db, name)
	if err != nil {
		return err
	}
	listings, err := pkgstore.LoadListingsByPackage(db, pkg.ID)
	if err != nil {
		return err
	}

	view := packageView{Package: *pkg}
	view.StatusName, _ = a.Vocab.Name(pkg.StatusCode)
	for i := range listings {
		lv := listingView{PackageListing: listings[i]}
		lv.StatusName, _ = a.Vocab.Name(listings[i].StatusCode)
		if lv.Collection, err = pkgstore.LoadCollectionByID(db, listings[i].CollectionID); err != nil {
			return err
		}
		if lv.PersonAcls, err = aclstore.LoadPersonAclsByListing(db, listings[i].ID); err != nil {
			return err
		}
		if lv.GroupAcls, err = aclstore.LoadGroupAclsByListing(db, listings[i].ID); err != nil {
			return err
		}
		view.Listings = append(view.Listings, lv)
	}
	return service.WriteJSON(w, view, http.StatusOK)
}

type cloneBranchRequest struct {
	TargetBranch string `json:"target_branch"`
	SourceBranch string `json:"source_branch"`
}

func (a *API) postCloneBranchHandler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	name := mux.Vars(r)["name"]
	var req cloneBranchRequest
	if err := service.UnmarshalBody(r, &req); err != nil {
		return err
	}
	listing, err := a.Dispatcher.CloneBranch(ctx, name, req.TargetBranch, req.SourceBranch)
	if err != nil {
		return err
	}
	return service.WriteJSON(w, listing, http.StatusOK)
}

func (a *API) deleteUserAclsHandler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	vars := mux.Vars(r)
	branches := r.URL.Query()["branch"]
	acls, err := a.Dispatcher.RemoveUser(ctx, vars["user"], vars["name"], branches)
	if err != nil {
		return err
	}
	return service.WriteJSON(w, acls, http.StatusOK)
}
