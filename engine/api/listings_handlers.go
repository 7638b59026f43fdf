package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/fedora-infra/packagedb-sub000/engine/service"
	"github.com/fedora-infra/packagedb-sub000/sdk"
)

func requestListingID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, sdk.NewErrorFrom(sdk.ErrValidation, "invalid listing id")
	}
	return id, nil
}

func (a *API) postToggleOwnershipHandler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := requestListingID(r)
	if err != nil {
		return err
	}
	listing, err := a.Dispatcher.ToggleOwnership(ctx, id)
	if err != nil {
		return err
	}
	return service.WriteJSON(w, listing, http.StatusOK)
}

func (a *API) postToggleRetirementHandler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := requestListingID(r)
	if err != nil {
		return err
	}
	listing, err := a.Dispatcher.ToggleRetirement(ctx, id)
	if err != nil {
		return err
	}
	return service.WriteJSON(w, listing, http.StatusOK)
}

type setAclStatusRequest struct {
	User   string `json:"user"`
	Acl    string `json:"acl"`
	Status string `json:"status"`
}

func (a *API) postSetAclStatusHandler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := requestListingID(r)
	if err != nil {
		return err
	}
	var req setAclStatusRequest
	if err := service.UnmarshalBody(r, &req); err != nil {
		return err
	}
	acl, err := a.Dispatcher.SetAclStatus(ctx, id, req.User, sdk.Acl(req.Acl), normalizeStatus(req.Status))
	if err != nil {
		return err
	}
	return service.WriteJSON(w, acl, http.StatusOK)
}

// normalizeStatus maps the blank dropdown value of the legacy UI to Obsolete.
// The engine itself rejects empty status names.
func normalizeStatus(s string) sdk.Status {
	s = strings.TrimSpace(s)
	if s == "" {
		return sdk.StatusObsolete
	}
	return sdk.Status(s)
}

type toggleAclRequestRequest struct {
	Acl string `json:"acl"`
}

func (a *API) postToggleAclRequestHandler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := requestListingID(r)
	if err != nil {
		return err
	}
	var req toggleAclRequestRequest
	if err := service.UnmarshalBody(r, &req); err != nil {
		return err
	}
	acl, err := a.Dispatcher.ToggleAclRequest(ctx, id, sdk.Acl(req.Acl))
	if err != nil {
		return err
	}
	return service.WriteJSON(w, acl, http.StatusOK)
}

type toggleGroupAclRequest struct {
	Group string `json:"group"`
	Acl   string `json:"acl"`
}

func (a *API) postToggleGroupAclHandler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := requestListingID(r)
	if err != nil {
		return err
	}
	var req toggleGroupAclRequest
	if err := service.UnmarshalBody(r, &req); err != nil {
		return err
	}
	acl, err := a.Dispatcher.ToggleGroupAcl(ctx, id, req.Group, sdk.Acl(req.Acl))
	if err != nil {
		return err
	}
	return service.WriteJSON(w, acl, http.StatusOK)
}
