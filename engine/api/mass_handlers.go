package api

import (
	"context"
	"net/http"

	"github.com/fedora-infra/packagedb-sub000/engine/service"
)

type massComaintainersRequest struct {
	Pattern           string   `json:"pattern"`
	Branch            string   `json:"branch"`
	Comaintainers     []string `json:"comaintainers"`
	IncludeAclHolders bool     `json:"include_acl_holders"`
}

func (a *API) postMassComaintainersHandler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req massComaintainersRequest
	if err := service.UnmarshalBody(r, &req); err != nil {
		return err
	}
	res, err := a.MassAcl.AddComaintainers(ctx, req.Pattern, req.Branch, req.Comaintainers, req.IncludeAclHolders)
	if err != nil {
		return err
	}
	return service.WriteJSON(w, res, http.StatusOK)
}

type massOwnerRequest struct {
	Pattern           string `json:"pattern"`
	Branch            string `json:"branch"`
	Owner             string `json:"owner"`
	IncludeAclHolders bool   `json:"include_acl_holders"`
}

func (a *API) postMassOwnerHandler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req massOwnerRequest
	if err := service.UnmarshalBody(r, &req); err != nil {
		return err
	}
	res, err := a.MassAcl.ChangeOwner(ctx, req.Pattern, req.Branch, req.Owner, req.IncludeAclHolders)
	if err != nil {
		return err
	}
	return service.WriteJSON(w, res, http.StatusOK)
}

func (a *API) getStatusHandler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return service.WriteJSON(w, a.Status(ctx), http.StatusOK)
}
