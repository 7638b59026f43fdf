package account

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fedora-infra/packagedb-sub000/sdk"
)

// Configuration is the exposed configuration of the account directory client.
type Configuration struct {
	URL      string `toml:"url" default:"https://accounts.fedoraproject.org" json:"url"`
	Username string `toml:"username" default:"" json:"username"`
	Password string `toml:"password" default:"" json:"-"`
	Timeout  int    `toml:"timeout" default:"10" json:"timeout"`
}

// NewClient returns a Directory backed by the account system HTTP API.
func NewClient(conf Configuration) Directory {
	return &client{
		conf: conf,
		httpClient: &http.Client{
			Timeout: time.Duration(conf.Timeout) * time.Second,
		},
	}
}

type client struct {
	conf       Configuration
	httpClient *http.Client
}

type userPayload struct {
	ID            int64    `json:"id"`
	Username      string   `json:"username"`
	BugzillaEmail string   `json:"bugzilla_email"`
	Email         string   `json:"email"`
	Groups        []string `json:"groups"`
}

func (c *client) ResolveUser(ctx context.Context, username string) (*sdk.AccountUser, error) {
	var payload userPayload
	if err := c.doJSONRequest(ctx, fmt.Sprintf("/api/v1/users/%s", url.PathEscape(username)), &payload); err != nil {
		return nil, err
	}
	email := payload.BugzillaEmail
	if email == "" {
		email = payload.Email
	}
	return &sdk.AccountUser{
		ID:            payload.ID,
		Username:      payload.Username,
		BugzillaEmail: email,
		Groups:        payload.Groups,
	}, nil
}

func (c *client) GroupMemberships(ctx context.Context, username string) ([]string, error) {
	u, err := c.ResolveUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return u.Groups, nil
}

func (c *client) BugzillaEmail(ctx context.Context, username string) (string, error) {
	u, err := c.ResolveUser(ctx, username)
	if err != nil {
		return "", err
	}
	return u.BugzillaEmail, nil
}

func (c *client) doJSONRequest(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.conf.URL+path, nil)
	if err != nil {
		return sdk.WithStack(err)
	}
	if c.conf.Username != "" {
		req.SetBasicAuth(c.conf.Username, c.conf.Password)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return sdk.NewError(sdk.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close() // nolint

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return sdk.NewErrorFrom(sdk.ErrNotFound, "account directory: no such user")
	case resp.StatusCode >= 400:
		return sdk.NewErrorFrom(sdk.ErrServiceUnavailable, "account directory returned HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return sdk.NewError(sdk.ErrServiceUnavailable, err)
	}
	return nil
}
