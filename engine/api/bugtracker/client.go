package bugtracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fedora-infra/packagedb-sub000/sdk"
)

// Configuration is the exposed configuration of the bug tracker client.
type Configuration struct {
	URL     string `toml:"url" default:"https://bugzilla.redhat.com" json:"url"`
	APIKey  string `toml:"apiKey" default:"" json:"-"`
	Product string `toml:"product" default:"Fedora" json:"product"`
	Timeout int    `toml:"timeout" default:"10" json:"timeout"`
}

// NewClient returns a Client backed by the bugzilla REST API.
func NewClient(conf Configuration) Client {
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

func (c *client) VerifyEmail(ctx context.Context, email string) error {
	endpoint := fmt.Sprintf("%s/rest/user?names=%s", c.conf.URL, url.QueryEscape(email))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return sdk.WithStack(err)
	}
	c.auth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return sdk.NewError(sdk.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close() // nolint

	if resp.StatusCode >= 500 {
		return sdk.NewErrorFrom(sdk.ErrServiceUnavailable, "bug tracker returned HTTP %d", resp.StatusCode)
	}

	var payload struct {
		Users []struct {
			Name string `json:"name"`
		} `json:"users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return sdk.NewError(sdk.ErrServiceUnavailable, err)
	}

	if resp.StatusCode == http.StatusNotFound || len(payload.Users) == 0 {
		return sdk.NewErrorFrom(sdk.ErrNoSuchTrackerUser, "no bug tracker account for %s", email)
	}
	if resp.StatusCode >= 400 {
		return sdk.NewErrorFrom(sdk.ErrServiceUnavailable, "bug tracker returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (c *client) ReassignDefaultOwner(ctx context.Context, component, collection, newEmail string) error {
	body, err := json.Marshal(map[string]string{
		"product":          c.conf.Product,
		"component":        component,
		"version":          collection,
		"default_assignee": newEmail,
	})
	if err != nil {
		return sdk.WithStack(err)
	}

	endpoint := fmt.Sprintf("%s/rest/component/%s", c.conf.URL, url.PathEscape(component))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return sdk.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return sdk.NewError(sdk.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close() // nolint

	if resp.StatusCode >= 400 {
		return sdk.NewErrorFrom(sdk.ErrServiceUnavailable, "bug tracker returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (c *client) auth(req *http.Request) {
	if c.conf.APIKey != "" {
		req.Header.Set("X-BUGZILLA-API-KEY", c.conf.APIKey)
	}
}
