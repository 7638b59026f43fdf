package aclstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fedora-infra/packagedb-sub000/sdk"
)

func TestIsGrantStatus(t *testing.T) {
	assert.True(t, IsGrantStatus(sdk.StatusAwaitingReview))
	assert.True(t, IsGrantStatus(sdk.StatusApproved))
	assert.True(t, IsGrantStatus(sdk.StatusDenied))
	assert.True(t, IsGrantStatus(sdk.StatusObsolete))

	assert.False(t, IsGrantStatus(sdk.StatusOwned))
	assert.False(t, IsGrantStatus(sdk.StatusRetired))
	assert.False(t, IsGrantStatus(sdk.Status("")))
}

func TestToggleRequest(t *testing.T) {
	tests := []struct {
		name    string
		acl     sdk.Acl
		current sdk.Status
		exists  bool
		want    sdk.Status
	}{
		{"first request awaits review", sdk.AclCommit, "", false, sdk.StatusAwaitingReview},
		{"first watch request is auto approved", sdk.AclWatchCommits, "", false, sdk.StatusApproved},
		{"re-request after withdrawal", sdk.AclCommit, sdk.StatusObsolete, true, sdk.StatusAwaitingReview},
		{"re-request after denial", sdk.AclCommit, sdk.StatusDenied, true, sdk.StatusAwaitingReview},
		{"watch re-request is auto approved", sdk.AclWatchBugzilla, sdk.StatusDenied, true, sdk.StatusApproved},
		{"withdraw pending request", sdk.AclCommit, sdk.StatusAwaitingReview, true, sdk.StatusObsolete},
		{"withdraw held acl", sdk.AclCommit, sdk.StatusApproved, true, sdk.StatusObsolete},
		{"withdraw held watch acl", sdk.AclWatchCommits, sdk.StatusApproved, true, sdk.StatusObsolete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToggleRequest(tt.acl, tt.current, tt.exists))
		})
	}
}

func TestToggleRequestRoundTrip(t *testing.T) {
	// request then withdraw then re-request always lands back in a requestable state
	for _, acl := range sdk.GrantableAcls {
		s := ToggleRequest(acl, "", false)
		assert.True(t, s == sdk.StatusApproved || s == sdk.StatusAwaitingReview)

		s = ToggleRequest(acl, s, true)
		assert.Equal(t, sdk.StatusObsolete, s)

		s = ToggleRequest(acl, s, true)
		assert.True(t, s == sdk.StatusApproved || s == sdk.StatusAwaitingReview)
	}
}
