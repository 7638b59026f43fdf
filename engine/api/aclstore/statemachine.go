package aclstore

import (
	"github.com/fedora-infra/packagedb-sub000/sdk"
)

// Acl rows move between Awaiting Review, Approved, Denied and Obsolete.
// There is no terminal state: a revoked or denied acl can always be
// re-requested. The commit to build mirroring in the daos bypasses these
// transitions on purpose, build copies the exact status of commit.

// GrantStatuses are the statuses an administrator may set on an acl row.
var GrantStatuses = []sdk.Status{
	sdk.StatusAwaitingReview,
	sdk.StatusApproved,
	sdk.StatusDenied,
	sdk.StatusObsolete,
}

// IsGrantStatus returns true if given status is settable on an acl row.
func IsGrantStatus(s sdk.Status) bool {
	for _, g := range GrantStatuses {
		if g == s {
			return true
		}
	}
	return false
}

// ToggleRequest computes the next status of a self-service request or
// withdrawal. When the acl is absent, Obsolete or Denied the principal is
// (re-)requesting it: watch acls are auto approved, everything else awaits
// review. When the acl is pending or held, the principal is withdrawing it.
func ToggleRequest(acl sdk.Acl, current sdk.Status, exists bool) sdk.Status {
	if !exists || current == sdk.StatusObsolete || current == sdk.StatusDenied {
		if acl.AutoApproved() {
			return sdk.StatusApproved
		}
		return sdk.StatusAwaitingReview
	}
	return sdk.StatusObsolete
}
