package api

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fedora-infra/packagedb-sub000/sdk"
)

func TestNormalizeStatus(t *testing.T) {
	// blank dropdown values of the legacy UI mean Obsolete
	assert.Equal(t, sdk.StatusObsolete, normalizeStatus(""))
	assert.Equal(t, sdk.StatusObsolete, normalizeStatus("   "))

	assert.Equal(t, sdk.StatusApproved, normalizeStatus("Approved"))
	assert.Equal(t, sdk.StatusAwaitingReview, normalizeStatus(" Awaiting Review "))
}
