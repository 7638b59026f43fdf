package massacl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommitted(t *testing.T) {
	updated := []candidate{
		{ListingID: 1, PackageName: "guake"},
		{ListingID: 2, PackageName: "terminator"},
		{ListingID: 3, PackageName: "tilda"},
	}

	assert.Equal(t, updated, committed(updated, nil))

	// listing 2 rolled back after the update was issued, its tracker
	// component must keep the old assignee
	out := committed(updated, []BulkFailure{{ListingID: 2, Package: "terminator", Error: "database error"}})
	assert.Len(t, out, 2)
	assert.Equal(t, int64(1), out[0].ListingID)
	assert.Equal(t, int64(3), out[1].ListingID)
}
