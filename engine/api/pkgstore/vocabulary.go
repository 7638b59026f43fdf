package pkgstore

import (
	"github.com/go-gorp/gorp"

	"github.com/fedora-infra/packagedb-sub000/engine/api/database/gorpmapping"
	"github.com/fedora-infra/packagedb-sub000/sdk"
)

// LoadVocabulary reads the status translation table, filtered to the
// canonical locale, and builds the immutable vocabulary handed to the rest of
// the engine at startup.
func LoadVocabulary(db gorp.SqlExecutor) (sdk.StatusVocabulary, error) {
	rows, err := db.Query("SELECT status_code, name FROM status_translation WHERE language = 'C'")
	if err != nil {
		return sdk.StatusVocabulary{}, sdk.WrapError(gorpmapping.Error(err), "cannot load status translations")
	}
	defer rows.Close() // nolint

	entries := map[sdk.Status]int{}
	for rows.Next() {
		var code int
		var name string
		if err := rows.Scan(&code, &name); err != nil {
			return sdk.StatusVocabulary{}, sdk.WithStack(err)
		}
		entries[sdk.Status(name)] = code
	}
	if err := rows.Err(); err != nil {
		return sdk.StatusVocabulary{}, sdk.WithStack(err)
	}
	if len(entries) == 0 {
		return sdk.StatusVocabulary{}, sdk.NewErrorFrom(sdk.ErrStatusNotFound, "status translation table is empty")
	}
	return sdk.NewStatusVocabulary(entries), nil
}
