package sdk

// Status is a named entry of the closed status vocabulary. Entities persist
// the numeric code, translation between name and code goes through a
// StatusVocabulary.
type Status string

const (
	StatusActive           Status = "Active"
	StatusAdded            Status = "Added"
	StatusApproved         Status = "Approved"
	StatusAwaitingReview   Status = "Awaiting Review"
	StatusEOL              Status = "EOL"
	StatusDenied           Status = "Denied"
	StatusModified         Status = "Modified"
	StatusObsolete         Status = "Obsolete"
	StatusOrphaned         Status = "Orphaned"
	StatusOwned            Status = "Owned"
	StatusRemoved          Status = "Removed"
	StatusUnderDevelopment Status = "Under Development"
	StatusRetired          Status = "Retired"
)

// defaultStatusCodes are the historical code assignments, kept stable because
// they are persisted in every statuscode column.
var defaultStatusCodes = map[Status]int{
	StatusActive:           1,
	StatusAdded:            2,
	StatusApproved:         3,
	StatusAwaitingReview:   8,
	StatusEOL:              9,
	StatusDenied:           10,
	StatusModified:         12,
	StatusObsolete:         13,
	StatusOrphaned:         14,
	StatusOwned:            15,
	StatusRemoved:          17,
	StatusUnderDevelopment: 18,
	StatusRetired:          20,
}

// StatusVocabulary is an immutable bidirectional name<->code mapping. It is
// loaded once at startup and handed to every component that needs status
// translation, there is no ambient global.
type StatusVocabulary struct {
	byName map[Status]int
	byCode map[int]Status
}

// NewStatusVocabulary builds a vocabulary from given entries.
func NewStatusVocabulary(entries map[Status]int) StatusVocabulary {
	v := StatusVocabulary{
		byName: make(map[Status]int, len(entries)),
		byCode: make(map[int]Status, len(entries)),
	}
	for name, code := range entries {
		v.byName[name] = code
		v.byCode[code] = name
	}
	return v
}

// DefaultStatusVocabulary returns the vocabulary with the historical codes.
func DefaultStatusVocabulary() StatusVocabulary {
	return NewStatusVocabulary(defaultStatusCodes)
}

// Code returns the numeric code for given status name. An unknown name is an
// error, never a default: every downstream statuscode comparison depends on it.
func (v StatusVocabulary) Code(name Status) (int, error) {
	code, ok := v.byName[name]
	if !ok {
		return 0, NewErrorFrom(ErrStatusNotFound, "unknown status name %q", name)
	}
	return code, nil
}

// Name returns the status name for given numeric code.
func (v StatusVocabulary) Name(code int) (Status, error) {
	name, ok := v.byCode[code]
	if !ok {
		return "", NewErrorFrom(ErrStatusNotFound, "unknown status code %d", code)
	}
	return name, nil
}

// Has returns true if given status name is part of the vocabulary.
func (v StatusVocabulary) Has(name Status) bool {
	_, ok := v.byName[name]
	return ok
}
