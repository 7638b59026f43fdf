package gorpmapping

// TableMapping represents a table mapping with gorp.
type TableMapping struct {
	Target        interface{}
	Name          string
	AutoIncrement bool
	Keys          []string
}

// New initializes a TableMapping.
func New(target interface{}, name string, autoIncrement bool, keys ...string) TableMapping {
	return TableMapping{Target: target, Name: name, AutoIncrement: autoIncrement, Keys: keys}
}

// Mapping is the global var for all registered mapping.
var Mapping []TableMapping

// Register initializes gorp mapping.
func Register(m ...TableMapping) {
	Mapping = append(Mapping, m...)
}
