package graph

// Priority holds the summarisation attributes of a trait type or of a
// well-known entity id.
type Priority struct {
	// Order ranks candidates for the priority trait; lower wins.
	Order int `json:"order" mapstructure:"order"`
	// Label is a fixed display name. Empty means no fixed label.
	Label string `json:"label,omitempty" mapstructure:"label"`
	// UseDisplayName shows the payload's own name instead of Label.
	UseDisplayName bool `json:"use_display_name,omitempty" mapstructure:"use_display_name"`
	// Renamable allows Rename on traits of this type.
	Renamable bool `json:"renamable,omitempty" mapstructure:"renamable"`
}

// PriorityTable maps semantic type names and well-known entity ids to their
// priority metadata. Tables are plain values passed to each entity model, so
// independent models and tests can use different tables.
type PriorityTable struct {
	Types    map[string]Priority `json:"types"`
	Entities map[string]Priority `json:"entities"`
}

// NewPriorityTable returns an empty table
func NewPriorityTable() *PriorityTable {
	return &PriorityTable{
		Types:    make(map[string]Priority),
		Entities: make(map[string]Priority),
	}
}

// DefaultPriorityTable returns a new table populated with the built-in
// ordering: well-known entities first, then collections, contacts, notes,
// tasks, links, and files.
func DefaultPriorityTable() *PriorityTable {
	t := NewPriorityTable()
	t.Entities["inbox"] = Priority{Order: 0, Label: "Inbox"}
	t.Entities["archive"] = Priority{Order: 1, Label: "Archive"}

	t.Types[TypeCollection] = Priority{Order: 10, UseDisplayName: true, Renamable: true}
	t.Types[TypeContact] = Priority{Order: 20, UseDisplayName: true, Renamable: true}
	t.Types[TypeNote] = Priority{Order: 30, UseDisplayName: true, Renamable: true}
	t.Types[TypeTask] = Priority{Order: 40, UseDisplayName: true, Renamable: true}
	t.Types[TypeLink] = Priority{Order: 50, UseDisplayName: true, Renamable: true}
	t.Types[TypeFile] = Priority{Order: 60, UseDisplayName: true}
	return t
}

// ForType returns the priority of a semantic type name
func (t *PriorityTable) ForType(name string) (Priority, bool) {
	if t == nil {
		return Priority{}, false
	}
	p, ok := t.Types[name]
	return p, ok
}

// ForEntity returns the priority of a well-known entity id
func (t *PriorityTable) ForEntity(id string) (Priority, bool) {
	if t == nil {
		return Priority{}, false
	}
	p, ok := t.Entities[id]
	return p, ok
}

// Clone returns a deep copy of the table
func (t *PriorityTable) Clone() *PriorityTable {
	out := NewPriorityTable()
	if t == nil {
		return out
	}
	for k, v := range t.Types {
		out.Types[k] = v
	}
	for k, v := range t.Entities {
		out.Entities[k] = v
	}
	return out
}
