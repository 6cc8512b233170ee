package graph

import (
	"encoding/json"
	"time"
)

// Semantic type names of the known payload kinds
const (
	TypeNote       = "note"
	TypeTask       = "task"
	TypeContact    = "contact"
	TypeCollection = "collection"
	TypeLink       = "link"
	TypeFile       = "file"
)

// KnownTypes lists the semantic type names of the closed payload set
var KnownTypes = []string{
	TypeNote,
	TypeTask,
	TypeContact,
	TypeCollection,
	TypeLink,
	TypeFile,
}

// Payload is the typed message carried by a trait. The set of implementations
// is closed: Note, Task, Contact, Collection, Link, File, and Opaque for type
// names this module does not know.
type Payload interface {
	TypeName() string
	sealed()
}

// Named is implemented by payloads that carry a human readable name
type Named interface {
	DisplayName() string
}

// Renamable is implemented by payloads whose name can be replaced. WithName
// returns a modified copy and leaves the receiver untouched.
type Renamable interface {
	Named
	WithName(name string) Payload
}

// Note is free-form text with a title
type Note struct {
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
}

func (Note) TypeName() string { return TypeNote }
func (Note) sealed() {}
func (n Note) DisplayName() string { return n.Title }
func (n Note) WithName(s string) Payload {
	n.Title = s
	return n
}

// Task is an actionable item
type Task struct {
	Title string     `json:"title"`
	Done  bool       `json:"done"`
	Due   *time.Time `json:"due,omitempty"`
}

func (Task) TypeName() string { return TypeTask }
func (Task) sealed() {}
func (t Task) DisplayName() string { return t.Title }
func (t Task) WithName(s string) Payload {
	t.Title = s
	return t
}

// Contact describes a person or organisation
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

func (Contact) TypeName() string { return TypeContact }
func (Contact) sealed() {}
func (c Contact) DisplayName() string { return c.Name }
func (c Contact) WithName(s string) Payload {
	c.Name = s
	return c
}

// Collection groups other entities under a name
type Collection struct {
	Name string `json:"name"`
}

func (Collection) TypeName() string { return TypeCollection }
func (Collection) sealed() {}
func (c Collection) DisplayName() string { return c.Name }
func (c Collection) WithName(s string) Payload {
	c.Name = s
	return c
}

// Link points at an external resource
type Link struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

func (Link) TypeName() string { return TypeLink }
func (Link) sealed() {}

// DisplayName falls back to the URL when the link has no title
func (l Link) DisplayName() string {
	if l.Title != "" {
		return l.Title
	}
	return l.URL
}

func (l Link) WithName(s string) Payload {
	l.Title = s
	return l
}

// File describes stored binary content. Files are named but not renamable:
// the name is owned by the blob store.
type File struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

func (File) TypeName() string { return TypeFile }
func (File) sealed() {}
func (f File) DisplayName() string { return f.Name }

// Opaque carries a payload whose type name is outside the known set. Data is
// kept verbatim so it can be written back unchanged.
type Opaque struct {
	Type string          `json:"-"`
	Data json.RawMessage `json:"-"`
}

func (o Opaque) TypeName() string { return o.Type }
func (Opaque) sealed() {}

// IsKnownType reports whether name belongs to the closed payload set
func IsKnownType(name string) bool {
	for _, k := range KnownTypes {
		if k == name {
			return true
		}
	}
	return false
}
