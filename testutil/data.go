package testutil

import "github.com/c360/traitstore/graph"

// Fixture entity ids
const (
	FixtureInbox     = "inbox"
	FixtureGroceries = "groceries"
	FixtureRelease   = "release"
	FixtureAda       = "ada"
	FixtureReading   = "reading-list"
)

// Fixtures returns a small mixed data set: a well-known inbox collection, a
// note, a task that also carries a link, a contact, and a collection. Every
// call returns fresh values.
func Fixtures() []graph.Entity {
	return []graph.Entity{
		{
			ID:     FixtureInbox,
			Traits: []graph.Trait{graph.NewTrait("inbox-collection", graph.Collection{Name: "Inbox"})},
		},
		{
			ID:     FixtureGroceries,
			Traits: []graph.Trait{graph.NewTrait("note-1", graph.Note{Title: "Groceries", Body: "milk, eggs"})},
		},
		{
			ID: FixtureRelease,
			Traits: []graph.Trait{
				graph.NewTrait("link-1", graph.Link{Title: "Changelog", URL: "https://example.com/changelog"}),
				graph.NewTrait("task-1", graph.Task{Title: "Ship release"}),
			},
		},
		{
			ID:     FixtureAda,
			Traits: []graph.Trait{graph.NewTrait("contact-1", graph.Contact{Name: "Ada Lovelace", Email: "ada@example.com"})},
		},
		{
			ID:     FixtureReading,
			Traits: []graph.Trait{graph.NewTrait("collection-1", graph.Collection{Name: "Reading list"})},
		},
	}
}

// SeededStore returns a MemoryStore holding Fixtures()
func SeededStore() *MemoryStore {
	s := NewMemoryStore()
	s.Seed(Fixtures()...)
	return s
}
