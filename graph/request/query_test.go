package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/traitstore/graph"
)

func TestQueryBuilder_LastPredicateWins(t *testing.T) {
	tests := []struct {
		name  string
		build func(*QueryBuilder) *QueryBuilder
		want  Predicate
	}{
		{"ids then all", func(b *QueryBuilder) *QueryBuilder { return b.WithIDs("a").All() }, All{}},
		{"all then ids", func(b *QueryBuilder) *QueryBuilder { return b.All().WithIDs("a", "b") }, IDs{IDs: []string{"a", "b"}}},
		{"trait then text", func(b *QueryBuilder) *QueryBuilder { return b.WithTrait(graph.TypeNote).Matching("milk") }, FullText{Query: "milk"}},
		{"text then trait", func(b *QueryBuilder) *QueryBuilder { return b.Matching("milk").WithTrait(graph.TypeTask) }, TraitType{Type: graph.TypeTask}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.build(NewQueryBuilder()).Build()
			assert.Equal(t, tt.want, q.Predicate)
		})
	}
}

func TestQueryBuilder_NoPredicateIsNotValidated(t *testing.T) {
	q := NewQueryBuilder().Count(5).Build()
	assert.Nil(t, q.Predicate)
	assert.Equal(t, 5, q.Count)
}

func TestQueryBuilder_WithTraitWhere(t *testing.T) {
	q := NewQueryBuilder().WithTraitWhere(graph.TypeTask, FullText{Query: "release"}).Build()

	tt, ok := q.Predicate.(TraitType)
	require.True(t, ok)
	assert.Equal(t, graph.TypeTask, tt.Type)
	assert.Equal(t, FullText{Query: "release"}, tt.Sub)
}

func TestQueryBuilder_OrderingIsExclusive(t *testing.T) {
	q := NewQueryBuilder().All().OrderByField("title", true).OrderByOperationIDs(false).Build()
	require.NotNil(t, q.Ordering)
	assert.Equal(t, Ordering{ByOperationID: true}, *q.Ordering)

	q = NewQueryBuilder().All().OrderByOperationIDs(true).OrderByField("due", false).Build()
	require.NotNil(t, q.Ordering)
	assert.Equal(t, Ordering{Field: "due"}, *q.Ordering)
}

func TestQueryBuilder_ProjectAppends(t *testing.T) {
	q := NewQueryBuilder().All().Project("title").Project("due", "done").IncludeDeleted().Build()

	assert.Equal(t, []string{"title", "due", "done"}, q.Projections)
	assert.True(t, q.IncludeDeleted)
}

func TestQueryBuilder_BuildIsSnapshot(t *testing.T) {
	ids := []string{"a", "b"}
	b := NewQueryBuilder().WithIDs(ids...).Project("title").OrderByField("title", true)
	first := b.Build()

	ids[0] = "mutated"
	b.Project("body").OrderByField("body", false)
	second := b.Build()

	assert.Equal(t, IDs{IDs: []string{"a", "b"}}, first.Predicate)
	assert.Equal(t, []string{"title"}, first.Projections)
	assert.Equal(t, "title", first.Ordering.Field)
	assert.Equal(t, []string{"title", "body"}, second.Projections)
	assert.Equal(t, "body", second.Ordering.Field)
}

func TestQueryResult_Entity(t *testing.T) {
	r := &QueryResult{Entities: []graph.Entity{{ID: "a"}, {ID: "b"}}}

	e, ok := r.Entity("b")
	assert.True(t, ok)
	assert.Equal(t, "b", e.ID)

	_, ok = r.Entity("c")
	assert.False(t, ok)

	var nilResult *QueryResult
	_, ok = nilResult.Entity("a")
	assert.False(t, ok)
}
