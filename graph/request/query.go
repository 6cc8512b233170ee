package request

// Predicate selects entities. The set of implementations is closed: IDs,
// TraitType, FullText, and All.
type Predicate interface {
	predicate()
}

// IDs matches entities by id
type IDs struct {
	IDs []string
}

// TraitType matches entities having a trait of Type. Sub, when set,
// further restricts the matching entities.
type TraitType struct {
	Type string
	Sub  Predicate
}

// FullText matches entities whose trait payloads contain Query
type FullText struct {
	Query string
}

// All matches every entity
type All struct{}

func (IDs) predicate()       {}
func (TraitType) predicate() {}
func (FullText) predicate()  {}
func (All) predicate()       {}

// Ordering sorts query results either by a field or by the operation id
// that last touched each entity. The two are exclusive.
type Ordering struct {
	Field         string
	ByOperationID bool
	Ascending     bool
}

// EntityQuery is a read request with exactly one predicate. Count zero means
// no paging limit.
type EntityQuery struct {
	Predicate      Predicate
	Count          int
	Ordering       *Ordering
	Projections    []string
	IncludeDeleted bool
}

// QueryBuilder accumulates an EntityQuery. Each predicate method replaces the
// previous predicate.
type QueryBuilder struct {
	q EntityQuery
}

// NewQueryBuilder returns an empty builder
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{}
}

// WithIDs selects entities by id
func (b *QueryBuilder) WithIDs(ids ...string) *QueryBuilder {
	b.q.Predicate = IDs{IDs: append([]string(nil), ids...)}
	return b
}

// WithTrait selects entities carrying a trait of the given type
func (b *QueryBuilder) WithTrait(traitType string) *QueryBuilder {
	b.q.Predicate = TraitType{Type: traitType}
	return b
}

// WithTraitWhere selects entities carrying a trait of the given type that
// also satisfy sub
func (b *QueryBuilder) WithTraitWhere(traitType string, sub Predicate) *QueryBuilder {
	b.q.Predicate = TraitType{Type: traitType, Sub: clonePredicate(sub)}
	return b
}

// Matching selects entities by full-text match
func (b *QueryBuilder) Matching(text string) *QueryBuilder {
	b.q.Predicate = FullText{Query: text}
	return b
}

// All selects every entity
func (b *QueryBuilder) All() *QueryBuilder {
	b.q.Predicate = All{}
	return b
}

// Count limits the number of returned entities
func (b *QueryBuilder) Count(n int) *QueryBuilder {
	b.q.Count = n
	return b
}

// OrderByField orders by a payload field, replacing any ordering
func (b *QueryBuilder) OrderByField(name string, ascending bool) *QueryBuilder {
	b.q.Ordering = &Ordering{Field: name, Ascending: ascending}
	return b
}

// OrderByOperationIDs orders by last operation id, replacing any ordering
func (b *QueryBuilder) OrderByOperationIDs(ascending bool) *QueryBuilder {
	b.q.Ordering = &Ordering{ByOperationID: true, Ascending: ascending}
	return b
}

// Project appends field projections
func (b *QueryBuilder) Project(fields ...string) *QueryBuilder {
	b.q.Projections = append(b.q.Projections, fields...)
	return b
}

// IncludeDeleted includes tombstoned entities in results
func (b *QueryBuilder) IncludeDeleted() *QueryBuilder {
	b.q.IncludeDeleted = true
	return b
}

// Build snapshots the accumulated query
func (b *QueryBuilder) Build() EntityQuery {
	out := b.q
	out.Predicate = clonePredicate(b.q.Predicate)
	if b.q.Ordering != nil {
		o := *b.q.Ordering
		out.Ordering = &o
	}
	if b.q.Projections != nil {
		out.Projections = append([]string(nil), b.q.Projections...)
	}
	return out
}

func clonePredicate(p Predicate) Predicate {
	switch v := p.(type) {
	case IDs:
		return IDs{IDs: append([]string(nil), v.IDs...)}
	case TraitType:
		return TraitType{Type: v.Type, Sub: clonePredicate(v.Sub)}
	default:
		return p
	}
}
