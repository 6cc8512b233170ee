// Package request defines mutation and query request values, the fluent
// builders that produce them, and the result values a store engine returns.
//
// Builders accumulate state and snapshot it at Build. A built request is
// never affected by later builder calls, so one builder can be used to
// stamp out several related requests:
//
//	req := request.NewMutationBuilder().
//	    CreateEntity().
//	    PutTrait(graph.Note{Title: "groceries"}).
//	    ReturnEntities().
//	    Build()
//
// Builders perform no validation. A query without a predicate, or a
// mutation list that targets no entity, is sent as-is and rejected by the
// engine on the far side of the transport. Builders are not safe for
// concurrent use.
package request
