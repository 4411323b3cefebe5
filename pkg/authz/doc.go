// Package authz decides whether an actor may perform an operation on a piece
// of content.
//
// Decide is a pure function over the actor, the operation and the target's
// facts (owner, published, archived, gated). It never touches storage; the
// access gate resolves the facts and, when the result is Gated, asks the
// enrollment ledger.
//
// Rules are evaluated in order, first match wins:
//
//  1. Anonymous actors may only read.
//  2. Enrolling needs the purchase capability and a published course.
//  3. Creating a root entity needs the own-content-mutation capability.
//  4. The owner of the entity, or of its course, may do anything.
//  5. Reads of published, live, non-gated content are allowed for everyone.
//  6. Reads of published, live, gated content return Gated for
//     authenticated actors and Unauthenticated for anonymous ones.
//  7. Everything else is denied: NotPublished for reads, NotOwner for the
//     rest.
package authz
