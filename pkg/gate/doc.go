// Package gate answers whether an actor may perform an operation on a piece
// of content right now.
//
// The gate loads the target and its ancestors from the content store
// (class -> course -> chef), hands the resulting facts to authz.Decide and,
// when the rules defer a read to the enrollment ledger, settles it with
// HasActiveAccess. It never mutates state.
//
//	g := gate.New(contentStore, ledger, logger)
//	if err := g.Require(ctx, actor, authz.OpRead, gate.Class(classID)); err != nil {
//		return err // authz.ErrNotEnrolled, authz.ErrNotPublished, ...
//	}
//
// Every decision is traced and counted in chefhub_access_decisions_total.
package gate
