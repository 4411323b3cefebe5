// Package audit records access decisions for security review.
//
// # Overview
//
// The access gate hands every denied decision and every authorized content
// mutation or purchase to a Logger. Allowed reads are not recorded.
// Enrollment state changes have their own trail in the enrollment ledger.
//
// # Sinks
//
//	dbLogger, _ := audit.NewDBLogger(db)
//	sink := audit.NewMultiLogger(dbLogger, audit.NewLogrusLogger(logger))
//	sink.SetAsync(true)
//	g := gate.New(store, ledger, logger, gate.WithAuditLogger(sink))
//
// # Querying
//
//	events, err := dbLogger.Search(ctx, audit.SearchFilter{
//		ActorID: actor.UserID,
//		Status:  audit.EventStatusDenied,
//		Limit:   20,
//	})
//
// # Retention
//
//	deleted, err := dbLogger.Cleanup(ctx, 90*24*time.Hour)
//
// or on a schedule:
//
//	r, err := audit.NewRetention(dbLogger, 90*24*time.Hour, "@daily", logger)
//	r.Start()
//	defer r.Stop(ctx)
package audit
