// Package async provides safe concurrent execution primitives for background tasks.
//
// # Key Functions
//
// SafeGo: run a function in a goroutine with panic recovery, a timeout, and
// failure logging through logrus. The enrollment ledger uses it to call the
// payment and notification collaborators after a transaction commits.
//
//	async.SafeGo(context.WithoutCancel(ctx), 10*time.Second, "initiate payment", func(ctx context.Context) error {
//		return payments.InitiatePayment(ctx, e)
//	})
//
// WorkerPool and Batch: bounded concurrent processing with error collection.
// The pending-enrollment sweeper expires stale rows with Batch.
//
//	errs := async.Batch(ctx, ids, 4, "expire enrollments", 10*time.Second, func(ctx context.Context, id string) error {
//		_, err := ledger.Fail(ctx, id, "expired")
//		return err
//	})
package async
