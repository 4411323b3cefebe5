// Package webhooks delivers signed enrollment events to external services.
//
// # Overview
//
// Dispatcher posts JSON events to the configured endpoints with exponential
// backoff retries. It is both the enrollment ledger's PaymentInitiator
// (payment.requested) and its Notifier (enrollment.active,
// enrollment.failed, enrollment.revoked).
//
// # Signatures
//
// Every request to an endpoint with a secret carries
//
//	X-Chefhub-Signature: sha256=<hex HMAC-SHA256 of the body>
//
// The same scheme authenticates the payment service's callbacks to chefhub:
//
//	if !webhooks.VerifySignature(body, r.Header.Get(webhooks.SignatureHeader), secret) {
//		return errors.New("invalid signature")
//	}
//
// # Retry Policy
//
// 5xx, 429 and transport errors are retried: 0.5s, 1s, 2s, 4s up to five
// attempts. Other 4xx responses are not retried.
package webhooks
