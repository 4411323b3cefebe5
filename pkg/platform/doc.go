// Package platform is the inbound surface of chefhub.
//
// Service exposes the operations the HTTP layer and the payment webhook
// collaborator call: content authoring for chefs, catalog browsing, gated
// detail reads, course purchase and the payment callbacks that drive the
// enrollment ledger. Every call passes through the access gate first; the
// content store then re-checks ownership inside its own transaction.
//
// The published course listing is served by Catalog, which caches it in
// Redis and fills misses through a singleflight group so a burst of
// requests after an invalidation hits the database once.
package platform
