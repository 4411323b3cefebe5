// Package api is the HTTP transport for the chefhub platform.
//
// # Routes
//
// All routes live under /api/v1 and exchange JSON.
//
// Browsing and detail (anonymous allowed):
//
//	GET  /courses                       published catalog
//	GET  /courses/{id}                  course with outline
//	GET  /classes/{id}                  class with recipes (gated)
//	GET  /recipes/{id}?via_class={cid}  recipe, optionally through a class
//	GET  /books/{id}                    book with readable recipes
//
// Authoring (chef owner only):
//
//	POST /courses, PUT /courses/{id}, POST /courses/{id}/publish, POST /courses/{id}/archive
//	POST /courses/{id}/classes, PUT /courses/{id}/classes/order, PUT /classes/{id}
//	POST /recipes, PUT /recipes/{id}, POST /recipes/{id}/archive, GET /recipes/{id}/usage
//	POST /books, PUT /books/{id}, POST /books/{id}/archive
//	GET  /courses/{id}/stats
//
// Enrollment:
//
//	POST /courses/{id}/purchase         Idempotency-Key header optional
//	GET  /me/enrollments, GET /enrollments/{id}/history
//	POST /classes/{id}/complete, GET /courses/{id}/progress
//
// Audit, when configured: GET /me/audit?status=denied&limit=20
//
// Payment provider callbacks, authenticated by the X-Chefhub-Signature HMAC
// header instead of a bearer token. The signed body names the enrollment it
// acts on and must match {id}:
//
//	POST /webhooks/payments/{id}/confirm   {"enrollment_id": "{id}", "ref": "..."}
//	POST /webhooks/payments/{id}/fail      {"enrollment_id": "{id}", "reason": "..."}
//	POST /webhooks/payments/{id}/revoke    {"enrollment_id": "{id}", "reason": "..."}
//
// # Errors
//
// Domain errors map to statuses in errors.go; bodies are
// {"error": "...", "code": "..."}.
package api
