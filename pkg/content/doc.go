// Package content stores the chef-owned content hierarchy: courses, their
// ordered classes, and the recipes and books those classes reference.
//
// # Hierarchy
//
//	Chef ──owns──> Course ──contains (ordered)──> Class ──references──> Recipe
//	Chef ──owns──> Recipe
//	Chef ──owns──> Book ──references (ordered)──> Recipe
//
// Classes belong to exactly one course for their whole life. Recipes are
// referenced, never owned, by classes and books, so archiving a course or a
// book never touches the recipes it points at.
//
// # Writes
//
// Each mutation takes the acting user id, re-checks ownership inside its
// transaction and returns ErrOwnershipViolation for non-owners, regardless
// of what the caller already authorized. Hierarchy breaks (foreign recipes,
// writes to archived content, bad reorders) return ErrInvalidHierarchy.
//
// ArchiveCourse flips the course first and then archives each class in its
// own transaction with bounded concurrency. A partial failure leaves the
// course archived with some live classes; calling ArchiveCourse again
// finishes the job.
//
// # Reads
//
// Reads are role-agnostic. Visibility of drafts and paid content is decided
// by pkg/gate, not here.
package content
