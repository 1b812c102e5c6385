// Package tidyhq mirrors a TidyHQ organisation account into a local
// snapshot.
//
// The Client issues authenticated reads against the v1 REST API for the
// five resource categories (contacts, groups, memberships, invoices,
// organization). The Service builds a Snapshot from a full pull, deriving
// the per-contact invoice index along the way, persists it to the cache
// file, and arbitrates freshness between an in-memory snapshot, the cache
// file and a rebuild.
//
// All records keep their complete JSON bodies in document order; ids used
// as dictionary keys are canonicalized to decimal strings at ingestion.
package tidyhq
