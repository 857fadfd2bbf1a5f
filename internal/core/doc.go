// Package core imports tabular rows into a relational schema.
//
// The engine is driven by a [mapping.Spec]: an ordered list of table mappings,
// each projecting source fields onto destination columns, wiring foreign keys
// to ids produced earlier in the same row, and optionally deduplicating on a
// natural key.
//
// # Row Processing
//
// [RowProcessor.Process] handles one row:
//
//  1. Every table mapping is extracted and its values converted ([Extract]).
//     A conversion failure fails the row before the store is touched.
//  2. Natural keys the row will look up are locked ([KeyLocker]) so that
//     concurrent workers cannot both insert the same record.
//  3. A transaction is opened. For each table mapping, in order:
//     foreign keys are filled from the [RowContext] ([ResolveForeignKeys]),
//     null values are dropped, an existing record is looked up by its natural
//     key ([FindExisting]) and reused, or the record is inserted ([Insert]).
//  4. The transaction commits, or rolls back on the first failure.
//
// A lookup that fails is logged and treated as "not found". On Postgres the
// lookup runs under a savepoint so the failure does not abort the transaction.
//
// # Import Runs
//
// [Runner.Run] feeds every row of a [source.Reader] through the processor,
// optionally with several workers, and returns a [Summary]. Failed rows are
// recorded with a [Kind] and a user-facing code (see [MapError]) and never
// stop the run.
package core
