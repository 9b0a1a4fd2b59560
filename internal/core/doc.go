// Package core implements the swim meet import pipeline.
//
// Two unreliable feeds are normalized into canonical Swimmer and SwimmerTime
// rows plus an append-only ImportHistory ledger:
//
//   - Entries: a vendor CSV export of the pre-meet roster with seed times,
//     loaded by [EntriesImporter].
//   - Results: a scraped HTML report of achieved times, loaded by
//     [ResultsImporter] and optionally downloaded by [ResultsFetcher].
//
// # Service
//
// [Service] is built once at startup with [NewService] and handed to the web
// and CLI frontends. Each import call takes a slot from the [ImportLimiter],
// looks up the meet, runs detached from request cancellation (bounded by
// [Options.ImportTimeout]) and appends one ledger row when it completes.
//
// # Idempotence
//
// Every write goes through [Store] upserts that never overwrite. Re-importing
// a file leaves the canonical rows unchanged and only appends another ledger
// row.
//
// # Errors
//
// Failures are scoped:
//
//   - [RecordParseError]: one record; the dependent write is skipped.
//   - [IdentityResolutionError]: one swimmer block of a results report.
//   - [DocumentError]: one file.
//   - [StoreError]: the whole call; no ledger row is written.
//
// Skipped records are returned as [FailedRow]s in the [ImportResult].
// [MapError] turns any of them into a coded [UserMessage] for display.
package core
