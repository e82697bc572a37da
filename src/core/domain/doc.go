// Package domain contains the core model of the competition engine.
//
// This package defines:
//   - Entities: Competition, Round, Participant, RoundEntry, Prize, PrizePayment
//   - The round phase evaluator (PhaseOf) and the qualification rule (Qualifies)
//   - The prize payment state machine
//   - Domain errors, each carrying a machine-readable kind
//
// Rules for this package:
//   - No external dependencies except the standard library and value types
//     (decimal amounts)
//   - No infrastructure concerns (database, HTTP, etc.)
//   - Entities reference each other by ID only
package domain
