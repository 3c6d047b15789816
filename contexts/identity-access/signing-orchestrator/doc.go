// Package signingorchestrator drives the strong-identity signing flows
// inside the identity-access context.
//
// The module owns the flow state machine for the three signing methods
// (smart card, SIM signature, signing app), the sealed bearer token that
// carries all in-flight state between calls, the account-to-identity
// binding invariants, and the hand-off of finished signed containers to
// the voting core. Provider protocols live behind ports; the orchestrator
// itself keeps no per-flow server state.
package signingorchestrator
