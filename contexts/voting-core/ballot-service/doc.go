// Package ballotservice implements the delegation-aware voting core inside
// the voting-core context.
//
// The module owns vote definitions, ballot submission with replace-on-revote
// semantics, delegation edges with transactional cycle rejection, the
// delegation-resolved tally, auto-close evaluation, and the signed container
// rows the identity-access context hands over. Business rules stay in
// application/domain layers behind ports and adapters.
package ballotservice
