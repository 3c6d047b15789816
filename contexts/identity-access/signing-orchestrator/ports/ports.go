package ports

import (
	"context"
	"time"

	"agora/contexts/identity-access/signing-orchestrator/domain/entities"
)

// Challenge is a started asynchronous signing session on the provider side.
type Challenge struct {
	SessionRef string
	// VerificationCode is shown to the user so they can match the request on
	// their device.
	VerificationCode string
}

type PollState string

const (
	PollRunning PollState = "running"
	PollSigned  PollState = "signed"
)

// PollResult is one blocking status poll outcome. Failures surface as errors
// from the closed taxonomy, not as states.
type PollResult struct {
	State     PollState
	Signature []byte
}

// Provider is one external strong-identity signing service. The card method
// does not implement Start/Poll; its signature is produced locally by the
// caller.
type Provider interface {
	// Certificate retrieves the signing certificate (DER) for the identity.
	Certificate(ctx context.Context, identity entities.Identity) ([]byte, error)
	// Start issues a signing challenge over the given digest.
	Start(ctx context.Context, identity entities.Identity, digest []byte) (Challenge, error)
	// Poll blocks up to wait for the session outcome.
	Poll(ctx context.Context, sessionRef string, wait time.Duration) (PollResult, error)
}

// CertificateValidator checks a caller-supplied card certificate before the
// flow commits to it.
type CertificateValidator interface {
	Validate(ctx context.Context, certDER []byte) error
}

// ConnectionRepository persists account/identity bindings and enforces the
// uniqueness invariants atomically with the write.
type ConnectionRepository interface {
	// Upsert stores the binding. It fails with ErrIdentityAlreadyBound when
	// the external identity belongs to a different account and with
	// ErrAccountAlreadyBound when the account already holds a different
	// identity of the same method.
	Upsert(ctx context.Context, connection entities.UserConnection) error
	GetByExternalID(ctx context.Context, method entities.SigningMethod, externalID string) (entities.UserConnection, bool, error)
}

// VoteInfo is the slice of the ballot context the orchestrator needs.
type VoteInfo struct {
	VoteID      string
	ProposalID  string
	StrongAuth  bool
	Open        bool
	OptionNames map[string]string
}

// BallotGateway hands the finished flow back to the voting core: the signed
// container replaces the prior one and the ballot rows are swapped in the
// same logical operation.
type BallotGateway interface {
	GetVote(ctx context.Context, voteID string) (VoteInfo, error)
	// CastSigned replaces the voter's ballot group and stores the signed
	// container for the identity hash, then evaluates auto-close.
	CastSigned(ctx context.Context, voteID string, userID string, userHash string, optionIDs []string, container []byte) error
}

// ContainerService wraps container preparation and finalization. The
// prepared state is opaque serialized bytes so it can ride inside the sealed
// session token.
type ContainerService interface {
	Prepare(ctx context.Context, voteID string, userID string, optionNames []string, certDER []byte, now time.Time) (prepared []byte, digest []byte, err error)
	Finalize(ctx context.Context, prepared []byte, signatureValue []byte) ([]byte, error)
}

// TokenCodec seals and opens the session bearer token.
type TokenCodec interface {
	Seal(session entities.SigningSession, now time.Time) (string, error)
	Open(token string, now time.Time) (entities.SigningSession, error)
}

// IdentityHasher derives the salted real-world voter hash from the verified
// external identity.
type IdentityHasher interface {
	Hash(personalID string) string
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
