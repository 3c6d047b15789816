package commands

import (
	"context"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	application "agora/contexts/identity-access/signing-orchestrator/application"
	"agora/contexts/identity-access/signing-orchestrator/domain/entities"
	domainerrors "agora/contexts/identity-access/signing-orchestrator/domain/errors"
	"agora/contexts/identity-access/signing-orchestrator/ports"
)

// DefaultPollWait bounds a status poll when the caller supplies no timeout.
const DefaultPollWait = 5 * time.Second

// InitSigningCommand starts a signing flow. Exactly one identity shape is
// expected: certificate bytes for the card method, personal id + phone for
// the phone method, personal id + country for the app method.
type InitSigningCommand struct {
	VoteID      string
	UserID      string
	Method      entities.SigningMethod
	OptionIDs   []string
	CertDER     []byte
	PersonalID  string
	PhoneNumber string
	CountryCode string
}

// SigningStatus is the caller-visible flow state after any orchestrator call.
// Token must be presented back on the next call; it is the only carrier of
// the in-flight state.
type SigningStatus struct {
	State entities.FlowState
	Token string
	// SignableHash is the hex digest the card holder signs locally.
	SignableHash string
	// VerificationCode is shown to the user during asynchronous flows.
	VerificationCode string
}

// SigningUseCase drives the three strong-identity flows through one state
// machine: INIT -> CERT_ACQUIRED -> SIGN_REQUESTED -> (SIGNED | POLLING ->
// SIGNED | FAILED | EXPIRED). The orchestrator holds no per-flow state
// between calls.
type SigningUseCase struct {
	Providers     map[entities.SigningMethod]ports.Provider
	CardValidator ports.CertificateValidator
	Connections   ports.ConnectionRepository
	Ballots       ports.BallotGateway
	Containers    ports.ContainerService
	Tokens        ports.TokenCodec
	Hasher        ports.IdentityHasher
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	Logger        *slog.Logger
}

func (uc SigningUseCase) InitSigning(ctx context.Context, cmd InitSigningCommand) (SigningStatus, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.VoteID) == "" || strings.TrimSpace(cmd.UserID) == "" || len(cmd.OptionIDs) == 0 {
		return SigningStatus{}, domainerrors.ErrInvalidSigningInput
	}
	identity := entities.Identity{
		PersonalID:  strings.TrimSpace(cmd.PersonalID),
		PhoneNumber: strings.TrimSpace(cmd.PhoneNumber),
		CountryCode: strings.TrimSpace(cmd.CountryCode),
	}
	switch cmd.Method {
	case entities.MethodCard:
		if len(cmd.CertDER) == 0 || identity.PersonalID == "" {
			return SigningStatus{}, domainerrors.ErrInvalidSigningInput
		}
	case entities.MethodPhone:
		if identity.PersonalID == "" || identity.PhoneNumber == "" {
			return SigningStatus{}, domainerrors.ErrInvalidSigningInput
		}
	case entities.MethodApp:
		if identity.PersonalID == "" || identity.CountryCode == "" {
			return SigningStatus{}, domainerrors.ErrInvalidSigningInput
		}
	default:
		return SigningStatus{}, domainerrors.ErrInvalidSigningInput
	}

	vote, err := uc.Ballots.GetVote(ctx, strings.TrimSpace(cmd.VoteID))
	if err != nil {
		return SigningStatus{}, err
	}
	if !vote.StrongAuth {
		return SigningStatus{}, domainerrors.ErrVoteNotStrong
	}
	if !vote.Open {
		return SigningStatus{}, domainerrors.ErrVoteClosed
	}
	optionNames := make([]string, 0, len(cmd.OptionIDs))
	for _, optionID := range cmd.OptionIDs {
		name, ok := vote.OptionNames[optionID]
		if !ok {
			return SigningStatus{}, domainerrors.ErrInvalidSigningInput
		}
		optionNames = append(optionNames, name)
	}

	now := uc.now()
	logger.Info("signing flow started",
		"event", "signing_flow_started",
		"module", "identity-access/signing-orchestrator",
		"layer", "application",
		"vote_id", vote.VoteID,
		"user_id", cmd.UserID,
		"method", string(cmd.Method),
	)

	// Certificate acquisition.
	certDER := cmd.CertDER
	if cmd.Method == entities.MethodCard {
		if err := uc.CardValidator.Validate(ctx, certDER); err != nil {
			return SigningStatus{}, err
		}
	} else {
		provider, ok := uc.Providers[cmd.Method]
		if !ok {
			return SigningStatus{}, domainerrors.ErrProviderUnknown
		}
		certDER, err = provider.Certificate(ctx, identity)
		if err != nil {
			return SigningStatus{}, err
		}
	}

	prepared, digest, err := uc.Containers.Prepare(ctx, vote.VoteID, cmd.UserID, optionNames, certDER, now)
	if err != nil {
		return SigningStatus{}, err
	}
	sessionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return SigningStatus{}, err
	}
	session := entities.SigningSession{
		SessionID:         sessionID,
		VoteID:            vote.VoteID,
		UserID:            strings.TrimSpace(cmd.UserID),
		Method:            cmd.Method,
		Identity:          identity,
		OptionIDs:         cmd.OptionIDs,
		PreparedContainer: prepared,
		StartedAt:         now,
	}

	if cmd.Method == entities.MethodCard {
		// Synchronous: the caller signs the digest locally and completes the
		// flow with a second call.
		session.State = entities.StateSignRequested
		token, err := uc.Tokens.Seal(session, now)
		if err != nil {
			return SigningStatus{}, err
		}
		return SigningStatus{
			State:        entities.StateSignRequested,
			Token:        token,
			SignableHash: hex.EncodeToString(digest),
		}, nil
	}

	challenge, err := uc.Providers[cmd.Method].Start(ctx, identity, digest)
	if err != nil {
		return SigningStatus{}, err
	}
	session.State = entities.StatePolling
	session.ProviderRef = challenge.SessionRef
	token, err := uc.Tokens.Seal(session, now)
	if err != nil {
		return SigningStatus{}, err
	}
	return SigningStatus{
		State:            entities.StatePolling,
		Token:            token,
		VerificationCode: challenge.VerificationCode,
	}, nil
}

// CompleteSigning finishes the synchronous card flow with the locally
// produced signature value. Calling it twice with the same token and value
// leaves exactly one live container.
func (uc SigningUseCase) CompleteSigning(ctx context.Context, token string, signatureValue []byte) (SigningStatus, error) {
	now := uc.now()
	session, err := uc.Tokens.Open(token, now)
	if err != nil {
		return SigningStatus{}, err
	}
	if session.State != entities.StateSignRequested || session.Method != entities.MethodCard {
		return SigningStatus{}, domainerrors.ErrWrongFlowState
	}
	if len(signatureValue) == 0 {
		return SigningStatus{}, domainerrors.ErrInvalidSigningInput
	}
	return uc.finalize(ctx, session, signatureValue, now)
}

// PollSigning blocks up to wait for an asynchronous provider outcome. While
// the provider is still running it reissues the token so a patient caller is
// not cut off by the token expiry mid-flow.
func (uc SigningUseCase) PollSigning(ctx context.Context, token string, wait time.Duration) (SigningStatus, error) {
	now := uc.now()
	session, err := uc.Tokens.Open(token, now)
	if err != nil {
		return SigningStatus{}, err
	}
	if session.State != entities.StatePolling {
		return SigningStatus{}, domainerrors.ErrWrongFlowState
	}
	provider, ok := uc.Providers[session.Method]
	if !ok {
		return SigningStatus{}, domainerrors.ErrProviderUnknown
	}
	if wait <= 0 {
		wait = DefaultPollWait
	}

	result, err := provider.Poll(ctx, session.ProviderRef, wait)
	if err != nil {
		logger := application.ResolveLogger(uc.Logger)
		logger.Warn("signing poll failed",
			"event", "signing_poll_failed",
			"module", "identity-access/signing-orchestrator",
			"layer", "application",
			"vote_id", session.VoteID,
			"method", string(session.Method),
			"error", err.Error(),
		)
		return SigningStatus{}, err
	}
	if result.State == ports.PollRunning {
		reissued, err := uc.Tokens.Seal(session, now)
		if err != nil {
			return SigningStatus{}, err
		}
		return SigningStatus{State: entities.StatePolling, Token: reissued}, nil
	}
	return uc.finalize(ctx, session, result.Signature, now)
}

// finalize runs the terminal-success steps in order: identity binding check,
// connection upsert, container assembly with revocation proof, ballot and
// container replacement, auto-close. Binding conflicts abort the flow.
func (uc SigningUseCase) finalize(ctx context.Context, session entities.SigningSession, signatureValue []byte, now time.Time) (SigningStatus, error) {
	logger := application.ResolveLogger(uc.Logger)

	if err := uc.Connections.Upsert(ctx, entities.UserConnection{
		UserID:     session.UserID,
		Method:     session.Method,
		ExternalID: session.Identity.PersonalID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		logger.Warn("identity binding rejected",
			"event", "signing_identity_binding_rejected",
			"module", "identity-access/signing-orchestrator",
			"layer", "application",
			"vote_id", session.VoteID,
			"user_id", session.UserID,
			"method", string(session.Method),
			"error", err.Error(),
		)
		return SigningStatus{}, err
	}

	container, err := uc.Containers.Finalize(ctx, session.PreparedContainer, signatureValue)
	if err != nil {
		return SigningStatus{}, err
	}
	userHash := uc.Hasher.Hash(session.Identity.PersonalID)
	if err := uc.Ballots.CastSigned(ctx, session.VoteID, session.UserID, userHash, session.OptionIDs, container); err != nil {
		return SigningStatus{}, err
	}

	logger.Info("signing flow completed",
		"event", "signing_flow_completed",
		"module", "identity-access/signing-orchestrator",
		"layer", "application",
		"vote_id", session.VoteID,
		"user_id", session.UserID,
		"method", string(session.Method),
		"container_bytes", len(container),
	)
	return SigningStatus{State: entities.StateSigned}, nil
}

func (uc SigningUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
