package unit

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"testing"
	"time"

	signingorchestrator "agora/contexts/identity-access/signing-orchestrator"
	containersvc "agora/contexts/identity-access/signing-orchestrator/adapters/container"
	"agora/contexts/identity-access/signing-orchestrator/adapters/gateway"
	"agora/contexts/identity-access/signing-orchestrator/adapters/identity"
	signingmemory "agora/contexts/identity-access/signing-orchestrator/adapters/memory"
	"agora/contexts/identity-access/signing-orchestrator/adapters/providers"
	"agora/contexts/identity-access/signing-orchestrator/adapters/token"
	"agora/contexts/identity-access/signing-orchestrator/application/commands"
	signingentities "agora/contexts/identity-access/signing-orchestrator/domain/entities"
	signingerrors "agora/contexts/identity-access/signing-orchestrator/domain/errors"
	"agora/contexts/identity-access/signing-orchestrator/ports"
	ballotservice "agora/contexts/voting-core/ballot-service"
	ballotmemory "agora/contexts/voting-core/ballot-service/adapters/memory"
	ballotentities "agora/contexts/voting-core/ballot-service/domain/entities"
	balloterrors "agora/contexts/voting-core/ballot-service/domain/errors"
	httptransport "agora/contexts/voting-core/ballot-service/transport/http"
	containerbuilder "agora/contexts/voting-core/container-builder"
)

type signingClock struct {
	now time.Time
}

func (c *signingClock) Now() time.Time { return c.now }

func (c *signingClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type stubOCSP struct {
	der []byte
	err error
}

func (s stubOCSP) Fetch(context.Context, *x509.Certificate) ([]byte, error) {
	return s.der, s.err
}

// fakeProvider scripts an asynchronous signing service: Certificate and Start
// succeed, Poll replays the configured outcomes in order.
type fakeProvider struct {
	certDER []byte
	polls   []ports.PollResult
	pollErr error
	started int
}

func (p *fakeProvider) Certificate(context.Context, signingentities.Identity) ([]byte, error) {
	return p.certDER, nil
}

func (p *fakeProvider) Start(context.Context, signingentities.Identity, []byte) (ports.Challenge, error) {
	p.started++
	return ports.Challenge{SessionRef: "provider-session-1", VerificationCode: "4721"}, nil
}

func (p *fakeProvider) Poll(_ context.Context, _ string, _ time.Duration) (ports.PollResult, error) {
	if p.pollErr != nil {
		return ports.PollResult{}, p.pollErr
	}
	if len(p.polls) == 0 {
		return ports.PollResult{State: ports.PollRunning}, nil
	}
	next := p.polls[0]
	p.polls = p.polls[1:]
	return next, nil
}

func signerCertificate(t *testing.T, now time.Time) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject:      pkix.Name{CommonName: "MARI MAASIKAS"},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	return der
}

type signingFixture struct {
	ballots      ballotservice.Module
	orchestrator signingorchestrator.Module
	connections  *signingmemory.Store
	provider     *fakeProvider
	clock        *signingClock
	hasher       identity.Hasher
	voteID       string
	yesOption    string
	certDER      []byte
}

func newSigningFixture(t *testing.T, ocsp containerbuilder.OCSPSource) *signingFixture {
	t.Helper()
	ballots := ballotservice.NewInMemoryModule(nil, nil, nil)
	created, err := ballots.Handler.CreateVoteHandler(context.Background(), "proposal-1", "admin-1", httptransport.CreateVoteRequest{
		Options:    []string{"Yes", "No"},
		MinChoices: 1,
		MaxChoices: 1,
		AuthType:   "strong",
	})
	if err != nil {
		t.Fatalf("create vote failed: %v", err)
	}
	opened, err := ballots.Handler.OpenVoteHandler(context.Background(), created.VoteID, "admin-1")
	if err != nil {
		t.Fatalf("open vote failed: %v", err)
	}

	clock := &signingClock{now: time.Now().UTC()}
	certDER := signerCertificate(t, clock.now)
	provider := &fakeProvider{certDER: certDER}
	connections := signingmemory.NewStore()
	codec, err := token.NewCodec("unit-test-token-secret-0123456789", 5*time.Minute)
	if err != nil {
		t.Fatalf("build token codec: %v", err)
	}
	hasher := identity.NewHasher("unit-test-salt")

	orchestrator := signingorchestrator.NewModule(signingorchestrator.Dependencies{
		Providers: map[signingentities.SigningMethod]ports.Provider{
			signingentities.MethodPhone: provider,
			signingentities.MethodApp:   provider,
		},
		CardValidator: providers.CardValidator{Clock: clock.Now},
		Connections:   connections,
		Ballots: gateway.BallotGateway{
			Module: ballots,
			Votes:  ballots.Store,
			Clock:  ballots.Store,
		},
		Containers: containersvc.Service{
			Builder: containerbuilder.Builder{OCSP: ocsp},
		},
		Tokens: codec,
		Hasher: hasher,
		Clock:  clock,
		IDGen:  ballots.Store,
	})

	return &signingFixture{
		ballots:      ballots,
		orchestrator: orchestrator,
		connections:  connections,
		provider:     provider,
		clock:        clock,
		hasher:       hasher,
		voteID:       opened.VoteID,
		yesOption:    optionID(t, opened, "Yes"),
		certDER:      certDER,
	}
}

func (f *signingFixture) initCard(t *testing.T, userID string, personalID string) commands.SigningStatus {
	t.Helper()
	status, err := f.orchestrator.Signing.InitSigning(context.Background(), commands.InitSigningCommand{
		VoteID:     f.voteID,
		UserID:     userID,
		Method:     signingentities.MethodCard,
		OptionIDs:  []string{f.yesOption},
		CertDER:    f.certDER,
		PersonalID: personalID,
	})
	if err != nil {
		t.Fatalf("init card flow failed: %v", err)
	}
	return status
}

func (f *signingFixture) assertSignedBallot(t *testing.T, personalID string) {
	t.Helper()
	hash := f.hasher.Hash(personalID)
	container, ok, err := f.ballots.Store.GetUserContainer(context.Background(), f.voteID, hash)
	if err != nil {
		t.Fatalf("load user container: %v", err)
	}
	if !ok {
		t.Fatalf("signed container missing for identity hash")
	}
	if len(container.Content) < 4 || container.Content[0] != 'P' || container.Content[1] != 'K' {
		t.Fatalf("container content is not a zip archive")
	}
	resp := results(t, f.ballots, f.voteID, "viewer-1")
	if resp.VotersCount != 1 {
		t.Fatalf("expected one counted voter, got %d", resp.VotersCount)
	}
	if got := optionCount(resp, f.yesOption); got != 1 {
		t.Fatalf("signed ballot not counted, yes=%d", got)
	}
}

func TestCardFlowSignsAndCasts(t *testing.T) {
	fixture := newSigningFixture(t, stubOCSP{der: []byte("ocsp-response")})

	status := fixture.initCard(t, "user-1", "38001010001")
	if status.State != signingentities.StateSignRequested {
		t.Fatalf("expected SIGN_REQUESTED, got %s", status.State)
	}
	if status.Token == "" || len(status.SignableHash) != 64 {
		t.Fatalf("card init must return a token and a hex SHA-256 digest")
	}

	done, err := fixture.orchestrator.Signing.CompleteSigning(context.Background(), status.Token, []byte("signature-value"))
	if err != nil {
		t.Fatalf("complete signing failed: %v", err)
	}
	if done.State != signingentities.StateSigned {
		t.Fatalf("expected SIGNED, got %s", done.State)
	}

	fixture.assertSignedBallot(t, "38001010001")
	connection, ok, err := fixture.connections.GetByExternalID(context.Background(), signingentities.MethodCard, "38001010001")
	if err != nil || !ok {
		t.Fatalf("identity binding missing after signed flow: %v", err)
	}
	if connection.UserID != "user-1" {
		t.Fatalf("binding points at %s, want user-1", connection.UserID)
	}
}

func TestOwnerDownloadsSignedContainer(t *testing.T) {
	fixture := newSigningFixture(t, stubOCSP{der: []byte("ocsp-response")})
	status := fixture.initCard(t, "user-1", "38001010001")
	if _, err := fixture.orchestrator.Signing.CompleteSigning(context.Background(), status.Token, []byte("signature-value")); err != nil {
		t.Fatalf("complete signing failed: %v", err)
	}

	// The voter downloads by account alone; the identity hash never leaves
	// the server.
	content, err := fixture.ballots.Handler.UserContainerHandler(context.Background(), fixture.voteID, "user-1")
	if err != nil {
		t.Fatalf("owner download failed: %v", err)
	}
	if len(content) < 4 || content[0] != 'P' || content[1] != 'K' {
		t.Fatalf("downloaded container is not a zip archive")
	}

	if _, err := fixture.ballots.Handler.UserContainerHandler(context.Background(), fixture.voteID, "user-2"); !errors.Is(err, balloterrors.ErrContainerNotFound) {
		t.Fatalf("user without a signed ballot should get not-found, got %v", err)
	}
}

func TestCompleteSigningIsIdempotent(t *testing.T) {
	fixture := newSigningFixture(t, stubOCSP{der: []byte("ocsp-response")})
	status := fixture.initCard(t, "user-1", "38001010001")

	if _, err := fixture.orchestrator.Signing.CompleteSigning(context.Background(), status.Token, []byte("signature-value")); err != nil {
		t.Fatalf("first complete failed: %v", err)
	}
	if _, err := fixture.orchestrator.Signing.CompleteSigning(context.Background(), status.Token, []byte("signature-value")); err != nil {
		t.Fatalf("repeated complete failed: %v", err)
	}

	containers, err := fixture.ballots.Store.ListUserContainers(context.Background(), fixture.voteID)
	if err != nil {
		t.Fatalf("list containers: %v", err)
	}
	live := 0
	for _, container := range containers {
		if container.DeletedAt == nil {
			live++
		}
	}
	if live != 1 {
		t.Fatalf("repeated completion must leave one live container, got %d", live)
	}
}

func TestPhoneFlowPollsUntilSigned(t *testing.T) {
	fixture := newSigningFixture(t, stubOCSP{der: []byte("ocsp-response")})
	fixture.provider.polls = []ports.PollResult{
		{State: ports.PollRunning},
		{State: ports.PollSigned, Signature: []byte("provider-signature")},
	}

	status, err := fixture.orchestrator.Signing.InitSigning(context.Background(), commands.InitSigningCommand{
		VoteID:      fixture.voteID,
		UserID:      "user-2",
		Method:      signingentities.MethodPhone,
		OptionIDs:   []string{fixture.yesOption},
		PersonalID:  "38001010002",
		PhoneNumber: "+37255512345",
	})
	if err != nil {
		t.Fatalf("init phone flow failed: %v", err)
	}
	if status.State != signingentities.StatePolling {
		t.Fatalf("expected POLLING, got %s", status.State)
	}
	if status.VerificationCode != "4721" {
		t.Fatalf("verification code not surfaced, got %q", status.VerificationCode)
	}
	if fixture.provider.started != 1 {
		t.Fatalf("provider challenge should start exactly once, got %d", fixture.provider.started)
	}

	running, err := fixture.orchestrator.Signing.PollSigning(context.Background(), status.Token, time.Second)
	if err != nil {
		t.Fatalf("first poll failed: %v", err)
	}
	if running.State != signingentities.StatePolling || running.Token == "" {
		t.Fatalf("running poll must reissue the session token")
	}

	done, err := fixture.orchestrator.Signing.PollSigning(context.Background(), running.Token, time.Second)
	if err != nil {
		t.Fatalf("second poll failed: %v", err)
	}
	if done.State != signingentities.StateSigned {
		t.Fatalf("expected SIGNED, got %s", done.State)
	}
	fixture.assertSignedBallot(t, "38001010002")
}

func TestPollSurfacesProviderFailure(t *testing.T) {
	fixture := newSigningFixture(t, stubOCSP{der: []byte("ocsp-response")})
	fixture.provider.pollErr = signingerrors.ErrUserCancelled

	status, err := fixture.orchestrator.Signing.InitSigning(context.Background(), commands.InitSigningCommand{
		VoteID:      fixture.voteID,
		UserID:      "user-3",
		Method:      signingentities.MethodApp,
		OptionIDs:   []string{fixture.yesOption},
		PersonalID:  "38001010003",
		CountryCode: "EE",
	})
	if err != nil {
		t.Fatalf("init app flow failed: %v", err)
	}
	_, err = fixture.orchestrator.Signing.PollSigning(context.Background(), status.Token, time.Second)
	if !errors.Is(err, signingerrors.ErrUserCancelled) {
		t.Fatalf("expected ErrUserCancelled, got %v", err)
	}
	if resp := results(t, fixture.ballots, fixture.voteID, "viewer-1"); resp.VotersCount != 0 {
		t.Fatalf("failed flow must not cast a ballot, voters=%d", resp.VotersCount)
	}
}

func TestIdentityBindingConflictAbortsFlow(t *testing.T) {
	fixture := newSigningFixture(t, stubOCSP{der: []byte("ocsp-response")})
	if err := fixture.connections.Upsert(context.Background(), signingentities.UserConnection{
		UserID:     "someone-else",
		Method:     signingentities.MethodCard,
		ExternalID: "38001010001",
	}); err != nil {
		t.Fatalf("seed binding failed: %v", err)
	}

	status := fixture.initCard(t, "user-1", "38001010001")
	_, err := fixture.orchestrator.Signing.CompleteSigning(context.Background(), status.Token, []byte("signature-value"))
	if !errors.Is(err, signingerrors.ErrIdentityAlreadyBound) {
		t.Fatalf("expected ErrIdentityAlreadyBound, got %v", err)
	}
	if resp := results(t, fixture.ballots, fixture.voteID, "viewer-1"); resp.VotersCount != 0 {
		t.Fatalf("aborted flow must not cast a ballot, voters=%d", resp.VotersCount)
	}
}

func TestRevocationProofFailureLeavesNoBallot(t *testing.T) {
	fixture := newSigningFixture(t, stubOCSP{err: errors.New("responder unreachable")})

	status := fixture.initCard(t, "user-1", "38001010001")
	_, err := fixture.orchestrator.Signing.CompleteSigning(context.Background(), status.Token, []byte("signature-value"))
	if !errors.Is(err, containerbuilder.ErrRevocationProof) {
		t.Fatalf("expected ErrRevocationProof, got %v", err)
	}
	if resp := results(t, fixture.ballots, fixture.voteID, "viewer-1"); resp.VotersCount != 0 {
		t.Fatalf("container build must fail closed before any cast, voters=%d", resp.VotersCount)
	}
}

func TestSessionTokenExpires(t *testing.T) {
	fixture := newSigningFixture(t, stubOCSP{der: []byte("ocsp-response")})
	status := fixture.initCard(t, "user-1", "38001010001")

	fixture.clock.Advance(6 * time.Minute)
	_, err := fixture.orchestrator.Signing.CompleteSigning(context.Background(), status.Token, []byte("signature-value"))
	if !errors.Is(err, signingerrors.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestFlowStateMismatchRejected(t *testing.T) {
	fixture := newSigningFixture(t, stubOCSP{der: []byte("ocsp-response")})

	cardStatus := fixture.initCard(t, "user-1", "38001010001")
	if _, err := fixture.orchestrator.Signing.PollSigning(context.Background(), cardStatus.Token, time.Second); !errors.Is(err, signingerrors.ErrWrongFlowState) {
		t.Fatalf("polling a card session should fail, got %v", err)
	}

	phoneStatus, err := fixture.orchestrator.Signing.InitSigning(context.Background(), commands.InitSigningCommand{
		VoteID:      fixture.voteID,
		UserID:      "user-2",
		Method:      signingentities.MethodPhone,
		OptionIDs:   []string{fixture.yesOption},
		PersonalID:  "38001010002",
		PhoneNumber: "+37255512345",
	})
	if err != nil {
		t.Fatalf("init phone flow failed: %v", err)
	}
	if _, err := fixture.orchestrator.Signing.CompleteSigning(context.Background(), phoneStatus.Token, []byte("sig")); !errors.Is(err, signingerrors.ErrWrongFlowState) {
		t.Fatalf("completing a polling session should fail, got %v", err)
	}
}

func TestInitRejectsWeakVote(t *testing.T) {
	fixture := newSigningFixture(t, stubOCSP{der: []byte("ocsp-response")})
	weak := openYesNoVote(t, fixture.ballots, false)

	_, err := fixture.orchestrator.Signing.InitSigning(context.Background(), commands.InitSigningCommand{
		VoteID:     weak.VoteID,
		UserID:     "user-1",
		Method:     signingentities.MethodCard,
		OptionIDs:  []string{optionID(t, weak, "Yes")},
		CertDER:    fixture.certDER,
		PersonalID: "38001010001",
	})
	if !errors.Is(err, signingerrors.ErrVoteNotStrong) {
		t.Fatalf("expected ErrVoteNotStrong, got %v", err)
	}
}

// failingContainerStore rejects every write that carries the signed container,
// standing in for a transaction that rolls back.
type failingContainerStore struct {
	*ballotmemory.Store
}

var errContainerWrite = errors.New("container storage unavailable")

func (s failingContainerStore) ReplaceUserContainer(context.Context, ballotentities.UserContainer) error {
	return errContainerWrite
}

func (s failingContainerStore) ReplaceSignedBallot(context.Context, ballotentities.BallotGroup, ballotentities.UserContainer) error {
	return errContainerWrite
}

func TestContainerWriteFailureLeavesNoBallot(t *testing.T) {
	store := ballotmemory.NewStore(nil)
	failing := failingContainerStore{Store: store}
	ballots := ballotservice.NewModule(ballotservice.Dependencies{
		Votes:       failing,
		Permissions: store,
		Members:     store,
		Clock:       store,
		IDGen:       store,
	})
	ballots.Store = store

	created, err := ballots.Handler.CreateVoteHandler(context.Background(), "proposal-1", "admin-1", httptransport.CreateVoteRequest{
		Options:    []string{"Yes", "No"},
		MinChoices: 1,
		MaxChoices: 1,
		AuthType:   "strong",
	})
	if err != nil {
		t.Fatalf("create vote failed: %v", err)
	}
	opened, err := ballots.Handler.OpenVoteHandler(context.Background(), created.VoteID, "admin-1")
	if err != nil {
		t.Fatalf("open vote failed: %v", err)
	}

	clock := &signingClock{now: time.Now().UTC()}
	certDER := signerCertificate(t, clock.now)
	codec, err := token.NewCodec("unit-test-token-secret-0123456789", 5*time.Minute)
	if err != nil {
		t.Fatalf("build token codec: %v", err)
	}
	orchestrator := signingorchestrator.NewModule(signingorchestrator.Dependencies{
		CardValidator: providers.CardValidator{Clock: clock.Now},
		Connections:   signingmemory.NewStore(),
		Ballots: gateway.BallotGateway{
			Module: ballots,
			Votes:  failing,
			Clock:  store,
		},
		Containers: containersvc.Service{
			Builder: containerbuilder.Builder{OCSP: stubOCSP{der: []byte("ocsp-response")}},
		},
		Tokens: codec,
		Hasher: identity.NewHasher("unit-test-salt"),
		Clock:  clock,
		IDGen:  store,
	})

	status, err := orchestrator.Signing.InitSigning(context.Background(), commands.InitSigningCommand{
		VoteID:     opened.VoteID,
		UserID:     "user-1",
		Method:     signingentities.MethodCard,
		OptionIDs:  []string{optionID(t, opened, "Yes")},
		CertDER:    certDER,
		PersonalID: "38001010001",
	})
	if err != nil {
		t.Fatalf("init card flow failed: %v", err)
	}
	if _, err := orchestrator.Signing.CompleteSigning(context.Background(), status.Token, []byte("signature-value")); !errors.Is(err, errContainerWrite) {
		t.Fatalf("expected the storage failure to surface, got %v", err)
	}

	if resp := results(t, ballots, opened.VoteID, "viewer-1"); resp.VotersCount != 0 {
		t.Fatalf("failed container write must not leave a counted ballot, voters=%d", resp.VotersCount)
	}
	containers, err := store.ListUserContainers(context.Background(), opened.VoteID)
	if err != nil {
		t.Fatalf("list containers: %v", err)
	}
	if len(containers) != 0 {
		t.Fatalf("failed container write must not leave a container, got %d", len(containers))
	}
}

func TestInitRejectsUnknownOption(t *testing.T) {
	fixture := newSigningFixture(t, stubOCSP{der: []byte("ocsp-response")})
	_, err := fixture.orchestrator.Signing.InitSigning(context.Background(), commands.InitSigningCommand{
		VoteID:     fixture.voteID,
		UserID:     "user-1",
		Method:     signingentities.MethodCard,
		OptionIDs:  []string{"option-does-not-exist"},
		CertDER:    fixture.certDER,
		PersonalID: "38001010001",
	})
	if !errors.Is(err, signingerrors.ErrInvalidSigningInput) {
		t.Fatalf("expected ErrInvalidSigningInput, got %v", err)
	}
}
