package bootstrap

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	signingorchestrator "agora/contexts/identity-access/signing-orchestrator"
	containersvc "agora/contexts/identity-access/signing-orchestrator/adapters/container"
	"agora/contexts/identity-access/signing-orchestrator/adapters/gateway"
	"agora/contexts/identity-access/signing-orchestrator/adapters/identity"
	signingpostgres "agora/contexts/identity-access/signing-orchestrator/adapters/postgres"
	"agora/contexts/identity-access/signing-orchestrator/adapters/providers"
	"agora/contexts/identity-access/signing-orchestrator/adapters/token"
	signingentities "agora/contexts/identity-access/signing-orchestrator/domain/entities"
	signingports "agora/contexts/identity-access/signing-orchestrator/ports"
	ballotservice "agora/contexts/voting-core/ballot-service"
	containeradapter "agora/contexts/voting-core/ballot-service/adapters/container"
	postgresadapter "agora/contexts/voting-core/ballot-service/adapters/postgres"
	workerapp "agora/contexts/voting-core/ballot-service/application/workers"
	containerbuilder "agora/contexts/voting-core/container-builder"
	"agora/internal/platform/config"
	"agora/internal/platform/db"
	"agora/internal/platform/httpserver"
	"agora/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	sweeper      workerapp.Sweeper
	outboxRelay  workerapp.OutboxRelay
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}
	if strings.TrimSpace(cfg.TokenSecret) == "" {
		return nil, errors.New("SIGNING_TOKEN_SECRET is required")
	}
	if strings.TrimSpace(cfg.IdentitySalt) == "" {
		return nil, errors.New("IDENTITY_HASH_SALT is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	ballotModule, builder, repo, err := buildBallotModule(cfg, pg, logger)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	signingModule, err := buildSigningModule(cfg, pg, ballotModule, repo, builder, logger)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	server := httpserver.New(
		ballotModule,
		signingModule,
		cfg.JWTSecret,
		cfg.EnableSwaggerUI,
		logger,
		normalizeAddr(cfg.HTTPPort),
	)
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func buildBallotModule(
	cfg config.Config,
	pg *db.Postgres,
	logger *slog.Logger,
) (ballotservice.Module, containerbuilder.Builder, *postgresadapter.Repository, error) {
	issuer, err := loadIssuerCertificate(cfg.OCSPIssuerCertPath)
	if err != nil {
		return ballotservice.Module{}, containerbuilder.Builder{}, nil, err
	}
	builder := containerbuilder.Builder{
		OCSP: containerbuilder.HTTPOCSPSource{
			ResponderURL: cfg.OCSPResponderURL,
			Issuer:       issuer,
			Timeout:      cfg.OCSPFetchTimeout,
		},
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	memberships := postgresadapter.NewMembershipStore(pg.DB, logger)
	module := ballotservice.NewModule(ballotservice.Dependencies{
		Votes:             repo,
		Permissions:       memberships,
		Members:           memberships,
		Final:             containeradapter.FinalBuilder{Builder: builder},
		Clock:             postgresadapter.SystemClock{},
		IDGen:             postgresadapter.UUIDGenerator{},
		Logger:            logger,
		AutoCloseDisabled: !cfg.EnableAutoClose,
	})
	return module, builder, repo, nil
}

func buildSigningModule(
	cfg config.Config,
	pg *db.Postgres,
	ballotModule ballotservice.Module,
	repo *postgresadapter.Repository,
	builder containerbuilder.Builder,
	logger *slog.Logger,
) (signingorchestrator.Module, error) {
	codec, err := token.NewCodec(cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		return signingorchestrator.Module{}, err
	}

	client := &http.Client{Timeout: cfg.ProviderTimeout}
	return signingorchestrator.NewModule(signingorchestrator.Dependencies{
		Providers: map[signingentities.SigningMethod]signingports.Provider{
			signingentities.MethodPhone: providers.PhoneProvider{
				BaseURL: cfg.PhoneSignBaseURL,
				Client:  client,
			},
			signingentities.MethodApp: providers.AppProvider{
				BaseURL: cfg.AppSignBaseURL,
				Client:  client,
			},
		},
		CardValidator: providers.CardValidator{},
		Connections:   signingpostgres.NewRepository(pg.DB, logger),
		Ballots: gateway.BallotGateway{
			Module: ballotModule,
			Votes:  repo,
			Clock:  postgresadapter.SystemClock{},
		},
		Containers: containersvc.Service{Builder: builder},
		Tokens:     codec,
		Hasher:     identity.NewHasher(cfg.IdentitySalt),
		Clock:      postgresadapter.SystemClock{},
		IDGen:      postgresadapter.UUIDGenerator{},
		Logger:     logger,
	}), nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	ballotModule, _, repo, err := buildBallotModule(cfg, pg, logger)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	bus, err := messaging.NewKafka(nil, logger)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	return &WorkerApp{
		postgres: pg,
		sweeper: workerapp.Sweeper{
			Votes:   repo,
			Outbox:  repo,
			Ballots: ballotModule.Ballots,
			Clock:   postgresadapter.SystemClock{},
			Logger:  logger,
		},
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    repo,
			Publisher: bus,
			Topic:     "voting.events",
			BatchSize: 100,
			Logger:    logger,
		},
		pollInterval: 15 * time.Second,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if err := w.sweeper.RunOnce(ctx); err != nil {
			return err
		}
		if err := w.outboxRelay.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

// loadIssuerCertificate reads the CA certificate the OCSP requests are built
// against. An empty path is allowed; the builder then fails closed on the
// first signing attempt, which beats refusing to boot in setups that only
// run weak-auth votes.
func loadIssuerCertificate(path string) (*x509.Certificate, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ocsp issuer certificate: %w", err)
	}
	der := raw
	if block, _ := pem.Decode(raw); block != nil {
		der = block.Bytes
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse ocsp issuer certificate: %w", err)
	}
	return cert, nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
