package signingorchestrator

import (
	"log/slog"

	httpadapter "agora/contexts/identity-access/signing-orchestrator/adapters/http"
	"agora/contexts/identity-access/signing-orchestrator/application/commands"
	"agora/contexts/identity-access/signing-orchestrator/domain/entities"
	"agora/contexts/identity-access/signing-orchestrator/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Signing commands.SigningUseCase
}

type Dependencies struct {
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

func NewModule(deps Dependencies) Module {
	signingUseCase := commands.SigningUseCase{
		Providers:     deps.Providers,
		CardValidator: deps.CardValidator,
		Connections:   deps.Connections,
		Ballots:       deps.Ballots,
		Containers:    deps.Containers,
		Tokens:        deps.Tokens,
		Hasher:        deps.Hasher,
		Clock:         deps.Clock,
		IDGen:         deps.IDGen,
		Logger:        deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Signing: signingUseCase,
			Logger:  deps.Logger,
		},
		Signing: signingUseCase,
	}
}
