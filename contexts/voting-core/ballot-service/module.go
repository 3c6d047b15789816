package ballotservice

import (
	"log/slog"

	httpadapter "agora/contexts/voting-core/ballot-service/adapters/http"
	"agora/contexts/voting-core/ballot-service/adapters/memory"
	"agora/contexts/voting-core/ballot-service/application/commands"
	"agora/contexts/voting-core/ballot-service/application/queries"
	"agora/contexts/voting-core/ballot-service/domain/entities"
	"agora/contexts/voting-core/ballot-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Ballots commands.BallotUseCase
	Store   *memory.Store
}

type Dependencies struct {
	Votes       ports.VoteRepository
	Permissions ports.PermissionService
	Members     ports.MemberRegistry
	Final       ports.FinalContainerBuilder
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Logger      *slog.Logger
	// AutoCloseDisabled switches the auto-close evaluation off for the whole
	// deployment.
	AutoCloseDisabled bool
}

func NewModule(deps Dependencies) Module {
	voteUseCase := commands.VoteUseCase{
		Votes:       deps.Votes,
		Permissions: deps.Permissions,
		Clock:       deps.Clock,
		IDGen:       deps.IDGen,
		Logger:      deps.Logger,
	}
	ballotUseCase := commands.BallotUseCase{
		Votes:             deps.Votes,
		Permissions:       deps.Permissions,
		Members:           deps.Members,
		Clock:             deps.Clock,
		IDGen:             deps.IDGen,
		Logger:            deps.Logger,
		AutoCloseDisabled: deps.AutoCloseDisabled,
	}
	delegationUseCase := commands.DelegationUseCase{
		Votes:       deps.Votes,
		Permissions: deps.Permissions,
		Clock:       deps.Clock,
		IDGen:       deps.IDGen,
		Logger:      deps.Logger,
	}
	tallyUseCase := queries.NewTallyUseCase(deps.Votes)
	containerUseCase := queries.ContainerUseCase{
		Votes:       deps.Votes,
		Permissions: deps.Permissions,
		Final:       deps.Final,
		Clock:       deps.Clock,
	}
	return Module{
		Handler: httpadapter.Handler{
			Votes:       voteUseCase,
			Ballots:     ballotUseCase,
			Delegations: delegationUseCase,
			Tally:       tallyUseCase,
			Containers:  containerUseCase,
			Logger:      deps.Logger,
		},
		Ballots: ballotUseCase,
	}
}

func NewInMemoryModule(seed []entities.Vote, final ports.FinalContainerBuilder, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Votes:       store,
		Permissions: store,
		Members:     store,
		Final:       final,
		Clock:       store,
		IDGen:       store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
