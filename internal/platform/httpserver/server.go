package httpserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	signingorchestrator "agora/contexts/identity-access/signing-orchestrator"
	signinghttp "agora/contexts/identity-access/signing-orchestrator/transport/http"
	ballotservice "agora/contexts/voting-core/ballot-service"
	ballothttp "agora/contexts/voting-core/ballot-service/transport/http"

	"github.com/golang-jwt/jwt/v4"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "agora/internal/platform/httpserver/docs"
)

type Server struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	addr      string
	jwtSecret []byte
	swaggerUI bool
	ballots   ballotservice.Module
	signing   signingorchestrator.Module
}

func New(
	ballots ballotservice.Module,
	signing signingorchestrator.Module,
	jwtSecret string,
	swaggerUI bool,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:       http.NewServeMux(),
		logger:    logger,
		addr:      addr,
		jwtSecret: []byte(jwtSecret),
		swaggerUI: swaggerUI,
		ballots:   ballots,
		signing:   signing,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	if s.swaggerUI {
		s.mux.Handle("/swagger/", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	s.mux.HandleFunc("POST /proposals/{proposal_id}/votes", s.handleCreateVote)
	s.mux.HandleFunc("GET /votes/{vote_id}", s.handleGetVote)
	s.mux.HandleFunc("PATCH /votes/{vote_id}", s.handleUpdateVote)
	s.mux.HandleFunc("POST /votes/{vote_id}/open", s.handleOpenVote)
	s.mux.HandleFunc("POST /votes/{vote_id}/ballots", s.handleCastBallot)
	s.mux.HandleFunc("POST /votes/{vote_id}/delegations", s.handleDelegate)
	s.mux.HandleFunc("DELETE /votes/{vote_id}/delegations", s.handleRevokeDelegation)
	s.mux.HandleFunc("GET /votes/{vote_id}/results", s.handleVoteResults)

	s.mux.HandleFunc("GET /votes/{vote_id}/container", s.handleFinalContainer)
	s.mux.HandleFunc("GET /votes/{vote_id}/ballots/container", s.handleUserContainer)

	s.mux.HandleFunc("POST /votes/{vote_id}/signing", s.handleInitSigning)
	s.mux.HandleFunc("POST /signing/complete", s.handleCompleteSigning)
	s.mux.HandleFunc("POST /signing/poll", s.handlePollSigning)
}

// authenticate resolves the caller identity. A Bearer JWT wins; the trusted
// gateway header is the fallback for internal callers.
func (s *Server) authenticate(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return s.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			return "", errUnauthorized
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return "", errUnauthorized
		}
		userID, _ := claims["user_id"].(string)
		if strings.TrimSpace(userID) == "" {
			return "", errUnauthorized
		}
		return userID, nil
	}
	if fromHeader := strings.TrimSpace(r.Header.Get("X-User-Id")); fromHeader != "" {
		return fromHeader, nil
	}
	return "", errUnauthorized
}

var errUnauthorized = fmt.Errorf("missing or invalid credentials")

func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := s.authenticate(r)
	if err != nil {
		writeBallotError(w, http.StatusUnauthorized, "unauthorized", "valid credentials are required")
		return "", false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeBallotError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ballothttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeSigningError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, signinghttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
