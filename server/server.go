package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"stakebadge/crypto"
	"stakebadge/native/badge"
	"stakebadge/native/staking"
)

// Pool is the read side of the node exposed over HTTP.
type Pool interface {
	TotalStaked() (*big.Int, error)
	Position(user [20]byte) (*staking.Position, error)
	Eligibility(user [20]byte) (*staking.Eligibility, error)
	BadgeOwner(id uint64) ([20]byte, error)
	BadgeURI(id uint64) (string, error)
	Params() staking.TierParams
	Vault() [20]byte
}

// Server serves pool queries, health and prometheus metrics.
type Server struct {
	pool   Pool
	logger *slog.Logger
	router http.Handler
}

// New constructs the query router.
func New(pool Pool, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{pool: pool, logger: logger.With(slog.String("component", "query"))}
	srv.router = otelhttp.NewHandler(srv.buildRouter(), "stakebadge-query")
	return srv
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Get("/pool", s.GetPool)
		api.Get("/positions/{address}", s.GetPosition)
		api.Get("/eligibility/{address}", s.GetEligibility)
		api.Get("/badges/{id}", s.GetBadge)
	})
	return r
}

type poolResponse struct {
	Vault       string `json:"vault"`
	TotalStaked string `json:"totalStaked"`
	Scale       uint64 `json:"scale"`
	MaxTier     uint8  `json:"maxTier"`
	UnitSeconds uint64 `json:"unitSeconds"`
}

type positionResponse struct {
	Address  string `json:"address"`
	Balance  string `json:"balance"`
	StakedAt uint64 `json:"stakedAt"`
	Tier     uint8  `json:"tier"`
	BadgeID  uint64 `json:"badgeId,omitempty"`
}

type badgeResponse struct {
	ID    uint64 `json:"id"`
	Owner string `json:"owner"`
	URI   string `json:"uri"`
}

// GetPool reports the pool total and the tier parameters.
func (s *Server) GetPool(w http.ResponseWriter, _ *http.Request) {
	total, err := s.pool.TotalStaked()
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	params := s.pool.Params()
	writeJSON(w, http.StatusOK, poolResponse{
		Vault:       crypto.FormatAddress(s.pool.Vault()),
		TotalStaked: total.String(),
		Scale:       params.Scale,
		MaxTier:     params.MaxTier,
		UnitSeconds: params.UnitSeconds,
	})
}

func (s *Server) GetPosition(w http.ResponseWriter, r *http.Request) {
	user, ok := s.addressParam(w, r)
	if !ok {
		return
	}
	pos, err := s.pool.Position(user)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, positionResponse{
		Address:  crypto.FormatAddress(user),
		Balance:  pos.Balance.String(),
		StakedAt: pos.StakedAt,
		Tier:     pos.Tier,
		BadgeID:  pos.BadgeID,
	})
}

func (s *Server) GetEligibility(w http.ResponseWriter, r *http.Request) {
	user, ok := s.addressParam(w, r)
	if !ok {
		return
	}
	report, err := s.pool.Eligibility(user)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) GetBadge(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		s.fail(w, http.StatusBadRequest, errors.New("badge id must be a positive integer"))
		return
	}
	owner, err := s.pool.BadgeOwner(id)
	if errors.Is(err, badge.ErrBadgeNotFound) {
		s.fail(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	uri, err := s.pool.BadgeURI(id)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, badgeResponse{ID: id, Owner: crypto.FormatAddress(owner), URI: uri})
}

func (s *Server) addressParam(w http.ResponseWriter, r *http.Request) ([20]byte, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "address"))
	addr, err := crypto.DecodeAddress(raw)
	if err != nil || addr.Prefix() != crypto.StakePrefix {
		s.fail(w, http.StatusBadRequest, errors.New("address must be a bech32 stk address"))
		return [20]byte{}, false
	}
	return addr.Bytes(), true
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("Query failed", slog.Any("error", err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
