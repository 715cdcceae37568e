// Package httpapi implements the HTTP transport (SPEC_FULL.md §6): the
// /contribute, /challenge, and /health JSON endpoints, routed with
// httprouter and wrapped in a permissive CORS policy mirroring the
// upstream operator's public API posture.
package httpapi

import (
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/berith-pool/poold/logging"
	"github.com/berith-pool/poold/metrics"
	"github.com/berith-pool/poold/pool"
	"github.com/berith-pool/poold/poolerr"
	"github.com/berith-pool/poold/roundhistory"
	"github.com/berith-pool/poold/validator"
)

// Driver is the subset of driver.Driver the HTTP layer needs: a place to
// enqueue validated contributions.
type Driver interface {
	Ingress() chan<- pool.Contribution
}

// Server bundles the dependencies the HTTP handlers close over.
type Server struct {
	validator *validator.Validator
	driver    Driver
	view      validator.ChallengeView
	history   *roundhistory.History
	metrics   *metrics.Metrics
	log       *logging.Logger
}

// New constructs a Server. view is read for both validation and the
// /challenge endpoint.
func New(v *validator.Validator, d Driver, view validator.ChallengeView, history *roundhistory.History, m *metrics.Metrics, log *logging.Logger) *Server {
	return &Server{validator: v, driver: d, view: view, history: history, metrics: m, log: log.Named("http")}
}

// Handler returns the fully routed, CORS-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	r := httprouter.New()
	r.POST("/contribute", s.handleContribute)
	r.GET("/challenge", s.handleChallenge)
	r.GET("/health", s.handleHealth)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	})
	return c.Handler(r)
}

type contributeRequest struct {
	Authority string `json:"authority"`
	Solution  struct {
		D [pool.DigestSize]byte `json:"d"`
		N [pool.NonceSize]byte  `json:"n"`
	} `json:"solution"`
	Signature string `json:"signature"`
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req contributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.metrics, http.StatusBadRequest, "invalid_digest", "malformed request body")
		return
	}

	authority, err := pool.ParsePubkey(req.Authority)
	if err != nil {
		writeError(w, s.metrics, http.StatusBadRequest, "invalid_digest", "malformed authority")
		return
	}
	sigBytes, err := decodeSignature(req.Signature)
	if err != nil {
		writeError(w, s.metrics, http.StatusBadRequest, "invalid_digest", "malformed signature")
		return
	}

	payload := validator.Payload{
		Authority: authority,
		Solution:  pool.Solution{D: req.Solution.D, N: req.Solution.N},
	}
	copy(payload.Signature[:], sigBytes)

	contribution, err := s.validator.Validate(payload)
	if err != nil {
		status, label := classifyValidationError(err)
		writeError(w, s.metrics, status, label, err.Error())
		return
	}

	if s.metrics != nil {
		s.metrics.ObserveContribution("accepted")
	}
	s.driver.Ingress() <- contribution
	w.WriteHeader(http.StatusOK)
}

func classifyValidationError(err error) (int, string) {
	if !poolerr.Is(err, poolerr.KindValidation) {
		return http.StatusInternalServerError, "internal"
	}
	code, _ := poolerr.CodeOf(err)
	switch code {
	case poolerr.CodeInvalidSignature:
		return http.StatusUnauthorized, string(code)
	case poolerr.CodeBelowMinDifficulty:
		return http.StatusBadRequest, string(code)
	default:
		return http.StatusBadRequest, string(poolerr.CodeInvalidDigest)
	}
}

func decodeSignature(s string) ([]byte, error) {
	b, err := pool.DecodeSignature(s)
	if err != nil {
		return nil, err
	}
	if len(b) != ed25519.SignatureSize {
		return nil, poolerr.Validation(poolerr.CodeInvalidDigest, "signature has wrong length")
	}
	return b, nil
}

type challengeResponse struct {
	ChallengeDigest string `json:"challenge_digest"`
	MinDifficulty   uint32 `json:"min_difficulty"`
	CutoffTimeSecs  uint64 `json:"cutoff_time_secs"`
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	c := s.view.CurrentChallenge()
	resp := challengeResponse{
		ChallengeDigest: hexEncode(c.ChallengeDigest[:]),
		MinDifficulty:   c.MinDifficulty,
		CutoffTimeSecs:  c.ClientCutoff(),
	}
	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status             string `json:"status"`
	LastSettledAt      string `json:"last_settled_at,omitempty"`
	LastSettledSig     string `json:"last_settled_signature,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	resp := healthResponse{Status: "ok"}
	if last, ok := s.history.Latest(); ok {
		resp.LastSettledAt = last.SettledAt.Format(time.RFC3339)
		resp.LastSettledSig = last.Signature
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, m *metrics.Metrics, status int, label, msg string) {
	if m != nil {
		m.ObserveContribution(label)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func hexEncode(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}
