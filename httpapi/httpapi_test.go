package httpapi

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"

	"github.com/berith-pool/poold/logging"
	"github.com/berith-pool/poold/pool"
	"github.com/berith-pool/poold/powhash"
	"github.com/berith-pool/poold/roundhistory"
	"github.com/berith-pool/poold/validator"
)

type fakeDriver struct {
	ch chan pool.Contribution
}

func (f *fakeDriver) Ingress() chan<- pool.Contribution { return f.ch }

func newTestServer(t *testing.T, challenge pool.Challenge) (*Server, *fakeDriver) {
	t.Helper()
	v, fd := buildValidator(challenge)
	return New(v, fd, staticView{challenge}, roundhistory.New(), nil, logging.New("error")), fd
}

type staticView struct{ c pool.Challenge }

func (s staticView) CurrentChallenge() pool.Challenge { return s.c }

func buildValidator(challenge pool.Challenge) (*validator.Validator, *fakeDriver) {
	return validator.New(staticView{challenge}), &fakeDriver{ch: make(chan pool.Contribution, 4)}
}

func TestHandleContributeAcceptsValidSolution(t *testing.T) {
	challenge := pool.Challenge{MinDifficulty: 1}
	srv, fd := newTestServer(t, challenge)

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	var sol pool.Solution
	var nonce uint64
	for {
		binary.LittleEndian.PutUint64(sol.N[:], nonce)
		sol.D = powhash.ComputeDigest(challenge.ChallengeDigest, sol.N)
		if powhash.Difficulty(challenge.ChallengeDigest, sol) >= challenge.MinDifficulty {
			break
		}
		nonce++
	}
	sig := ed25519.Sign(priv, sol.Bytes())

	body := map[string]interface{}{
		"authority": base58.Encode(pub),
		"solution":  map[string]interface{}{"d": sol.D, "n": sol.N},
		"signature": base58.Encode(sig),
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/contribute", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	select {
	case c := <-fd.ch:
		require.EqualValues(t, pub, c.Member[:])
	default:
		t.Fatal("expected a contribution to be enqueued")
	}
}

func TestHandleContributeRejectsBadSignature(t *testing.T) {
	challenge := pool.Challenge{MinDifficulty: 1}
	srv, _ := newTestServer(t, challenge)

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var sol pool.Solution
	badSig := make([]byte, ed25519.SignatureSize)

	body := map[string]interface{}{
		"authority": base58.Encode(pub),
		"solution":  map[string]interface{}{"d": sol.D, "n": sol.N},
		"signature": base58.Encode(badSig),
	}
	raw, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/contribute", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleChallengeAppliesClientCutoffBuffer(t *testing.T) {
	challenge := pool.Challenge{CutoffTimeSecs: 100}
	srv, _ := newTestServer(t, challenge)

	req := httptest.NewRequest(http.MethodGet, "/challenge", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp challengeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.EqualValues(t, challenge.ClientCutoff(), resp.CutoffTimeSecs)
	require.Less(t, resp.CutoffTimeSecs, challenge.CutoffTimeSecs)
}

func TestHandleHealthReportsOKWithNoHistory(t *testing.T) {
	srv, _ := newTestServer(t, pool.Challenge{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
