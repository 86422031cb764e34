package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealtrack/internal/config"
	"sealtrack/internal/domain"
	"sealtrack/internal/infra/anchor"
	"sealtrack/internal/infra/auth/jwtauth"
	"sealtrack/internal/infra/crypto"
	"sealtrack/internal/infra/docmem"
	"sealtrack/internal/infra/events"
	"sealtrack/internal/infra/ledgermem"
	"sealtrack/internal/infra/metrics"
	"sealtrack/internal/infra/ratelimit"
	"sealtrack/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	server  *Server
	ledger  *ledgermem.Ledger
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, cfg config.Config, limiter domain.RateLimiter, authenticator domain.Authenticator, overrides ...func(*ServerDeps)) *testServer {
	t.Helper()
	if cfg.AuthMode == "" {
		cfg.AuthMode = config.AuthModeNone
	}
	store := docmem.New()
	chain := ledgermem.New(ledgermem.Options{})
	anchors := anchor.NewService(chain, docmem.NewAnchorAttempts(), anchor.Options{})
	fingerprints := crypto.NewService()
	broker := events.NewBroker()
	m := metrics.New()

	documents := &usecase.DocumentService{Documents: store, Fingerprints: fingerprints, Events: broker}
	deps := ServerDeps{
		Documents: documents,
		Sign: &usecase.SignDocument{
			Documents:    store,
			Fingerprints: fingerprints,
			Ledger:       chain,
			Anchors:      anchors,
			Events:       broker,
		},
		Verify:        &usecase.VerifyDocument{Documents: store, Ledger: chain, Events: broker},
		Anchors:       anchors,
		Ledger:        chain,
		Feed:          broker,
		Authenticator: authenticator,
		RateLimiter:   limiter,
		Metrics:       m,
	}
	for _, override := range overrides {
		override(&deps)
	}
	server := NewServer(cfg, deps)
	return &testServer{server: server, ledger: chain, metrics: m}
}

type principalHeaders struct {
	subject string
	email   string
}

var (
	owner = principalHeaders{subject: "owner-1", email: "owner@example.com"}
	alice = principalHeaders{subject: "alice", email: "alice@example.com"}
	bob   = principalHeaders{subject: "bob", email: "bob@example.com"}
)

func (ts *testServer) do(t *testing.T, method, path string, who *principalHeaders, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if who != nil {
		req.Header.Set("X-Principal-Subject", who.subject)
		req.Header.Set("X-Principal-Email", who.email)
	}
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func createDocument(t *testing.T, ts *testServer) domain.Document {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/v1/documents", &owner, createDocumentRequest{
		Title:      "Consulting",
		TemplateID: "service-agreement",
		Signers: []signerRequest{
			{Name: "Alice", Email: "Alice@Example.com"},
			{Name: "Bob", Email: "bob@example.com"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[domain.Document](t, rec)
}

func TestSignAndVerifyFlow(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil, nil)
	doc := createDocument(t, ts)
	assert.Equal(t, domain.DocumentStatusPending, doc.Status)
	assert.Contains(t, doc.Content, "Service Agreement")
	require.NotNil(t, doc.DocumentHash)

	rec := ts.do(t, http.MethodPost, "/v1/documents/"+doc.ID+"/verify", &owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "not_signed", decode[verifyResponse](t, rec).Status)

	rec = ts.do(t, http.MethodPost, "/v1/documents/"+doc.ID+"/sign", &alice, signRequest{
		SignatureDataURL: "data:image/png;base64,AAAA",
		SignatureHash:    "0xalice",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[signResponse](t, rec)
	assert.False(t, first.Completed)
	assert.Nil(t, first.Anchor)

	rec = ts.do(t, http.MethodPost, "/v1/documents/"+doc.ID+"/sign", &alice, signRequest{
		SignatureDataURL: "data:image/png;base64,AAAA",
		SignatureHash:    "0xalice",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_SIGNED", decode[errorResponse](t, rec).Code)

	rec = ts.do(t, http.MethodPost, "/v1/documents/"+doc.ID+"/sign", &bob, signRequest{
		SignatureDataURL: "data:image/png;base64,BBBB",
		SignatureHash:    "0xbob",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := decode[signResponse](t, rec)
	assert.True(t, second.Completed)
	require.NotNil(t, second.Anchor)
	assert.Equal(t, domain.AnchorStatusAnchored, second.Anchor.Status)
	assert.Equal(t, "0xbob", second.Anchor.PayloadHash)
	assert.Equal(t, domain.DocumentStatusCompleted, second.Document.Status)

	rec = ts.do(t, http.MethodPost, "/v1/documents/"+doc.ID+"/verify", &alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	verified := decode[verifyResponse](t, rec)
	assert.Equal(t, "authentic", verified.Status)
	require.NotNil(t, verified.IsAuthentic)
	assert.True(t, *verified.IsAuthentic)

	ts.ledger.Overwrite(doc.ID, "0xforged")
	rec = ts.do(t, http.MethodPost, "/v1/documents/"+doc.ID+"/verify", &owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mismatch", decode[verifyResponse](t, rec).Status)

	rec = ts.do(t, http.MethodGet, "/v1/documents/"+doc.ID+"/anchors", &owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	attempts := decode[struct {
		Attempts []anchorResponse `json:"attempts"`
	}](t, rec)
	require.Len(t, attempts.Attempts, 1)
	assert.Equal(t, "memory", attempts.Attempts[0].Provider)

	rec = ts.do(t, http.MethodGet, "/v1/ledger/documents/"+doc.ID, &owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0xforged", decode[ledgerRecordResponse](t, rec).Hash)
}

func TestDocumentAccess(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil, nil)
	doc := createDocument(t, ts)
	stranger := principalHeaders{subject: "eve", email: "eve@example.com"}

	rec := ts.do(t, http.MethodGet, "/v1/documents/"+doc.ID, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/documents/"+doc.ID+"/sign", &stranger, signRequest{
		SignatureDataURL: "data:image/png;base64,AAAA",
		SignatureHash:    "0xeve",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "NOT_A_SIGNER", decode[errorResponse](t, rec).Code)

	rec = ts.do(t, http.MethodGet, "/v1/documents/missing", &owner, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/documents", &alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[struct {
		Documents []domain.Document `json:"documents"`
	}](t, rec)
	require.Len(t, listed.Documents, 1)
	assert.Equal(t, doc.ID, listed.Documents[0].ID)

	rec = ts.do(t, http.MethodPost, "/v1/documents", &owner, createDocumentRequest{Title: " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/documents", &owner, createDocumentRequest{Title: "x", TemplateID: "nope"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNKNOWN_TEMPLATE", decode[errorResponse](t, rec).Code)
}

func TestUpdateAndReject(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil, nil)
	doc := createDocument(t, ts)

	title := "Consulting v2"
	rec := ts.do(t, http.MethodPatch, "/v1/documents/"+doc.ID, &owner, updateDocumentRequest{Title: &title})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[domain.Document](t, rec)
	assert.Equal(t, title, updated.Title)
	assert.NotEqual(t, *doc.DocumentHash, *updated.DocumentHash)

	rec = ts.do(t, http.MethodPost, "/v1/documents/"+doc.ID+"/signers", &owner, signerRequest{Name: "Carol", Email: "carol@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[domain.Document](t, rec).Signers, 3)

	rec = ts.do(t, http.MethodPost, "/v1/documents/"+doc.ID+"/signers", &owner, signerRequest{Name: "Again", Email: "carol@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/documents/"+doc.ID+"/fingerprint", &alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fp))
	assert.Len(t, fp["fingerprint"], 64)

	rec = ts.do(t, http.MethodPost, "/v1/documents/"+doc.ID+"/reject", &owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.DocumentStatusRejected, decode[domain.Document](t, rec).Status)

	rec = ts.do(t, http.MethodPost, "/v1/documents/"+doc.ID+"/sign", &alice, signRequest{
		SignatureDataURL: "data:image/png;base64,AAAA",
		SignatureHash:    "0xalice",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DOCUMENT_REJECTED", decode[errorResponse](t, rec).Code)
}

func TestCompletionWithLowBalanceWarns(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil, nil)
	ts.ledger.SetBalance(big.NewInt(1))
	doc := createDocument(t, ts)

	for _, who := range []*principalHeaders{&alice, &bob} {
		rec := ts.do(t, http.MethodPost, "/v1/documents/"+doc.ID+"/sign", who, signRequest{
			SignatureDataURL: "data:image/png;base64,AAAA",
			SignatureHash:    "0x" + who.subject,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		if who == &bob {
			resp := decode[signResponse](t, rec)
			assert.True(t, resp.Completed)
			require.NotNil(t, resp.Anchor)
			assert.Equal(t, domain.AnchorErrorInsufficientFunds, resp.Anchor.ErrorCode)
			assert.NotEmpty(t, resp.Warnings)
		}
	}
}

func TestLedgerStatusAndHealth(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil, nil)
	rec := ts.do(t, http.MethodGet, "/v1/ledger/status", &owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[ledgerStatusResponse](t, rec)
	assert.Equal(t, "memory", status.Provider)
	assert.True(t, status.Exists)
	assert.NotEmpty(t, status.BalanceWei)

	rec = ts.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ledger":"ok"`)

	rec = ts.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sealtrack_http_requests_total")

	rec = ts.do(t, http.MethodGet, "/v1/templates", &owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "service-agreement")
}

func TestJWTMode(t *testing.T) {
	auth, err := jwtauth.NewAuthenticator("0123456789abcdef0123456789abcdef", "sealtrack")
	require.NoError(t, err)
	ts := newTestServer(t, config.Config{AuthMode: config.AuthModeJWT}, nil, auth)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents", nil)
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := auth.Issue(domain.Principal{Subject: "owner-1", Email: "owner@example.com"}, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/v1/documents", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/documents", nil)
	req.Header.Set("X-Principal-Subject", "owner-1")
	rec = httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "headers are ignored in jwt mode")
}

func TestJWTModeWithoutAuthenticatorFailsStart(t *testing.T) {
	ts := newTestServer(t, config.Config{AuthMode: config.AuthModeJWT}, nil, nil)
	_, err := ts.server.Start()
	require.Error(t, err)
	rec := ts.do(t, http.MethodGet, "/v1/documents", &owner, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{})
	ts := newTestServer(t, config.Config{RateLimitRequests: 1, RateLimitWindowSeconds: 60}, limiter, nil)

	rec := ts.do(t, http.MethodGet, "/v1/templates", &owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("RateLimit-Limit"))

	rec = ts.do(t, http.MethodGet, "/v1/templates", &owner, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", decode[errorResponse](t, rec).Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int, time.Duration) (domain.RateLimitDecision, error) {
	return domain.RateLimitDecision{}, errors.New("redis down")
}

func TestRateLimitFailureModes(t *testing.T) {
	open := newTestServer(t, config.Config{RateLimitRequests: 1}, failingLimiter{}, nil)
	assert.Equal(t, http.StatusOK, open.do(t, http.MethodGet, "/v1/templates", &owner, nil).Code)

	closed := newTestServer(t, config.Config{RateLimitRequests: 1, RateLimitFailClosed: true}, failingLimiter{}, nil)
	rec := closed.do(t, http.MethodGet, "/v1/templates", &owner, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMIT_UNAVAILABLE", decode[errorResponse](t, rec).Code)
}

func TestWriteErrorInsufficientFundsDetails(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil, nil)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	err := domain.NewInsufficientFundsError(domain.FundsCheckCost, big.NewInt(40), big.NewInt(100))
	ts.server.writeError(c, err)

	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[errorResponse](t, rec)
	assert.Equal(t, "INSUFFICIENT_FUNDS", resp.Code)
	assert.Equal(t, "61", resp.Details["shortfall_wei"])
	assert.Equal(t, "cost", resp.Details["check"])
}

func TestWriteErrorHidesInternalErrors(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil, nil)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	ts.server.writeError(c, errors.New("pq: connection refused"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, strings.Contains(rec.Body.String(), "pq:"))
}

type signalingFeed struct {
	inner      domain.EventSubscriber
	subscribed chan struct{}
}

func (f *signalingFeed) Subscribe(ctx context.Context, documentID string) (<-chan domain.DocumentEvent, error) {
	ch, err := f.inner.Subscribe(ctx, documentID)
	close(f.subscribed)
	return ch, err
}

func TestEventStream(t *testing.T) {
	broker := events.NewBroker()
	feed := &signalingFeed{inner: broker, subscribed: make(chan struct{})}
	ts := newTestServer(t, config.Config{}, nil, nil, func(deps *ServerDeps) {
		deps.Feed = feed
		deps.Documents.Events = broker
		deps.Sign.Events = broker
	})
	doc := createDocument(t, ts)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/v1/documents/"+doc.ID+"/events", nil).WithContext(ctx)
	req.Header.Set("X-Principal-Subject", owner.subject)
	req.Header.Set("X-Principal-Email", owner.email)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		ts.server.Handler().ServeHTTP(rec, req)
		close(done)
	}()

	select {
	case <-feed.subscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("stream never subscribed")
	}
	signed := ts.do(t, http.MethodPost, "/v1/documents/"+doc.ID+"/sign", &alice, signRequest{
		SignatureDataURL: "data:image/png;base64,AAAA",
		SignatureHash:    "0xalice",
	})
	require.Equal(t, http.StatusOK, signed.Code)
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	assert.Contains(t, rec.Body.String(), "event:signature.recorded")
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}
