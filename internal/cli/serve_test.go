package cli

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jredh-dev/order-notify/config"
)

// fakeBridge answers the three bridge endpoints the service uses.
type fakeBridge struct {
	status atomic.Value // string

	mu   sync.Mutex
	sent []map[string]string
}

func newFakeBridge(t *testing.T, status string) (*fakeBridge, *httptest.Server) {
	t.Helper()
	fb := &fakeBridge{}
	fb.status.Store(status)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/sessions/{name}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"name": r.PathValue("name"), "status": fb.status.Load().(string)})
	})
	mux.HandleFunc("GET /api/contacts/check-exists", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"numberExists": true})
	})
	mux.HandleFunc("POST /api/sendText", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		fb.mu.Lock()
		fb.sent = append(fb.sent, body)
		fb.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fb, srv
}

func (fb *fakeBridge) Sent() []map[string]string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]map[string]string(nil), fb.sent...)
}

func testConfig(t *testing.T, bridgeURL string) *config.Config {
	t.Helper()
	cfg := config.Load()
	cfg.Bridge.URL = bridgeURL
	cfg.Bridge.Session = "default"
	cfg.Bridge.APIKey = ""
	cfg.Bridge.PollInterval = 20 * time.Millisecond
	cfg.Bridge.Timeout = time.Second
	cfg.Delivery.Backoff = 20 * time.Millisecond
	cfg.Database.Path = t.TempDir() + "/order-notify.db"
	cfg.Kafka.Brokers = ""
	cfg.Firestore.ProjectID = ""
	cfg.JWT.SigningKey = ""
	cfg.Store.WebhookSecret = ""
	cfg.Store.Currency = "LKR"
	return cfg
}

func TestAppQueuesUntilBridgeIsWorking(t *testing.T) {
	fb, bridge := newFakeBridge(t, "SCAN_QR_CODE")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, testConfig(t, bridge.URL), logger)
	require.NoError(t, err)
	defer func() {
		a.stopWatcher()
		a.dispatcher.Close()
		a.ledger.Close()
	}()
	a.startWatcher(ctx)

	body := `{"customer":{"phone":"+94 77 123 4567","first_name":"Amal"},"order_number":101,
		"line_items":[{"title":"Candle","quantity":2,"price":"100.00"}],"total_price":"250.00"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	w := httptest.NewRecorder()
	a.server.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"delivery":"queued"`)
	assert.Empty(t, fb.Sent())

	fb.status.Store("WORKING")

	require.Eventually(t, func() bool { return len(fb.Sent()) == 1 }, 3*time.Second, 10*time.Millisecond)
	sent := fb.Sent()[0]
	assert.Equal(t, "default", sent["session"])
	assert.Equal(t, "94771234567@c.us", sent["chatId"])
	assert.Contains(t, sent["text"], "Thank you for your order #101!")

	require.Eventually(t, func() bool {
		attempts, err := a.ledger.Recent(context.Background(), 10)
		return err == nil && len(attempts) == 1 && attempts[0].Mode == "queued"
	}, 3*time.Second, 10*time.Millisecond)
	assert.Zero(t, a.dispatcher.Len())
}

func TestAppHealthAndStatus(t *testing.T) {
	_, bridge := newFakeBridge(t, "STARTING")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := newApp(context.Background(), testConfig(t, bridge.URL), logger)
	require.NoError(t, err)
	defer func() {
		a.dispatcher.Close()
		a.ledger.Close()
	}()

	w := httptest.NewRecorder()
	a.server.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	a.server.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"unauthenticated"`)

	w = httptest.NewRecorder()
	a.server.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/queue", nil))
	assert.Equal(t, http.StatusNotFound, w.Code, "admin API is off without a signing key")
}

func TestRunServeRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Log.Format = "xml"

	err := runServe(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_FORMAT")
}
