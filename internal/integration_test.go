package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"toolshare-backend/config"
	"toolshare-backend/internal/api"
	"toolshare-backend/internal/booking"
	"toolshare-backend/internal/db"
	"toolshare-backend/internal/model"
	"toolshare-backend/internal/notify"
	"toolshare-backend/internal/presence"
	"toolshare-backend/internal/scheduler"
	"toolshare-backend/internal/store"
)

// testChannel is an in-process stand-in for a live websocket connection.
type testChannel struct {
	mu       sync.Mutex
	messages [][]byte
}

func (c *testChannel) TrySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return true
}

func (c *testChannel) envelopes(t *testing.T) []notify.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]notify.Envelope, 0, len(c.messages))
	for _, raw := range c.messages {
		var e notify.Envelope
		require.NoError(t, json.Unmarshal(raw, &e))
		out = append(out, e)
	}
	return out
}

type testEnv struct {
	server    *httptest.Server
	store     store.Store
	registry  *presence.Registry
	scheduler *scheduler.Service
	setNow    func(time.Time)
}

func newTestEnv(t *testing.T, name string) *testEnv {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	t.Cleanup(func() {
		sqlDB, _ := gormDB.DB()
		sqlDB.Close()
	})

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:            0,
			RateLimitPerSec: 1000,
			RateLimitBurst:  1000,
			CacheTTLSeconds: 1,
		},
		Auth: config.AuthConfig{
			JWTSecret: "integration-test-secret",
			TokenTTL:  time.Hour,
		},
		Scheduler: config.SchedulerConfig{
			Enabled:  true,
			Interval: time.Minute,
			Timeout:  5 * time.Second,
		},
	}

	appStore := store.NewGormStore(gormDB)
	registry := presence.NewRegistry()
	dispatcher := notify.NewDispatcher(registry)
	bookingSvc := booking.NewService(appStore, dispatcher)
	schedulerSvc := scheduler.NewService(cfg.Scheduler, appStore, bookingSvc)

	now := time.Now().UTC()
	var nowMu sync.Mutex
	schedulerSvc.SetClock(func() time.Time {
		nowMu.Lock()
		defer nowMu.Unlock()
		return now
	})

	server := httptest.NewServer(api.NewRouter(cfg, appStore, bookingSvc, registry))
	t.Cleanup(server.Close)

	return &testEnv{
		server:    server,
		store:     appStore,
		registry:  registry,
		scheduler: schedulerSvc,
		setNow: func(tm time.Time) {
			nowMu.Lock()
			defer nowMu.Unlock()
			now = tm
		},
	}
}

func (env *testEnv) doJSON(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, env.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func (env *testEnv) registerUser(t *testing.T, name string) (int64, string) {
	t.Helper()
	status, raw := env.doJSON(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     name,
		"email":    name + "@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	var resp struct {
		ID    int64  `json:"id"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp.ID, resp.Token
}

// TestBookingLifecycle walks a booking through its whole life: request,
// approval, and scheduler-driven completion, checking availability and the
// push notifications both parties receive at each step.
func TestBookingLifecycle(t *testing.T) {
	env := newTestEnv(t, "lifecycle")

	ownerID, ownerToken := env.registerUser(t, "alice")
	borrowerID, borrowerToken := env.registerUser(t, "bob")

	ownerChan := &testChannel{}
	borrowerChan := &testChannel{}
	env.registry.Register(ownerID, "chan-owner", "alice", ownerChan)
	env.registry.Register(borrowerID, "chan-borrower", "bob", borrowerChan)

	// Owner lists a tool.
	status, raw := env.doJSON(t, http.MethodPost, "/api/tools", ownerToken, map[string]string{
		"name":      "Cordless Drill",
		"category":  "power tools",
		"condition": "good",
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	var tool model.Tool
	require.NoError(t, json.Unmarshal(raw, &tool))

	// Borrower requests it for a two-hour window.
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	status, raw = env.doJSON(t, http.MethodPost, "/api/bookings", borrowerToken, map[string]any{
		"toolId":    tool.ID,
		"startDate": start.Format(time.RFC3339),
		"endDate":   end.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	var created model.Booking
	require.NoError(t, json.Unmarshal(raw, &created))
	assert.Equal(t, model.StatusPending, created.Status)

	ownerEvents := ownerChan.envelopes(t)
	require.Len(t, ownerEvents, 1, "owner is told about the new request")
	assert.Equal(t, notify.EventNewBookingRequest, ownerEvents[0].Event)

	// A second request from the same borrower is refused.
	status, raw = env.doJSON(t, http.MethodPost, "/api/bookings", borrowerToken, map[string]any{
		"toolId":    tool.ID,
		"startDate": start.Format(time.RFC3339),
		"endDate":   end.Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, status, string(raw))

	// Owner approves.
	status, raw = env.doJSON(t, http.MethodPut, fmt.Sprintf("/api/bookings/%d", created.ID), ownerToken,
		map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, status, string(raw))
	var approved model.Booking
	require.NoError(t, json.Unmarshal(raw, &approved))
	assert.Equal(t, model.StatusApproved, approved.Status)

	status, raw = env.doJSON(t, http.MethodGet, fmt.Sprintf("/api/tools/%d", tool.ID), "", nil)
	require.Equal(t, http.StatusOK, status)
	var claimed model.Tool
	require.NoError(t, json.Unmarshal(raw, &claimed))
	assert.False(t, claimed.Availability, "an approved booking claims the tool")

	borrowerEvents := borrowerChan.envelopes(t)
	require.Len(t, borrowerEvents, 1, "borrower is told about the approval")
	assert.Equal(t, notify.EventBookingStatusUpdated, borrowerEvents[0].Event)

	// The window elapses and the next sweep completes the booking.
	env.setNow(end.Add(time.Minute))
	env.scheduler.SweepOnce(context.Background())

	status, raw = env.doJSON(t, http.MethodGet, "/api/bookings", borrowerToken, nil)
	require.Equal(t, http.StatusOK, status)
	var bookings []model.Booking
	require.NoError(t, json.Unmarshal(raw, &bookings))
	require.Len(t, bookings, 1)
	assert.Equal(t, model.StatusCompleted, bookings[0].Status)

	status, raw = env.doJSON(t, http.MethodGet, fmt.Sprintf("/api/tools/%d", tool.ID), "", nil)
	require.Equal(t, http.StatusOK, status)
	var released model.Tool
	require.NoError(t, json.Unmarshal(raw, &released))
	assert.True(t, released.Availability, "completion releases the tool")

	assert.Len(t, ownerChan.envelopes(t), 2, "owner hears about the completion")
	assert.Len(t, borrowerChan.envelopes(t), 2, "borrower hears about the completion")
}

func TestBookingRequiresAuth(t *testing.T) {
	env := newTestEnv(t, "requires_auth")

	status, _ := env.doJSON(t, http.MethodPost, "/api/bookings", "", map[string]any{"toolId": 1})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.doJSON(t, http.MethodGet, "/api/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

// TestWebSocketPresence exercises the real transport: a client connects,
// announces its identity, receives a push, and its disconnect evicts exactly
// its own registration.
func TestWebSocketPresence(t *testing.T) {
	env := newTestEnv(t, "ws_presence")

	userID, _ := env.registerUser(t, "grace")

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"event": "add_user", "userId": userID}))

	require.Eventually(t, func() bool {
		_, ok := env.registry.Lookup(userID)
		return ok
	}, 2*time.Second, 10*time.Millisecond, "registration should follow the add_user announcement")

	dispatcher := notify.NewDispatcher(env.registry)
	dispatcher.Notify(userID, notify.EventBookingStatusUpdated, notify.StatusUpdatePayload{Message: "ping"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var envelope notify.Envelope
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, notify.EventBookingStatusUpdated, envelope.Event)

	conn.Close()
	require.Eventually(t, func() bool {
		_, ok := env.registry.Lookup(userID)
		return !ok
	}, 2*time.Second, 10*time.Millisecond, "disconnect should unregister the channel")
}
