package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/teemow/meetsched/internal/accounts"
	"github.com/teemow/meetsched/internal/availability"
	"github.com/teemow/meetsched/internal/config"
	"github.com/teemow/meetsched/internal/mirror"
	"github.com/teemow/meetsched/internal/scheduler"
)

const testAccount = "me@example.com"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Accounts: config.AccountsConfig{File: filepath.Join(t.TempDir(), "accounts.json")},
		Scheduling: config.SchedulingConfig{
			Timezone:     "UTC",
			WorkdayStart: 9,
			WorkdayEnd:   17,
			WorkingHours: true,
			MaxResults:   5,
		},
		Retry:  config.RetryConfig{MaxRetries: 0},
		Mirror: config.MirrorConfig{Backend: mirror.BackendNone},
		Audit:  config.AuditConfig{Enabled: true},
	}
}

func newTestServerContext(t *testing.T, cfg *config.Config, opts ...option.ClientOption) *ServerContext {
	t.Helper()
	sc, err := NewServerContext(context.Background(), Options{
		Config:        cfg,
		Provider:      createTestProvider(t),
		ClientOptions: opts,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func addAccount(t *testing.T, sc *ServerContext, email string) {
	t.Helper()
	require.NoError(t, sc.Accounts().SaveAccount(context.Background(), email, "", &oauth2.Token{
		AccessToken:  "access-" + email,
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(time.Hour),
	}))
}

func TestNewServerContext(t *testing.T) {
	sc := newTestServerContext(t, testConfig(t))

	assert.NotNil(t, sc.Scheduler())
	assert.NotNil(t, sc.Accounts())
	assert.NotNil(t, sc.Metrics())
	assert.NotNil(t, sc.AuditLogger())
	assert.Equal(t, mirror.BackendNone, sc.MirrorBackend())
	assert.False(t, sc.IsShutdown())

	require.NoError(t, sc.Shutdown())
	assert.True(t, sc.IsShutdown())
	assert.Error(t, sc.Context().Err())

	// Shutdown is idempotent
	require.NoError(t, sc.Shutdown())
}

func TestNewServerContext_Errors(t *testing.T) {
	_, err := NewServerContext(context.Background(), Options{})
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Scheduling.Timezone = "Mars/Olympus"
	_, err = NewServerContext(context.Background(), Options{Config: cfg})
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Mirror = config.MirrorConfig{Backend: "outlook"}
	_, err = NewServerContext(context.Background(), Options{Config: cfg})
	assert.ErrorContains(t, err, "unknown mirror backend")

	cfg = testConfig(t)
	cfg.Mirror = config.MirrorConfig{Backend: mirror.BackendCalDAV, Calendar: "Work"}
	_, err = NewServerContext(context.Background(), Options{Config: cfg})
	assert.Error(t, err, "caldav needs a server URL")
}

func TestNewMirror(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.MirrorConfig
		backend string
	}{
		{name: "empty", cfg: config.MirrorConfig{}, backend: mirror.BackendNone},
		{name: "none", cfg: config.MirrorConfig{Backend: mirror.BackendNone}, backend: mirror.BackendNone},
		{name: "applescript", cfg: config.MirrorConfig{Backend: mirror.BackendAppleScript, Calendar: "Work"}, backend: mirror.BackendAppleScript},
		{
			name: "caldav",
			cfg: config.MirrorConfig{
				Backend:  mirror.BackendCalDAV,
				Calendar: "Work",
				CalDAV:   config.CalDAVConfig{URL: "https://dav.example.com/", Username: "me", Password: "secret"},
			},
			backend: mirror.BackendCalDAV,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := newMirror(tt.cfg, time.UTC, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.backend, m.Name())
		})
	}
}

func TestServerContext_FindSlotsThroughGoogle(t *testing.T) {
	var freeBusyCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /freeBusy", func(w http.ResponseWriter, r *http.Request) {
		freeBusyCalls.Add(1)
		assert.Equal(t, "Bearer access-"+testAccount, r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"calendars": map[string]any{
				testAccount: map[string]any{
					"busy": []map[string]string{{"start": "2099-01-05T09:00:00Z", "end": "2099-01-05T10:00:00Z"}},
				},
				"bob@example.com": map[string]any{"busy": []any{}},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	sc := newTestServerContext(t, testConfig(t), option.WithEndpoint(srv.URL+"/"))
	addAccount(t, sc, testAccount)

	window, err := availability.Explicit(
		time.Date(2099, 1, 5, 9, 0, 0, 0, time.UTC),
		time.Date(2099, 1, 5, 12, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	res, err := sc.Scheduler().FindSlots(context.Background(), scheduler.FindSlotsRequest{
		Attendees:       []string{"bob@example.com"},
		DurationMinutes: 30,
		Window:          window,
	})
	require.NoError(t, err)

	assert.Equal(t, testAccount, res.Account)
	require.NotEmpty(t, res.Slots)
	assert.Equal(t, time.Date(2099, 1, 5, 10, 0, 0, 0, time.UTC), res.Slots[0].Start)
	assert.Equal(t, int32(1), freeBusyCalls.Load())
}

func TestServerContext_ListThroughGoogle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "standup", r.URL.Query().Get("q"))
		assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{{
				"id":      "ev1",
				"summary": "Standup",
				"start":   map[string]string{"dateTime": "2099-01-05T09:00:00Z"},
				"end":     map[string]string{"dateTime": "2099-01-05T09:15:00Z"},
			}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	sc := newTestServerContext(t, testConfig(t), option.WithEndpoint(srv.URL+"/"))
	addAccount(t, sc, testAccount)

	window, err := availability.Explicit(
		time.Date(2099, 1, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2099, 1, 6, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	res, err := sc.Scheduler().List(context.Background(), scheduler.ListRequest{Window: window, Query: "standup"})
	require.NoError(t, err)

	assert.Equal(t, testAccount, res.Account)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "ev1", res.Events[0].ID)
	assert.Equal(t, time.Date(2099, 1, 5, 9, 0, 0, 0, time.UTC), res.Events[0].Start)
}

func TestServerContext_AccountChangeDropsClients(t *testing.T) {
	sc := newTestServerContext(t, testConfig(t), option.WithEndpoint("http://127.0.0.1:1/"))
	addAccount(t, sc, testAccount)

	_, err := sc.calendars.Get(context.Background(), testAccount)
	require.NoError(t, err)
	assert.Equal(t, 1, sc.calendars.Len())

	_, err = sc.Accounts().RemoveAccount(context.Background(), testAccount)
	require.NoError(t, err)
	assert.Equal(t, 0, sc.calendars.Len())
}

func TestServerContext_UsesInjectedStore(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "other.json")

	sc, err := NewServerContext(context.Background(), Options{
		Config: cfg,
		Store:  accounts.NewFileStore(path),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	addAccount(t, sc, testAccount)
	infos, err := accounts.NewManager(accounts.NewFileStore(path), accounts.Options{}).List(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.True(t, strings.EqualFold(testAccount, infos[0].Email))
}
