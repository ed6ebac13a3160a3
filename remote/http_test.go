package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hlgc/IceCream/logger"
	"github.com/hlgc/IceCream/models"
)

func newTestDatabase(t *testing.T, handler http.Handler) (Database, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	db, err := NewHTTPDatabase(srv.URL, models.ScopePrivate, logger.Nop())
	require.NoError(t, err)
	return db, srv
}

func TestNewHTTPDatabase_BadURL(t *testing.T) {
	_, err := NewHTTPDatabase("   ", models.ScopePrivate, logger.Nop())
	assert.Error(t, err)
}

func TestHTTPDatabase_FetchDatabaseChanges(t *testing.T) {
	db, _ := newTestDatabase(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/private/changes/database", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Client-ID"))

		var body tokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, models.ChangeToken("t0"), body.Token)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(DatabaseChanges{
			ChangedZones: []string{"DogsZone"},
			Token:        models.ChangeToken("t1"),
			More:         true,
		})
	}))

	changes, err := db.FetchDatabaseChanges(context.Background(), models.ChangeToken("t0"))
	require.NoError(t, err)
	assert.Equal(t, []string{"DogsZone"}, changes.ChangedZones)
	assert.Equal(t, models.ChangeToken("t1"), changes.Token)
	assert.True(t, changes.More)
}

func TestHTTPDatabase_ModifyRecords_RateLimited(t *testing.T) {
	db, _ := newTestDatabase(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	err := db.ModifyRecords(context.Background(), nil, nil, ModifyOptions{Atomic: true, SavePolicy: SaveLastWriteWins})
	require.Error(t, err)

	out := Classify(err)
	assert.Equal(t, OutcomeRetry, out.Kind)
	assert.Equal(t, "5s", out.RetryAfter.String())
}

func TestHTTPDatabase_StatusMapping(t *testing.T) {
	tests := []struct {
		status   int
		wantCode Code
	}{
		{http.StatusGone, CodeChangeTokenExpired},
		{http.StatusConflict, CodeServerRecordChanged},
		{http.StatusRequestEntityTooLarge, CodeLimitExceeded},
		{http.StatusInsufficientStorage, CodeQuotaExceeded},
		{http.StatusLocked, CodeZoneBusy},
		{http.StatusBadGateway, CodeNetworkFailure},
		{http.StatusTeapot, CodeUnknown},
	}

	for _, tt := range tests {
		db, _ := newTestDatabase(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		}))

		err := db.CreateZone(context.Background(), "DogsZone")
		require.Error(t, err)

		var re *Error
		require.ErrorAs(t, err, &re)
		assert.Equal(t, tt.wantCode, re.Code, "status %d", tt.status)
	}
}

func TestHTTPDatabase_AccountStatus(t *testing.T) {
	db, _ := newTestDatabase(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/private/account/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(accountStatusResponse{Status: "available"})
	}))

	status, err := db.AccountStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.AccountAvailable, status)
}

func TestHTTPDatabase_TransportErrorIsNetwork(t *testing.T) {
	db, err := NewHTTPDatabase("http://127.0.0.1:1", models.ScopePrivate, logger.Nop())
	require.NoError(t, err)

	_, err = db.ListOperations(context.Background())
	require.Error(t, err)

	out := Classify(err)
	assert.Equal(t, OutcomeRecoverable, out.Kind)
	assert.Equal(t, ReasonNetwork, out.Reason)
}
