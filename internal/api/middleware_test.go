package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consulardesk/scheduling/internal/identity"
)

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generates when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/appointments", nil))

		require.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	})

	t.Run("propagates existing", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/appointments", nil)
		req.Header.Set("X-Request-ID", "req-42")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "req-42", seen)
		assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	})
}

func TestActorMiddleware(t *testing.T) {
	var gotActor identity.Actor
	var gotOK bool
	handler := ActorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor, gotOK = identity.FromContext(r.Context())
	}))

	t.Run("valid header", func(t *testing.T) {
		actorID := uuid.New()
		req := httptest.NewRequest("POST", "/appointments", nil)
		req.Header.Set("X-Actor-ID", actorID.String())
		req.Header.Set("X-Actor-Name", "Agent Silva")

		handler.ServeHTTP(httptest.NewRecorder(), req)

		require.True(t, gotOK)
		assert.Equal(t, actorID, gotActor.ID)
		assert.Equal(t, "Agent Silva", gotActor.Name)
	})

	t.Run("absent header leaves context empty", func(t *testing.T) {
		gotOK = true
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/appointments", nil))
		assert.False(t, gotOK)
	})

	t.Run("malformed header rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/appointments", nil)
		req.Header.Set("X-Actor-ID", "not-a-uuid")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRequireActor(t *testing.T) {
	rec := httptest.NewRecorder()
	_, ok := requireActor(rec, httptest.NewRequest("POST", "/appointments", nil))

	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestParsePositiveInt(t *testing.T) {
	n, err := parsePositiveInt("42")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = parsePositiveInt("-1")
	assert.Error(t, err)

	_, err = parsePositiveInt("12a")
	assert.Error(t, err)

	_, err = parsePositiveInt("")
	assert.Error(t, err)
}
