package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetHealth() {
	health = &healthState{
		components: make(map[string]componentState),
		startedAt:  time.Now(),
	}
}

func TestGetHealth(t *testing.T) {
	t.Run("all components healthy", func(t *testing.T) {
		resetHealth()
		SetVersion("1.2.3")
		RegisterComponent("storage", true, "")
		RegisterComponent("mastership", true, "")

		status := GetHealth()
		assert.Equal(t, "healthy", status.Status)
		assert.Equal(t, "1.2.3", status.Version)
		assert.Len(t, status.Components, 2)
	})

	t.Run("one unhealthy component flips the status", func(t *testing.T) {
		resetHealth()
		RegisterComponent("storage", true, "")
		RegisterComponent("mastership", false, "lost quorum")

		status := GetHealth()
		assert.Equal(t, "unhealthy", status.Status)
		assert.Equal(t, "unhealthy: lost quorum", status.Components["mastership"])
	})

	t.Run("re-registering updates in place", func(t *testing.T) {
		resetHealth()
		RegisterComponent("storage", false, "opening")
		RegisterComponent("storage", true, "")

		assert.Equal(t, "healthy", GetHealth().Status)
	})
}

func TestGetReadiness(t *testing.T) {
	t.Run("unregistered critical components block readiness", func(t *testing.T) {
		resetHealth()
		RegisterComponent("storage", true, "")

		status := GetReadiness()
		assert.Equal(t, "not_ready", status.Status)
		assert.Equal(t, "not registered", status.Components["mastership"])
	})

	t.Run("ready once every critical component reports healthy", func(t *testing.T) {
		resetHealth()
		RegisterComponent("storage", true, "")
		RegisterComponent("mastership", true, "")
		RegisterComponent("api", true, "")

		status := GetReadiness()
		assert.Equal(t, "ready", status.Status)
		assert.Empty(t, status.Message)
	})
}

func TestHealthEndpoints(t *testing.T) {
	resetHealth()
	RegisterComponent("storage", true, "")
	RegisterComponent("mastership", false, "joining")

	t.Run("health returns 503 while unhealthy", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "unhealthy", body.Status)
	})

	t.Run("ready returns 503 while bootstrapping", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("live always returns 200", func(t *testing.T) {
		rec := httptest.NewRecorder()
		LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
