package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/teabrew/api/httpx"
	"github.com/kilianp07/teabrew/config"
	"github.com/kilianp07/teabrew/core/factory"
	"github.com/kilianp07/teabrew/core/dispatch/logging"
	"github.com/kilianp07/teabrew/core/model"
	"github.com/kilianp07/teabrew/infra/mqtt"
)

func call(t *testing.T, h http.Handler, method, url, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	if user != "" {
		req.Header.Set(httpx.UserHeader, user)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestServiceBrewFlow(t *testing.T) {
	cfg := config.Default()
	cfg.Dispatch.Log = logging.Config{Backend: logging.BackendJSONL, Path: filepath.Join(t.TempDir(), "dispatch.jsonl")}
	require.NoError(t, cfg.Validate())
	svc, err := New(cfg)
	require.NoError(t, err)
	defer svc.Close()
	h := svc.Handler()
	ctx := context.Background()

	rr := call(t, h, http.MethodPost, "/api/machines", "1", `{"machine_id":"kettle"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rr = call(t, h, http.MethodPut, "/api/machines/kettle/containers/1", "1", `{"tea":3,"amount":100}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = call(t, h, http.MethodPost, "/api/recipes", "1", `{"recipe_name":"Sencha","tea_type":3,"tea_portion":200}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var r model.Recipe
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &r))

	// a fresh machine is offline, has no mug and no water
	rr = call(t, h, http.MethodPost, "/api/brew", "1", `{"recipe_id":`+itoa(r.ID)+`}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var rejected struct{ Detail []string }
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rejected))
	assert.Equal(t, []string{"Machine is not connected.", "Mug is not ready.", "Not enough water."}, rejected.Detail)

	require.NoError(t, svc.Machines.UpdateStatus(ctx, model.Machine{ID: "kettle", OwnerID: 1, Connected: true, MugReady: true, Water: 260}))
	rr = call(t, h, http.MethodPost, "/api/brew", "1", `{"recipe_id":`+itoa(r.ID)+`}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{}`, rr.Body.String())

	q, ok := svc.queue.(*mqtt.RecordingQueue)
	require.True(t, ok)
	jobs := q.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "kettle", jobs[0].MachineID)
	assert.Equal(t, 200.0, jobs[0].Portion)

	rr = call(t, h, http.MethodPost, "/api/brew", "1", `{"recipe_id":999}`)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"detail":"Recipe does not exist."}`, rr.Body.String())

	rr = call(t, h, http.MethodGet, "/api/dispatch/logs?machine_id=kettle", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var logs []logging.LogRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &logs))
	assert.Len(t, logs, 2)
}

func TestServiceRequiresUser(t *testing.T) {
	svc, err := New(config.Default())
	require.NoError(t, err)
	defer svc.Close()
	rr := call(t, svc.Handler(), http.MethodGet, "/api/recipes", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = call(t, svc.Handler(), http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestNewRejectsUnknownSink(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Sinks = append(cfg.Metrics.Sinks, factoryConfig("carrier-pigeon"))
	_, err := New(cfg)
	assert.Error(t, err)
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func factoryConfig(typ string) factory.ModuleConfig { return factory.ModuleConfig{Type: typ} }
