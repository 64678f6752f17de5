package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigrise-data/bigrise/internal/collect"
	"github.com/bigrise-data/bigrise/internal/config"
	"github.com/bigrise-data/bigrise/internal/model"
	"github.com/bigrise-data/bigrise/internal/notify"
	"github.com/bigrise-data/bigrise/internal/pipeline"
	"github.com/bigrise-data/bigrise/internal/store"
)

type noopCollector struct{ name string }

func (n *noopCollector) Name() string                         { return n.name }
func (n *noopCollector) ShouldRun(time.Time, *time.Time) bool { return false }
func (n *noopCollector) Collect(context.Context, collect.Params) (*collect.Result, error) {
	return &collect.Result{}, nil
}

func newServeEnv(t *testing.T) *pipelineEnv {
	t.Helper()

	c := &config.Config{
		Store: config.StoreConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "api.db")},
		Data:  config.DataConfig{DataDir: t.TempDir(), OutDir: t.TempDir(), Timezone: "Asia/Seoul"},
		Match: config.MatchConfig{WindowDays: 7},
	}

	st, err := store.Open(context.Background(), c.Store)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := &collect.Registry{}
	reg.Register(&noopCollector{name: "news"})
	engine := collect.NewEngine(st, reg)

	p, err := pipeline.New(c, st, engine, notify.New(config.NotifyConfig{}))
	require.NoError(t, err)

	return &pipelineEnv{Store: st, Registry: reg, Engine: engine, Pipeline: p}
}

func TestRouter_Healthz(t *testing.T) {
	router := newRouter(newServeEnv(t), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_RunsListAndShow(t *testing.T) {
	env := newServeEnv(t)
	router := newRouter(env, nil)

	run, err := env.Store.CreateRun(context.Background(), "20251110", "api")
	require.NoError(t, err)
	require.NoError(t, env.Store.FinishRun(context.Background(), run.ID, model.RunStatusCompleted, ""))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Runs []model.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, run.ID, list.Runs[0].ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+run.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, model.RunStatusCompleted, got.Status)
}

func TestRouter_RunShowNotFound(t *testing.T) {
	router := newRouter(newServeEnv(t), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Collectors(t *testing.T) {
	router := newRouter(newServeEnv(t), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/collectors", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Collectors []struct {
			Name        string     `json:"name"`
			LastSuccess *time.Time `json:"last_success"`
		} `json:"collectors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Collectors, 1)
	assert.Equal(t, "news", got.Collectors[0].Name)
	assert.Nil(t, got.Collectors[0].LastSuccess)
}

func TestRouter_PostRunBadBody(t *testing.T) {
	router := newRouter(newServeEnv(t), nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader("{not json"))
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
