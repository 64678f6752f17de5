package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bigrise-data/bigrise/internal/model"
	"github.com/bigrise-data/bigrise/internal/pipeline"
	"github.com/bigrise-data/bigrise/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for runs and collector status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env, cfg.Server.AllowedOrigins),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(env *pipelineEnv, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			runs, err := env.Store.ListRuns(req.Context(), store.RunFilter{
				Status:     model.RunStatus(q.Get("status")),
				TargetDate: q.Get("date"),
				Limit:      20,
			})
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
		})

		r.Get("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
			run, err := env.Store.GetRun(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeJSON(w, http.StatusOK, run)
		})

		r.Post("/runs", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				TargetDate string   `json:"target_date"`
				Only       []string `json:"only"`
				Force      bool     `json:"force"`
			}
			if req.Body != nil && req.ContentLength != 0 {
				if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
					writeError(w, http.StatusBadRequest, eris.Wrap(err, "decode request body"))
					return
				}
			}

			// The run outlives the request; detach it from the request
			// context and report it through the store and notifier.
			go func() {
				run, err := env.Pipeline.Run(context.Background(), body.TargetDate, "api", pipeline.RunOpts{
					Only:  body.Only,
					Force: body.Force,
				})
				if err != nil {
					zap.L().Error("api-triggered run failed", zap.Error(err))
					return
				}
				zap.L().Info("api-triggered run finished",
					zap.String("run_id", run.ID),
					zap.String("status", string(run.Status)),
				)
			}()

			writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		})

		r.Get("/collectors", func(w http.ResponseWriter, req *http.Request) {
			type collectorStatus struct {
				Name        string     `json:"name"`
				LastSuccess *time.Time `json:"last_success,omitempty"`
			}
			var out []collectorStatus
			for _, name := range env.Registry.AllNames() {
				last, err := env.Store.LastCollectSuccess(req.Context(), name)
				if err != nil {
					writeError(w, http.StatusInternalServerError, err)
					return
				}
				out = append(out, collectorStatus{Name: name, LastSuccess: last})
			}
			writeJSON(w, http.StatusOK, map[string]any{"collectors": out})
		})

		r.Get("/matches", func(w http.ResponseWriter, req *http.Request) {
			summaries, err := env.Store.ListMatchSummaries(req.Context(), 20)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"matches": summaries})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
