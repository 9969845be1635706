package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parut/agri-advisor/internal/aggregate"
	"github.com/parut/agri-advisor/internal/model"
	"github.com/parut/agri-advisor/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the advisory HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func newRouter(env *appEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/aggregate", func(w http.ResponseWriter, req *http.Request) {
		var body aggregate.Request
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if demo, _ := strconv.ParseBool(req.URL.Query().Get("demo")); demo {
			body.Demo = true
		}

		pack, err := env.Service.Aggregate(req.Context(), body)
		if err != nil {
			writeAggregateError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pack)
	})

	r.Post("/api/advise", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			aggregate.Request
			To string `json:"to,omitempty"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		gen, err := env.requireGenerator()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}

		pack, err := env.Service.Aggregate(req.Context(), body.Request)
		if err != nil {
			writeAggregateError(w, err)
			return
		}

		result, err := gen.Generate(req.Context(), pack)
		if err != nil {
			zap.L().Error("report generation failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "report generation failed")
			return
		}

		adv := &model.Advisory{
			Profile:        pack.Profile,
			IssuedAt:       pack.IssuedAt,
			DetailedReport: result.DetailedReport,
			Brief:          result.Brief,
			Provenance:     pack.Provenance,
		}
		if err := env.Store.SaveAdvisory(req.Context(), adv); err != nil {
			zap.L().Error("save advisory failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "save advisory failed")
			return
		}

		if body.To != "" {
			if _, err := env.SMS.Send(req.Context(), body.To, result.Brief); err != nil {
				zap.L().Error("sms delivery failed", zap.String("advisory_id", adv.ID), zap.Error(err))
			}
		}

		writeJSON(w, http.StatusOK, adv)
	})

	r.Get("/api/advisories", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		advisories, err := env.Store.ListAdvisories(req.Context(), store.ListFilter{
			Region: q.Get("region"),
			Crop:   q.Get("crop"),
		})
		if err != nil {
			zap.L().Error("list advisories failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list advisories failed")
			return
		}
		if advisories == nil {
			advisories = []model.Advisory{}
		}
		writeJSON(w, http.StatusOK, advisories)
	})

	r.Get("/api/advisories/{id}", func(w http.ResponseWriter, req *http.Request) {
		adv, err := env.Store.GetAdvisory(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			if errors.Is(err, store.ErrAdvisoryNotFound) {
				writeError(w, http.StatusNotFound, "advisory not found")
				return
			}
			zap.L().Error("get advisory failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "get advisory failed")
			return
		}
		writeJSON(w, http.StatusOK, adv)
	})

	return r
}

// requestLogger tags every request with a UUID and logs its outcome.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requestID := uuid.New().String()
		w.Header().Set("X-Request-Id", requestID)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)

		zap.L().Info("request complete",
			zap.String("request_id", requestID),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// writeAggregateError maps aggregation failures to HTTP statuses: malformed
// and unknown profiles and missing demo data are client errors, empty
// upstreams are a service condition.
func writeAggregateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, aggregate.ErrInvalidProfile):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, aggregate.ErrNoCoverage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, aggregate.ErrNoDemoData):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, aggregate.ErrUpstreamUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		zap.L().Error("aggregation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "aggregation failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
