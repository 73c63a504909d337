package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zgr-ai/sow-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a read-only HTTP API over stored analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "OPTIONS"},
		}))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			if err := st.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/api/analyses", func(w http.ResponseWriter, r *http.Request) {
			filter, err := searchFilterFromQuery(r)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			recs, err := st.Search(r.Context(), filter)
			if err != nil {
				zap.L().Error("analysis search failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "search failed"})
				return
			}
			writeJSON(w, http.StatusOK, recs)
		})

		r.Get("/api/analyses/{noticeID}", func(w http.ResponseWriter, r *http.Request) {
			noticeID := chi.URLParam(r, "noticeID")
			rec, err := st.GetActive(r.Context(), noticeID)
			if err != nil {
				zap.L().Error("analysis lookup failed",
					zap.String("notice_id", noticeID),
					zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
				return
			}
			if rec == nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active analysis"})
				return
			}
			writeJSON(w, http.StatusOK, rec)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		if port == 0 {
			port = 8080
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
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
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func searchFilterFromQuery(r *http.Request) (store.SearchFilter, error) {
	q := r.URL.Query()
	filter := store.SearchFilter{
		SetupDeadlineBefore: q.Get("deadline_before"),
		PeriodStartPrefix:   q.Get("period_start"),
		OrderBy:             q.Get("order_by"),
		ActiveOnly:          true,
	}
	if q.Get("active_only") == "false" {
		filter.ActiveOnly = false
	}

	intParams := map[string]*int{
		"min_capacity":       &filter.MinGeneralSessionCapacity,
		"min_breakout_rooms": &filter.MinBreakoutRooms,
		"min_rooms":          &filter.MinRoomsPerNight,
		"limit":              &filter.Limit,
		"offset":             &filter.Offset,
	}
	for name, dest := range intParams {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filter, eris.Errorf("invalid %s: %q", name, raw)
		}
		*dest = n
	}
	return filter, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
