package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"reactlab/internal/config"
	"reactlab/internal/db"
)

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/start", s.handleStart)
	mux.HandleFunc("POST /api/consent", s.handleConsent)
	mux.HandleFunc("POST /api/submit", s.handleSubmit)
	mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /api/leaderboard/rt60", s.handleRT60Board)
	mux.HandleFunc("GET /api/leaderboard/cps", s.handleCPSBoard)
	mux.HandleFunc("POST /api/rt60", s.handleRT60Submit)
	mux.HandleFunc("POST /api/cps", s.handleCPSSubmit)
	mux.HandleFunc("DELETE /api/participants/{id}", s.adminOnly(s.handleDeleteParticipant))
	mux.HandleFunc("GET /api/export.csv", s.handleExport)
	mux.HandleFunc("GET /api/live", s.handleLive)
	mux.HandleFunc("GET /api/play", s.handlePlay)
	return mux
}

func Run() error {
	cfg := config.Load()
	srv := New(cfg)

	// Optional database connection
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("database connect failed, running without storage")
		} else {
			if err := database.Migrate(); err != nil {
				log.Error().Err(err).Msg("migration failed")
			}
			srv.Store = newDataStore(database)
			srv.Summaries = make(chan summaryJob, 256)
			go summaryWriter(srv.Store, srv.Bus, srv.Summaries)
		}
	} else {
		log.Warn().Msg("DATABASE_URL not set, running without storage")
	}

	go srv.Hub.Run(srv.Bus)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "X-Admin-Token"},
	})
	handler := requestLogger(securityHeaders(c.Handler(srv.routes())))

	httpSrv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	log.Info().Str("port", cfg.Port).Msg("server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}
