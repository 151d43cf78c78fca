package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"wabridge/internal/constants"
	"wabridge/internal/metrics"
	"wabridge/internal/middleware"
	"wabridge/internal/models"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// relayService is the slice of the relay the webhook layer needs.
type relayService interface {
	HandleChannelUpdate(ctx context.Context, update *models.ChannelUpdate) error
	HandleTeamPost(ctx context.Context, post *models.TeamPost) error
}

// webhookSecrets carries the per-intake shared secrets. Empty secrets skip
// verification outside production.
type webhookSecrets struct {
	cloudAppSecret string
	wahaSecret     string
	telegramSecret string
}

func secretsFromEnv() webhookSecrets {
	return webhookSecrets{
		cloudAppSecret: os.Getenv("WABRIDGE_CLOUD_APP_SECRET"),
		wahaSecret:     os.Getenv("WABRIDGE_WAHA_WEBHOOK_SECRET"),
		telegramSecret: os.Getenv("WABRIDGE_TELEGRAM_WEBHOOK_SECRET"),
	}
}

type Server struct {
	router      *mux.Router
	logger      *logrus.Logger
	relay       relayService
	cfg         func() *models.Config
	secrets     webhookSecrets
	server      *http.Server
}

func NewServer(cfg func() *models.Config, relay relayService, logger *logrus.Logger) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		logger:  logger,
		relay:   relay,
		cfg:     cfg,
		secrets: secretsFromEnv(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	whatsapp := s.router.PathPrefix("/webhook/whatsapp").Subrouter()
	whatsapp.Use(middleware.WebhookObservability(s.logger, "cloud"))
	whatsapp.HandleFunc("", s.handleCloudVerify()).Methods(http.MethodGet)
	whatsapp.HandleFunc("", s.handleCloudWebhook()).Methods(http.MethodPost)

	waha := s.router.PathPrefix("/webhook/waha").Subrouter()
	waha.Use(middleware.WebhookObservability(s.logger, "waha"))
	waha.HandleFunc("", s.handleWahaWebhook()).Methods(http.MethodPost)

	telegram := s.router.PathPrefix("/webhook/telegram").Subrouter()
	telegram.Use(middleware.WebhookObservability(s.logger, "telegram"))
	telegram.HandleFunc("", s.handleTelegramWebhook()).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	port := s.cfg().Server.Port
	if port == 0 {
		port = constants.DefaultServerPort
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.WithField("port", port).Info("Starting server")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(metrics.Default().Snapshot())
	}
}

// handleCloudVerify answers the Cloud API subscription handshake: echo
// hub.challenge back when hub.verify_token matches the configured token.
func (s *Server) handleCloudVerify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := r.URL.Query().Get("hub.mode")
		token := r.URL.Query().Get("hub.verify_token")
		challenge := r.URL.Query().Get("hub.challenge")

		expected := s.cfg().WhatsApp.Cloud.VerifyToken
		if mode != "subscribe" || expected == "" || token != expected {
			s.logger.WithField("mode", mode).Warn("Cloud webhook verification rejected")
			http.Error(w, "verification failed", http.StatusForbidden)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
	}
}

func (s *Server) handleCloudWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := verifyCloudSignature(r, s.secrets.cloudAppSecret)
		if err != nil {
			s.logger.WithError(err).Warn("Cloud webhook signature verification failed")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		updates, err := normalizeCloudPayload(body)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to parse Cloud webhook payload")
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		for _, update := range updates {
			if err := s.relay.HandleChannelUpdate(r.Context(), update); err != nil {
				s.logger.WithError(err).Error("Failed to handle Cloud update")
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) handleWahaWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := verifyWahaSignature(r, s.secrets.wahaSecret)
		if err != nil {
			s.logger.WithError(err).Warn("WAHA webhook signature verification failed")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		update, err := normalizeWahaPayload(body)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to parse WAHA webhook payload")
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if update == nil {
			// Session events and own outgoing messages carry nothing to relay.
			w.WriteHeader(http.StatusOK)
			return
		}

		if err := s.relay.HandleChannelUpdate(r.Context(), update); err != nil {
			s.logger.WithError(err).Error("Failed to handle WAHA update")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) handleTelegramWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := verifyTelegramSecret(r, s.secrets.telegramSecret); err != nil {
			s.logger.WithError(err).Warn("Telegram webhook secret verification failed")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		post, err := normalizeTelegramPayload(r.Body)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to parse Telegram update")
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if post == nil {
			// Not a group message: callback queries, channel posts, etc.
			w.WriteHeader(http.StatusOK)
			return
		}

		if err := s.relay.HandleTeamPost(r.Context(), post); err != nil {
			s.logger.WithError(err).Error("Failed to handle team post")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}
