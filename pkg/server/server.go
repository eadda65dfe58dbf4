package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/heathcliff26/hookguard/pkg/client"
	"github.com/heathcliff26/hookguard/pkg/config"
	"github.com/heathcliff26/hookguard/pkg/ipfilter"
	"github.com/heathcliff26/hookguard/pkg/webhook"
	"github.com/heathcliff26/simple-fileserver/pkg/middleware"
)

type Server struct {
	addr     string
	ssl      config.SSLConfig
	github   *client.GithubClient
	pipeline *webhook.Pipeline
	// nil when source address validation is disabled
	ranges *ipfilter.RangeCache
}

func NewServer(cfg config.Config, github *client.GithubClient) (*Server, error) {
	resolver := ipfilter.ClientIPResolver{TrustProxy: cfg.Server.TrustProxy}

	s := &Server{
		addr:   ":" + strconv.Itoa(cfg.Server.Port),
		ssl:    cfg.Server.SSL,
		github: github,
	}

	var source webhook.SourceValidator
	if cfg.IPValidation.Enabled {
		fetcher, err := ipfilter.NewGitHubMetaFetcher(cfg.Github.API, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create meta fetcher: %w", err)
		}
		s.ranges = ipfilter.NewRangeCache(fetcher, time.Duration(cfg.IPValidation.TTL))
		policy := ipfilter.PolicyFromBool(cfg.IPValidation.FailOpen)
		validator := ipfilter.NewValidator(s.ranges, resolver, policy)
		// The pipeline resolves the caller address the same way the validator does
		resolver = validator.Resolver()
		source = validator
		slog.Info("Webhook source address validation enabled", slog.String("policy", policy.String()), slog.Bool("trustProxy", resolver.TrustProxy))
	}

	s.pipeline = webhook.NewPipeline(cfg.Github.WebhookSecret, webhook.NewOwnerAuthorizer(cfg.Github.AllowedOwners), resolver, source)
	return s, nil
}

// Handle incoming github webhook events
// URL: POST /webhook
func (s *Server) webhookHandler(res http.ResponseWriter, req *http.Request) {
	delivery, err := s.pipeline.Verify(req.Context(), req)
	if err != nil {
		status := statusForError(err)
		slog.Error("Rejected webhook request",
			slog.Int("status", status),
			slog.String("delivery", req.Header.Get("X-GitHub-Delivery")),
			slog.String("err", err.Error()),
		)
		res.WriteHeader(status)
		return
	}

	logger := slog.With(slog.String("event", delivery.Event), slog.String("delivery", delivery.DeliveryID))

	switch delivery.Event {
	case "pull_request":
		logger.Info("Handling pull request event")
		var event client.PullRequestEvent
		err = json.Unmarshal(delivery.Body, &event)
		if err != nil {
			logger.Error("Failed to unmarshal pull request event", slog.String("err", err.Error()))
			res.WriteHeader(http.StatusBadRequest)
			return
		}
		err = s.github.HandlePullRequestEvent(req.Context(), event)
	case "check_run":
		logger.Info("Handling check run event")
		var event client.CheckRunEvent
		err = json.Unmarshal(delivery.Body, &event)
		if err != nil {
			logger.Error("Failed to unmarshal check-run event", slog.String("err", err.Error()))
			res.WriteHeader(http.StatusBadRequest)
			return
		}
		err = s.github.HandleCheckRunEvent(req.Context(), event)
	default:
		logger.Warn("Unhandled GitHub event")
	}

	if err != nil {
		logger.Error("Failed to handle event", slog.String("err", err.Error()))
		res.WriteHeader(http.StatusInternalServerError)
		return
	}
	res.WriteHeader(http.StatusOK)
}

// Translate a rejection of the webhook pipeline into a response status
func statusForError(err error) int {
	var shapeErr *webhook.ShapeError
	var authzErr *webhook.AuthorizationError

	switch {
	case errors.As(err, &shapeErr):
		return http.StatusBadRequest
	case errors.As(err, &authzErr):
		return http.StatusForbidden
	case errors.Is(err, webhook.ErrAuthenticity):
		return http.StatusUnauthorized
	case errors.Is(err, webhook.ErrSourceNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, webhook.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadRequest
	}
}

// Return a health status of the server
// URL: /healthz
func (s *Server) handleHealthCheck(rw http.ResponseWriter, _ *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	_, err := rw.Write([]byte(`{"status":"ok"}`))
	if err != nil {
		slog.Error("Failed to write health check response", slog.String("err", err.Error()))
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
}

// Return the router of the server
func (s *Server) Handler() http.Handler {
	router := http.NewServeMux()
	router.HandleFunc("POST /webhook", s.webhookHandler)
	router.HandleFunc("/healthz", s.handleHealthCheck)
	return middleware.Logging(router)
}

// Drop the cached webhook source ranges whenever SIGHUP is received
func (s *Server) invalidateOnHangup() func() {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

	go func() {
		for range hup {
			slog.Info("Received SIGHUP, invalidating webhook source ranges")
			s.ranges.Invalidate()
		}
	}()

	return func() {
		signal.Stop(hup)
		close(hup)
	}
}

// Starts the server and exits with error if that fails
func (s *Server) Run() error {
	if s.ranges != nil {
		stop := s.invalidateOnHangup()
		defer stop()
	}

	server := http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	var err error
	if s.ssl.Enabled {
		slog.Info("Starting server", slog.String("addr", s.addr), slog.String("sslKey", s.ssl.Key), slog.String("sslCert", s.ssl.Cert))
		err = server.ListenAndServeTLS(s.ssl.Cert, s.ssl.Key)
	} else {
		slog.Info("Starting server", slog.String("addr", s.addr))
		err = server.ListenAndServe()
	}

	// This just means the server was closed after running
	if errors.Is(err, http.ErrServerClosed) {
		slog.Info("Server closed, exiting")
		return nil
	}
	return fmt.Errorf("failed to start server: %w", err)
}
