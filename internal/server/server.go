package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"statsvault/internal/blobstore"
	"statsvault/internal/store"
	"statsvault/internal/vault"
)

const (
	allowRemoteEnvKey = "STATSVAULT_ALLOW_REMOTE"
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 10 * time.Second

	adminMaxFailures   = 5
	adminFailureWindow = time.Minute
	adminBlockDuration = 5 * time.Minute

	// Base64 plus the JSON envelope.
	pushEnvelopeOverhead = 1024
)

// InfoSource reports registry statistics for /v1/info.
type InfoSource interface {
	StoreInfo(ctx context.Context) (store.StoreInfo, error)
}

// Options carries the optional server collaborators.
type Options struct {
	Info            InfoSource
	DBPath          string
	BlobBackend     string
	MaxPayloadBytes int64
	AdminTokenHash  string
	TLSCertFile     string
	TLSKeyFile      string
	Gatherer        prometheus.Gatherer
	Logger          *slog.Logger
}

// Server wraps HTTP handlers for the statsvault API.
type Server struct {
	addr           string
	vault          *vault.Coordinator
	info           InfoSource
	dbPath         string
	blobBackend    string
	maxPayload     int64
	adminTokenHash string
	tlsCertFile    string
	tlsKeyFile     string
	gatherer       prometheus.Gatherer
	logger         *slog.Logger
	adminLimiter   *authFailureLimiter
	startedAt      time.Time
}

// New creates a new server instance.
func New(addr string, coord *vault.Coordinator, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	maxPayload := opts.MaxPayloadBytes
	if maxPayload <= 0 {
		maxPayload = blobstore.DefaultMaxPayloadBytes
	}

	return &Server{
		addr:           addr,
		vault:          coord,
		info:           opts.Info,
		dbPath:         opts.DBPath,
		blobBackend:    opts.BlobBackend,
		maxPayload:     maxPayload,
		adminTokenHash: strings.TrimSpace(opts.AdminTokenHash),
		tlsCertFile:    strings.TrimSpace(opts.TLSCertFile),
		tlsKeyFile:     strings.TrimSpace(opts.TLSKeyFile),
		gatherer:       gatherer,
		logger:         logger,
		adminLimiter:   newAuthFailureLimiter(adminMaxFailures, adminFailureWindow, adminBlockDuration),
		startedAt:      time.Now().UTC(),
	}
}

// Handler returns the full HTTP handler including request logging.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.routes())
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if (s.tlsCertFile == "") != (s.tlsKeyFile == "") {
		return fmt.Errorf("tls requires both certificate and key files")
	}

	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if s.tlsCertFile != "" {
			s.log().Info("starting server", "addr", s.addr, "tls", true)
			errCh <- server.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile)
			return
		}
		s.log().Info("starting server", "addr", s.addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log().Info("shutting down server", "addr", s.addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
