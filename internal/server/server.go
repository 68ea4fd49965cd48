// Package server exposes the HTTP surface: the OAuth redirect/callback
// pipeline and the scripted-browser fallback, each a strict linear
// sequence of collaborator calls.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/picvault/picvault/internal/config"
	"github.com/picvault/picvault/internal/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ProfileClient retrieves a profile picture through the provider's API.
type ProfileClient interface {
	LoginURL() string
	ExchangeCode(ctx context.Context, code string) (string, error)
	ProfilePictureURL(ctx context.Context, token string) (string, error)
	DownloadImage(ctx context.Context, imageURL string) ([]byte, error)
}

// ObjectStore stores picture bytes and mints signed retrieval URLs.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Presign(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// BrowserSession is one scripted browser login/capture session. Login and
// CapturePicture signal failure through their return values; Close must be
// reachable from every state.
type BrowserSession interface {
	Login(email, password string) bool
	CapturePicture() []byte
	Close()
}

// SessionFactory launches a fresh browser session. One session per
// request; no pooling.
type SessionFactory func() (BrowserSession, error)

// Server wires the collaborators behind the HTTP endpoints. Collaborators
// are injected explicitly so tests can substitute them.
type Server struct {
	cfg      *config.Config
	profile  ProfileClient
	store    ObjectStore
	sessions SessionFactory

	// browserSem bounds concurrent browser sessions; each one is a full
	// Chrome process.
	browserSem *semaphore.Weighted

	httpServer *http.Server
}

type Params struct {
	fx.In

	Config   *config.Config
	Profile  ProfileClient
	Store    ObjectStore
	Sessions SessionFactory
}

func New(p Params) *Server {
	return &Server{
		cfg:        p.Config,
		profile:    p.Profile,
		store:      p.Store,
		sessions:   p.Sessions,
		browserSem: semaphore.NewWeighted(int64(p.Config.Browser.MaxSessions)),
	}
}

// Handler builds the route table wrapped in the logging middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/download-picture", s.handleLoginRedirect)
	mux.HandleFunc("GET /api/callback", s.handleCallback)
	mux.HandleFunc("POST /api/automate/download-picture", s.handleAutomatedDownload)
	mux.HandleFunc("GET /health", s.handleHealth)

	return RequestLogging(mux)
}

// Start begins serving and blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	logger.Info("Starting server",
		zap.String("address", addr),
		zap.Int("browser_session_cap", s.cfg.Browser.MaxSessions),
	)

	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	logger.Info("Shutting down server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}

// Module provides the HTTP server dependencies
var Module = fx.Module("server",
	fx.Provide(
		New,
	),
)
