package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"image-drop/internal/gallery"
	"image-drop/internal/presence"
	"image-drop/internal/store"
)

// Config carries listener settings and the collaborators the handlers use.
type Config struct {
	Addr              string // e.g. ":5000"
	ReadHeaderTimeout time.Duration

	// MaxUploadBytes caps POST /upload bodies. 0 disables the cap.
	MaxUploadBytes int64
	MaxBatch       int

	// UploadRate requests per UploadWindow per client IP. 0 disables limiting.
	UploadRate   int
	UploadWindow time.Duration

	// TrustProxyHeaders takes the client IP from X-Forwarded-For or
	// X-Real-IP. Leave it off unless a reverse proxy sets those headers.
	TrustProxyHeaders bool

	AllowedOrigins []string

	Public            gallery.Addresser
	PublicFromRequest bool

	Store    store.ContentStore
	Presence *presence.Broadcaster

	// Recorder and Catalog are optional.
	Recorder gallery.Recorder
	Catalog  Pinger

	// Metrics is optional; nil disables /metrics.
	Metrics *Metrics
}

type Server struct {
	cfg        Config
	httpServer *http.Server
	limiter    *rateLimiter
}

// New builds the routes and middleware around cfg's collaborators.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if cfg.Presence == nil {
		cfg.Presence = presence.NewBroadcaster()
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = gallery.DefaultMaxBatch
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}

	opts := []gallery.IngesterOption{gallery.WithMaxBatch(cfg.MaxBatch)}
	if cfg.Recorder != nil {
		opts = append(opts, gallery.WithRecorder(cfg.Recorder))
	}
	ingester := gallery.NewIngester(cfg.Store, opts...)
	lister := gallery.NewLister(cfg.Store)

	s := &Server{cfg: cfg}

	var upload http.Handler = cfg.uploadHandler(ingester, cfg.Metrics)
	if cfg.UploadRate > 0 {
		s.limiter = newRateLimiter(cfg.UploadRate, cfg.UploadWindow, cfg.TrustProxyHeaders)
		upload = s.limiter.middleware(upload)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /upload", upload)
	mux.Handle("GET /get-images", compressJSON(cfg.imagesHandler(lister, cfg.Metrics)))
	mux.Handle("GET /uploads/{id}", cfg.contentHandler(cfg.Store))
	mux.Handle("GET /guest", compressJSON(guestHandler(cfg.Presence)))
	mux.Handle("GET /ws", presence.HandleWebSocket(cfg.Presence))
	mux.HandleFunc("GET /health", s.HandleHealth)
	mux.HandleFunc("GET /live", s.HandleLive)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	// Wrap middleware: requestID -> logging -> cors -> security headers -> mux
	var handler http.Handler = mux
	handler = securityHeadersMiddleware(handler)
	handler = corsMiddleware(cfg.AllowedOrigins)(handler)
	handler = loggingMiddleware(cfg.Metrics, cfg.TrustProxyHeaders)(handler)
	handler = requestIDMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight ones. Hijacked
// websocket connections are not tracked by net/http and close with the
// process.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.close()
	}
	return s.httpServer.Shutdown(ctx)
}

// Close releases background goroutines without waiting for requests.
func (s *Server) Close() error {
	if s.limiter != nil {
		s.limiter.close()
	}
	return s.httpServer.Close()
}
