// Package webserver exposes usage reports over HTTP and a WebSocket stream.
package webserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agusx1211/usagebar/internal/debug"
	"github.com/agusx1211/usagebar/internal/usage"
)

// DefaultPushInterval is how often /ws/usage pushes a fresh report.
const DefaultPushInterval = time.Minute

// MinPushInterval bounds how often a client may ask for fresh passes.
const MinPushInterval = 5 * time.Second

// ReportFunc runs one fresh aggregation pass for a filter.
type ReportFunc func(ctx context.Context, filter usage.Filter) usage.Report

// Options configures web server behavior.
type Options struct {
	Host         string
	Port         int
	TLSMode      string
	CertFile     string
	KeyFile      string
	AuthToken    string
	RateLimit    float64
	PushInterval time.Duration
}

// Server hosts the usage API and the WebSocket report stream.
type Server struct {
	fetch        ReportFunc
	httpServer   *http.Server
	port         int
	host         string
	tlsMode      string
	certFile     string
	keyFile      string
	authToken    string
	rateLimit    float64
	pushInterval time.Duration
}

// New constructs a web server that answers every request with a fresh pass.
func New(fetch ReportFunc, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "127.0.0.1"
	}

	port := opts.Port
	if port <= 0 {
		port = 8080
	}

	srv := &Server{
		fetch:        fetch,
		host:         host,
		port:         port,
		tlsMode:      strings.TrimSpace(opts.TLSMode),
		certFile:     strings.TrimSpace(opts.CertFile),
		keyFile:      strings.TrimSpace(opts.KeyFile),
		authToken:    strings.TrimSpace(opts.AuthToken),
		rateLimit:    opts.RateLimit,
		pushInterval: opts.PushInterval,
	}
	if srv.pushInterval <= 0 {
		srv.pushInterval = DefaultPushInterval
	}

	mux := http.NewServeMux()
	srv.setupRoutes(mux)

	handler := corsMiddleware(logMiddleware(rateLimitMiddleware(srv.rateLimit, authMiddleware(srv.authToken, mux))))
	srv.httpServer = &http.Server{
		Addr:              srv.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return srv
}

// Start starts the server in a background goroutine and returns immediately.
func (srv *Server) Start() error {
	if srv.httpServer == nil {
		return fmt.Errorf("webserver not initialized")
	}

	if srv.tlsMode != "" {
		var cert tls.Certificate
		var err error

		switch srv.tlsMode {
		case "self-signed":
			cert, err = generateSelfSignedCert(srv.host)
			if err != nil {
				return fmt.Errorf("generating self-signed certificate: %w", err)
			}
		case "custom":
			cert, err = tls.LoadX509KeyPair(srv.certFile, srv.keyFile)
			if err != nil {
				return fmt.Errorf("loading TLS certificate: %w", err)
			}
		default:
			return fmt.Errorf("unsupported TLS mode: %q", srv.tlsMode)
		}

		srv.httpServer.TLSConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}
	}

	ln, err := net.Listen("tcp", srv.Addr())
	if err != nil {
		return err
	}

	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		srv.port = tcpAddr.Port
		srv.httpServer.Addr = srv.Addr()
	}

	go func() {
		var err error
		if srv.tlsMode != "" {
			err = srv.httpServer.ServeTLS(ln, "", "")
		} else {
			err = srv.httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			debug.LogKV("webserver", "server stopped with error", "error", err)
		}
	}()

	return nil
}

// Shutdown gracefully stops the HTTP server.
func (srv *Server) Shutdown(ctx context.Context) error {
	if srv.httpServer == nil {
		return nil
	}
	return srv.httpServer.Shutdown(ctx)
}

// Addr returns the bound host:port address.
func (srv *Server) Addr() string {
	return net.JoinHostPort(srv.host, strconv.Itoa(srv.port))
}

// Scheme returns the URL scheme for the running server.
func (srv *Server) Scheme() string {
	if srv.tlsMode != "" {
		return "https"
	}
	return "http"
}

// Handler exposes the full middleware chain, mainly for tests.
func (srv *Server) Handler() http.Handler {
	return srv.httpServer.Handler
}

func (srv *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", srv.handleHealth)
	mux.HandleFunc("GET /api/version", srv.handleVersion)
	mux.HandleFunc("GET /api/usage", srv.handleUsage)
	mux.HandleFunc("GET /ws/usage", srv.handleUsageWebSocket)
	mux.HandleFunc("GET /{$}", srv.handleUsageText)
}
