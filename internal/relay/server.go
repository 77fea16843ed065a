// Package relay serves the redirect landing page the provider sends the
// browser to, and forwards what it receives onto the login channel.
package relay

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/thellimist/oauthlink/internal/channel"
)

// LandingPath is where the provider redirects after consent.
const LandingPath = "/static/oauth.html"

// Publisher is the part of channel.Hub the server needs.
type Publisher interface {
	Publish(name string, msg channel.Message) bool
}

// Server listens for the provider redirect. The zero Addr listens on
// 127.0.0.1:0.
//
// Only requests whose Host names the listener, or one of Hosts, are
// published. Hosts lists the public host:port of a proxy that forwards the
// landing page here; X-Forwarded-Proto is honoured only with TrustForwarded.
type Server struct {
	Addr           string
	Hub            Publisher
	Log            *slog.Logger
	Limiter        *rate.Limiter
	Hosts          []string
	TrustForwarded bool

	listener net.Listener
	server   *http.Server
	once     sync.Once
}

// Listen binds the listening socket without serving, so Origin and
// RedirectURI are known before Serve runs.
func (s *Server) Listen() error {
	addr := s.Addr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	if s.Hub == nil {
		return fmt.Errorf("start relay server: no channel hub")
	}
	if s.Log == nil {
		s.Log = slog.Default()
	}
	if s.Limiter == nil {
		s.Limiter = rate.NewLimiter(rate.Limit(5), 10)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("start relay server: %w", err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+LandingPath, s.handleLanding)
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	s.Log.Debug("relay listening", "addr", ln.Addr().String())
	return nil
}

// Serve blocks until ctx is done, then shuts the server down gracefully.
// Listen must have been called.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.server.Serve(s.listener) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("relay server: %w", err)
	}
}

// Host returns the listener's host:port.
func (s *Server) Host() string {
	return s.listener.Addr().String()
}

// Origin returns the server's own origin, e.g. http://127.0.0.1:53121.
func (s *Server) Origin() string {
	return "http://" + s.Host()
}

// RedirectURI returns the landing page URL on this server.
func (s *Server) RedirectURI() string {
	return s.Origin() + LandingPath
}

// Close shuts the server down.
func (s *Server) Close() {
	s.once.Do(func() {
		if s.server != nil {
			s.server.Close()
		}
	})
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	if !s.Limiter.Allow() {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	if !s.allowedHost(r.Host) {
		s.Log.Warn("rejecting landing request for unknown host", "host", r.Host)
		http.Error(w, "unknown host", http.StatusMisdirectedRequest)
		return
	}

	q := r.URL.Query()
	msg := channel.Message{
		Origin:           RequestOrigin(r, s.TrustForwarded),
		State:            q.Get("state"),
		Code:             q.Get("code"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}

	if msg.Code == "" && msg.Error == "" {
		w.WriteHeader(http.StatusBadRequest)
		writePage(w, "Missing authorization code", "")
		return
	}

	delivered := s.Hub.Publish(channel.LoginChannel, msg)
	s.Log.Debug("landing page hit", "origin", msg.Origin, "delivered", delivered, "provider_error", msg.Error)

	switch {
	case !delivered:
		w.WriteHeader(http.StatusGone)
		writePage(w, "No login in progress", "Start the account link again.")
	case msg.Error != "":
		w.WriteHeader(http.StatusOK)
		writePage(w, "Authorization failed", msg.Error+": "+msg.ErrorDescription)
	default:
		w.WriteHeader(http.StatusOK)
		writePage(w, "Account linked", "This window will close.")
	}
}

// allowedHost reports whether host names this server: an entry of Hosts,
// or the listener's port on a loopback name or the listener's own address.
func (s *Server) allowedHost(host string) bool {
	for _, h := range s.Hosts {
		if strings.EqualFold(h, host) {
			return true
		}
	}

	name, port, err := net.SplitHostPort(host)
	if err != nil {
		return false
	}
	addr, ok := s.listener.Addr().(*net.TCPAddr)
	if !ok || port != strconv.Itoa(addr.Port) {
		return false
	}
	if strings.EqualFold(name, "localhost") {
		return true
	}
	ip := net.ParseIP(name)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.Equal(addr.IP) || addr.IP.IsUnspecified()
}

// RequestOrigin reports the origin a request was made against. With
// trustForwarded the scheme comes from X-Forwarded-Proto when present.
// The result is only as trustworthy as the client that sent the request.
func RequestOrigin(r *http.Request, trustForwarded bool) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); trustForwarded && p != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(p, ",")[0]))
	}
	return scheme + "://" + r.Host
}

func writePage(w http.ResponseWriter, title, detail string) {
	fmt.Fprintf(w, "<html><body><h1>%s</h1><p>%s</p><script>window.close()</script></body></html>",
		html.EscapeString(title), html.EscapeString(detail))
}
