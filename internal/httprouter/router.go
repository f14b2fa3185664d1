// Package httprouter hands out HTTP sessions scoped to a service type, each
// bound to a configurable network interface so a deployment can split-tunnel
// some services over a VPN and others direct. Grounded on
// jmylchreest-tvarr's pkg/httpclient (manager/registry/client trio) for the
// resilient-session-pool shape and maciekish-split-vpn-webui's
// internal/util/network.go for interface classification.
package httprouter

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"go4.org/netipx"

	"github.com/tributary-ai/videofed/internal/obs"
)

// ServiceType tags a logical outbound consumer so the Router can bind it to
// its own interface and connection pool.
type ServiceType string

const (
	ServiceDiscord  ServiceType = "discord"
	ServiceYouTube  ServiceType = "youtube"
	ServiceRumble   ServiceType = "rumble"
	ServiceOdysee   ServiceType = "odysee"
	ServicePeerTube ServiceType = "peertube"
	ServiceGeneric  ServiceType = "generic"
)

// urlHostSuffixes is the fixed platform URL classification table from
// spec.md §6, used by AcquireForURL.
var urlHostSuffixes = map[string]ServiceType{
	"youtube.com": ServiceYouTube,
	"youtu.be":    ServiceYouTube,
	"rumble.com":  ServiceRumble,
	"odysee.com":  ServiceOdysee,
}

// Config is the split-tunnel configuration: which services use the VPN
// interface, and the interface names themselves.
type Config struct {
	UseVPN            map[ServiceType]bool
	VPNInterface      string
	DefaultInterface  string
	VPNSubnets        []string // CIDR strings, classified in addition to name heuristics
	PerHostConnLimit  int           // default 10
	DNSCacheTTL       time.Duration // default 300s
	InsecureTransport bool          // used only by the peertube adapter's dedicated session
}

func (c Config) withDefaults() Config {
	if c.PerHostConnLimit <= 0 {
		c.PerHostConnLimit = 10
	}
	if c.DNSCacheTTL <= 0 {
		c.DNSCacheTTL = 300 * time.Second
	}
	return c
}

type sessionKey struct {
	service   ServiceType
	iface     string
}

// Session is a pooled, reusable HTTP client bound to one interface.
type Session struct {
	Client *http.Client
}

// Router owns the session pool. Only the Router mutates it; sessions are
// shared across all concurrent callers of a given (service, interface)
// pair, per spec.md §5.
type Router struct {
	mu       sync.Mutex
	sessions map[sessionKey]*Session
	cfg      Config
	vpnSet   *netipx.IPSet
	resolver *dnsCache
	logger   *obs.Logger
}

func NewRouter(cfg Config, logger *obs.Logger) *Router {
	cfg = cfg.withDefaults()
	vpnSet, _ := buildVPNSet(cfg.VPNSubnets)
	return &Router{
		sessions: make(map[sessionKey]*Session),
		cfg:      cfg,
		vpnSet:   vpnSet,
		resolver: newDNSCache(cfg.DNSCacheTTL),
		logger:   logger,
	}
}

// Acquire returns the pooled session for service, creating it lazily. It
// never returns an error that blocks the caller: if the configured
// interface is unavailable, it falls back to the default interface with a
// logged warning, per spec.md §4.A.
func (r *Router) Acquire(service ServiceType) (*Session, error) {
	wantVPN := r.cfg.UseVPN[service]
	ifaceName := r.cfg.DefaultInterface
	if wantVPN {
		ifaceName = r.cfg.VPNInterface
	}

	if ifaceName != "" {
		if _, ok := resolveInterface(ifaceName); !ok {
			if r.logger != nil {
				r.logger.WithFields(map[string]interface{}{
					"service":   service,
					"interface": ifaceName,
				}).Warn("httprouter: configured interface unavailable, falling back to default")
			}
			ifaceName = r.cfg.DefaultInterface
		}
	}

	key := sessionKey{service: service, iface: ifaceName}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[key]; ok {
		return s, nil
	}

	s := r.newSession(ifaceName, service == ServicePeerTube)
	r.sessions[key] = s
	return s, nil
}

// AcquireForURL classifies rawURL's host into a service via the fixed
// suffix table and delegates to Acquire.
func (r *Router) AcquireForURL(rawURL string) (*Session, error) {
	service := ServiceGeneric
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = strings.ToLower(u.Hostname())
	}
	for suffix, svc := range urlHostSuffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			service = svc
			break
		}
	}
	return r.Acquire(service)
}

// Shutdown closes every pooled session's idle connections, guaranteeing
// socket release on every exit path per spec.md §4.A.
func (r *Router) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.Client.CloseIdleConnections()
	}
	r.sessions = make(map[sessionKey]*Session)
}

func (r *Router) newSession(ifaceName string, insecure bool) *Session {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	if addr, ok := resolveInterface(ifaceName); ok {
		dialer.LocalAddr = &net.TCPAddr{IP: net.IP(addr.AsSlice())}
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return dialer.DialContext(ctx, network, addr)
			}
			resolved := r.resolver.resolve(host)
			return dialer.DialContext(ctx, network, net.JoinHostPort(resolved, port))
		},
		MaxIdleConnsPerHost: r.cfg.PerHostConnLimit,
		IdleConnTimeout:     90 * time.Second,
	}
	if insecure || r.cfg.InsecureTransport {
		transport.TLSClientConfig = insecureTLSConfig()
	}

	return &Session{
		Client: &http.Client{
			Transport: &decompressingTransport{base: transport},
			Timeout:   30 * time.Second,
		},
	}
}

// decompressingTransport transparently decodes gzip/deflate/br bodies,
// matching jmylchreest-tvarr/pkg/httpclient's decompressReader behavior.
type decompressingTransport struct {
	base http.RoundTripper
}

func (t *decompressingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	encoding := strings.ToLower(resp.Header.Get("Content-Encoding"))
	var reader io.Reader
	switch encoding {
	case "gzip":
		gz, gerr := gzip.NewReader(resp.Body)
		if gerr != nil {
			return resp, nil
		}
		reader = gz
	case "deflate":
		reader = flate.NewReader(resp.Body)
	case "br":
		reader = brotli.NewReader(resp.Body)
	default:
		return resp, nil
	}
	resp.Body = &decompressedBody{reader: reader, closer: resp.Body}
	resp.Header.Del("Content-Encoding")
	return resp, nil
}

type decompressedBody struct {
	reader io.Reader
	closer io.Closer
}

func (d *decompressedBody) Read(p []byte) (int, error) { return d.reader.Read(p) }
func (d *decompressedBody) Close() error {
	if c, ok := d.reader.(io.Closer); ok {
		_ = c.Close()
	}
	return d.closer.Close()
}
