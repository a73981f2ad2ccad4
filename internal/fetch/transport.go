package fetch

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/xkilldash9x/focusmap/internal/config"
)

// Transport defaults for fetching documents. A scan touches few hosts, so the pool is small.
const (
	DefaultDialTimeout           = 5 * time.Second
	DefaultKeepAliveInterval     = 15 * time.Second
	DefaultTLSHandshakeTimeout   = 5 * time.Second
	DefaultResponseHeaderTimeout = 10 * time.Second
	DefaultMaxIdleConns          = 20
	DefaultMaxIdleConnsPerHost   = 4
	DefaultIdleConnTimeout       = 30 * time.Second
)

// NewTransport builds the base transport for remote targets: TLS 1.2 or newer, an optional
// proxy, and HTTP/2 when the server offers it. Decompression is left to DecodingTransport.
func NewTransport(cfg config.NetworkConfig, logger *zap.Logger) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   DefaultDialTimeout,
		KeepAlive: DefaultKeepAliveInterval,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSClientConfig:       newTLSConfig(cfg.IgnoreTLSErrors),
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
		MaxIdleConns:          DefaultMaxIdleConns,
		MaxIdleConnsPerHost:   DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		DisableCompression:    true,
		ForceAttemptHTTP2:     true,
		Proxy:                 http.ProxyFromEnvironment,
	}

	if cfg.ProxyURL != "" {
		if proxy, err := url.Parse(cfg.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxy)
		} else {
			logger.Warn("Ignoring invalid proxy URL.", zap.String("proxy_url", cfg.ProxyURL), zap.Error(err))
		}
	}

	// ConfigureTransport modifies the transport in place to add HTTP/2 support.
	if err := http2.ConfigureTransport(transport); err != nil {
		logger.Warn("Failed to configure HTTP/2 transport, falling back to HTTP/1.1", zap.Error(err))
	}
	return transport
}

func newTLSConfig(ignoreErrors bool) *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ClientSessionCache: tls.NewLRUClientSessionCache(64),
		// Useful for staging hosts with self signed certificates.
		InsecureSkipVerify: ignoreErrors,
	}
}
