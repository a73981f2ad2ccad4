// internal/fetch/loader.go
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/focusmap/internal/config"
)

var (
	// ErrBodyTooLarge is returned when a document exceeds network.max_body_bytes.
	ErrBodyTooLarge = errors.New("document exceeds the configured size limit")
	// ErrUnsupportedScheme is returned for targets that are neither http(s) nor local files.
	ErrUnsupportedScheme = errors.New("unsupported target scheme")
)

// StatusError reports a non-success HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetching %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Page is a loaded HTML document or stylesheet.
type Page struct {
	// Target is the input as given. Location is the final URL or absolute file path.
	Target      string
	Location    string
	ContentType string
	Body        []byte
	FetchedAt   time.Time
}

// Loader reads documents from http(s) URLs and the local filesystem.
// Remote requests share one rate limiter.
type Loader struct {
	cfg     config.NetworkConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Loader.
type Option func(*Loader)

// WithTransport replaces the base transport under the decoding layer.
func WithTransport(rt http.RoundTripper) Option {
	return func(l *Loader) { l.client.Transport = NewDecodingTransport(rt) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

func NewLoader(cfg config.NetworkConfig, logger *zap.Logger, opts ...Option) *Loader {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	logger = logger.Named("fetch")
	l := &Loader{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: NewDecodingTransport(NewTransport(cfg, logger)),
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// resource describes what a request asks for and which media types it expects back.
type resource struct {
	kind    string
	accept  string
	matches func(mediaType string) bool
}

var (
	documentResource = resource{
		kind:   "HTML",
		accept: "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8",
		matches: func(mediaType string) bool {
			return mediaType == "text/html" || mediaType == "application/xhtml+xml"
		},
	}
	stylesheetResource = resource{
		kind:    "CSS",
		accept:  "text/css,*/*;q=0.1",
		matches: func(mediaType string) bool { return mediaType == "text/css" },
	}
)

// Load reads target. URLs with an http or https scheme are fetched, file:// URLs and
// bare paths are read from disk after expanding a leading ~.
func (l *Loader) Load(ctx context.Context, target string) (*Page, error) {
	return l.load(ctx, target, documentResource)
}

// LoadStylesheet reads a linked stylesheet under the same limits as Load.
func (l *Loader) LoadStylesheet(ctx context.Context, target string) (*Page, error) {
	return l.load(ctx, target, stylesheetResource)
}

func (l *Loader) load(ctx context.Context, target string, res resource) (*Page, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.New("empty target")
	}

	u, err := url.Parse(target)
	if err == nil && u.Scheme != "" && !isWindowsDrive(u.Scheme) {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return l.fetch(ctx, target, u, res)
		case "file":
			return l.readFile(target, u.Path, res)
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
		}
	}
	return l.readFile(target, target, res)
}

func (l *Loader) fetch(ctx context.Context, target string, u *url.URL, res resource) (*Page, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", target, err)
	}
	req.Header.Set("Accept", res.accept)
	if l.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", l.cfg.UserAgent)
	}
	for k, v := range l.cfg.Headers {
		req.Header.Set(k, v)
	}

	start := l.now()
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: target, StatusCode: resp.StatusCode}
	}

	body, err := l.readLimited(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", target, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !res.matches(mediaType(contentType)) {
		l.logger.Warn("Target is not served as "+res.kind+", parsing anyway.",
			zap.String("target", target), zap.String("content_type", contentType))
	}
	l.logger.Debug("Fetched document.",
		zap.String("target", target),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", l.now().Sub(start)))

	return &Page{
		Target:      target,
		Location:    resp.Request.URL.String(),
		ContentType: contentType,
		Body:        body,
		FetchedAt:   l.now(),
	}, nil
}

func (l *Loader) readFile(target, path string, res resource) (*Page, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand path %s: %w", path, err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", abs, err)
	}
	defer f.Close()

	body, err := l.readLimited(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", abs, err)
	}
	return &Page{
		Target:      target,
		Location:    abs,
		ContentType: strings.SplitN(res.accept, ",", 2)[0],
		Body:        body,
		FetchedAt:   l.now(),
	}, nil
}

// readLimited reads r fully, failing once more than MaxBodyBytes arrive. A limit of zero
// or less disables the check.
func (l *Loader) readLimited(r io.Reader) ([]byte, error) {
	limit := l.cfg.MaxBodyBytes
	if limit <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, limit)
	}
	return body, nil
}

func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// ResolveReference resolves ref, an href found in the document at base, to a target
// Load understands. base is a URL or an absolute file path, as in Page.Location.
func ResolveReference(base, ref string) (string, error) {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("invalid reference %q: %w", ref, err)
	}
	b, err := url.Parse(base)
	if err != nil || b.Scheme == "" || isWindowsDrive(b.Scheme) {
		b = &url.URL{Scheme: "file", Path: filepath.ToSlash(base)}
	}
	resolved := b.ResolveReference(r)
	if strings.EqualFold(resolved.Scheme, "file") {
		return filepath.FromSlash(resolved.Path), nil
	}
	return resolved.String(), nil
}

// isWindowsDrive keeps C:\page.html from parsing as a URL with scheme "c".
func isWindowsDrive(scheme string) bool {
	return len(scheme) == 1
}
