// internal/fetch/decode.go
package fetch

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// AcceptEncoding is advertised when the caller did not set its own.
const AcceptEncoding = "br, gzip, deflate"

var (
	gzipPool   = sync.Pool{New: func() any { return new(gzip.Reader) }}
	brotliPool = sync.Pool{New: func() any { return brotli.NewReader(nil) }}
)

// DecodingTransport negotiates compressed responses and decodes their bodies.
type DecodingTransport struct {
	Base http.RoundTripper
}

func NewDecodingTransport(base http.RoundTripper) *DecodingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &DecodingTransport{Base: base}
}

func (t *DecodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", AcceptEncoding)
	}
	resp, err := t.Base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if err := DecodeBody(resp); err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	return resp, nil
}

// DecodeBody replaces resp.Body with a reader that undoes every Content-Encoding layer,
// last applied first. On error the body may be partly consumed.
func DecodeBody(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}
	encodings := contentEncodings(resp.Header)
	if len(encodings) == 0 {
		return nil
	}

	for i := len(encodings) - 1; i >= 0; i-- {
		layer, err := decoderFor(encodings[i], resp.Body)
		if err != nil {
			return err
		}
		if layer != nil {
			resp.Body = layer
		}
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// contentEncodings flattens repeated and comma separated Content-Encoding values.
func contentEncodings(h http.Header) []string {
	var out []string
	for _, v := range h.Values("Content-Encoding") {
		for _, part := range strings.Split(v, ",") {
			if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// decoderFor wraps body in one decoding layer. It returns nil for the identity encoding.
func decoderFor(encoding string, body io.ReadCloser) (io.ReadCloser, error) {
	switch encoding {
	case "identity":
		return nil, nil
	case "gzip", "x-gzip":
		zr := gzipPool.Get().(*gzip.Reader)
		if err := zr.Reset(body); err != nil {
			gzipPool.Put(zr)
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return &layer{Reader: zr, closeDecoder: zr.Close, under: body, release: func() { gzipPool.Put(zr) }}, nil
	case "br":
		br := brotliPool.Get().(*brotli.Reader)
		if err := br.Reset(body); err != nil {
			brotliPool.Put(br)
			return nil, fmt.Errorf("brotli: %w", err)
		}
		return &layer{Reader: br, under: body, release: func() { brotliPool.Put(br) }}, nil
	case "deflate":
		r, err := deflateReader(body)
		if err != nil {
			return nil, err
		}
		return &layer{Reader: r, closeDecoder: r.Close, under: body}, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}

// deflateReader accepts both zlib wrapped (RFC 1950) and raw (RFC 1951) deflate, which
// servers send interchangeably under the same name.
func deflateReader(body io.Reader) (io.ReadCloser, error) {
	buffered := bufio.NewReader(body)
	header, err := buffered.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if len(header) == 2 && isZlibHeader(header[0], header[1]) {
		zr, err := zlib.NewReader(buffered)
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		return zr, nil
	}
	return flate.NewReader(buffered), nil
}

func isZlibHeader(cmf, flg byte) bool {
	return cmf&0x0f == 8 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}

// layer closes the decoder and the body under it, and returns pooled decoders once.
type layer struct {
	io.Reader
	closeDecoder func() error
	under        io.ReadCloser
	release      func()
	once         sync.Once
}

func (l *layer) Close() error {
	var errs []error
	l.once.Do(func() {
		if l.closeDecoder != nil {
			errs = append(errs, l.closeDecoder())
		}
		errs = append(errs, l.under.Close())
		if l.release != nil {
			l.release()
		}
	})
	return errors.Join(errs...)
}
