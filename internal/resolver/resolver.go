package resolver

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Brownie44l1/leaf-api/pkg/xerr"
	"github.com/Brownie44l1/leaf-api/pkg/zlog"

	"go.uber.org/zap"
)

// Doer is the subset of *http.Client used to fetch remote images.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Options struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
}

// Resolver turns either an inline base64 payload or a remote URL into raw
// image bytes. Inline payloads take precedence and never touch the network.
type Resolver struct {
	client    Doer
	userAgent string
	maxBytes  int64
}

// New builds a resolver with its own http.Client bounded by opts.Timeout.
func New(opts Options) *Resolver {
	return NewWithClient(&http.Client{Timeout: opts.Timeout}, opts)
}

func NewWithClient(client Doer, opts Options) *Resolver {
	return &Resolver{
		client:    client,
		userAgent: opts.UserAgent,
		maxBytes:  opts.MaxBytes,
	}
}

// Resolve returns the image bytes for one request. Any non-empty
// imageBase64, even whitespace, counts as present and suppresses the fetch.
func (r *Resolver) Resolve(ctx context.Context, imageBase64, imageURL string) ([]byte, error) {
	imageURL = strings.TrimSpace(imageURL)

	switch {
	case imageBase64 != "":
		return DecodeBase64(imageBase64)
	case imageURL != "":
		return r.Fetch(ctx, imageURL)
	default:
		return nil, xerr.Input("provide either 'imageUrl' or 'imageBase64'")
	}
}

var encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// DecodeBase64 accepts standard or URL-safe alphabets, padded or not, with
// an optional data URI prefix such as "data:image/jpeg;base64,".
func DecodeBase64(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 || !strings.HasSuffix(s[:i], ";base64") {
			return nil, xerr.Decode(nil, "invalid data URI: expected base64 encoding")
		}
		s = s[i+1:]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)

	if s == "" {
		return nil, xerr.Decode(nil, "invalid base64 image payload: empty")
	}

	var err error
	for _, enc := range encodings {
		var out []byte
		if out, err = enc.DecodeString(s); err == nil {
			return out, nil
		}
	}
	return nil, xerr.Decode(err, "invalid base64 image payload")
}

// Fetch downloads url with a browser-like User-Agent. Non-2xx responses,
// transport errors and oversized bodies are fetch errors.
func (r *Resolver) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, xerr.Fetch(err, "failed to download image: invalid url")
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, xerr.Fetch(err, "failed to download image: timed out")
		}
		return nil, xerr.Fetch(err, "failed to download image")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, xerr.Fetch(nil, "failed to download image. status: %d", resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if r.maxBytes > 0 {
		body = io.LimitReader(resp.Body, r.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, xerr.Fetch(err, "failed to download image: read body")
	}
	if r.maxBytes > 0 && int64(len(data)) > r.maxBytes {
		return nil, xerr.Fetch(nil, "failed to download image: exceeds %d bytes", r.maxBytes)
	}

	zlog.Debug("image downloaded",
		zap.String("url", url),
		zap.Int("bytes", len(data)),
		zap.Int64("fetch_ms", time.Since(start).Milliseconds()))
	return data, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
