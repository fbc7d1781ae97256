// Package destination forwards tenant requests to the platform behind a connection.
package destination

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/integrationos/gateway/internal/app/domain"
	"github.com/integrationos/gateway/internal/app/ports"
	"github.com/integrationos/gateway/internal/cache"
	"github.com/integrationos/gateway/internal/observability"
)

const maxResponseBytes = 10 << 20

var (
	ErrMissingSecrets   = errors.New("destination dispatcher requires a secrets client")
	ErrInvalidCacheSize = errors.New("destination credential cache size must be positive")
	ErrMissingBaseURL   = errors.New("connection has no base url")
	// ErrResponseTooLarge is returned instead of a truncated upstream body.
	ErrResponseTooLarge = errors.New("upstream response exceeds size limit")
)

// headers never copied upstream
var strippedHeaders = []string{
	"Authorization",
	"Connection",
	"Cookie",
	"Host",
	"Keep-Alive",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

type Config struct {
	Timeout time.Duration
	Client  *http.Client
}

type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers http.Header
	Body    []byte
}

type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Dispatcher calls a connection's platform with its decrypted credential.
type Dispatcher struct {
	client      *http.Client
	secrets     ports.SecretsClient
	credentials *cache.Cache[string, string]
}

// New fails when secrets is nil or cacheSize is not positive. recorder may be nil.
func New(cfg Config, cacheSize int, secrets ports.SecretsClient, recorder cache.Recorder) (*Dispatcher, error) {
	if secrets == nil {
		return nil, ErrMissingSecrets
	}
	if cacheSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCacheSize, cacheSize)
	}
	client := cfg.Client
	if client == nil {
		client = observability.NewHTTPClient(cfg.Timeout)
	}
	return &Dispatcher{
		client:      client,
		secrets:     secrets,
		credentials: cache.New[string, string](cache.Config{Name: "destination_credentials", Capacity: cacheSize}, recorder),
	}, nil
}

func (d *Dispatcher) Forward(ctx context.Context, conn domain.Connection, req Request) (*Response, error) {
	target, err := joinURL(conn.BaseURL, req.Path, req.Query)
	if err != nil {
		return nil, err
	}
	token, err := d.credential(ctx, conn.Secret)
	if err != nil {
		return nil, fmt.Errorf("decrypt credential for connection %s: %w", conn.Key, err)
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	upstream, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	for name, values := range req.Headers {
		if strings.HasPrefix(strings.ToLower(name), "x-integrationos-") {
			continue
		}
		for _, value := range values {
			upstream.Header.Add(name, value)
		}
	}
	for _, name := range strippedHeaders {
		upstream.Header.Del(name)
	}
	if token != "" {
		upstream.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := d.client.Do(upstream)
	if err != nil {
		return nil, fmt.Errorf("call %s %s: %w", method, conn.Platform, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}
	if len(payload) > maxResponseBytes {
		return nil, fmt.Errorf("%w: %s %s over %d bytes", ErrResponseTooLarge, method, conn.Platform, maxResponseBytes)
	}
	headers := resp.Header.Clone()
	for _, name := range strippedHeaders {
		headers.Del(name)
	}
	headers.Del("Content-Length")
	return &Response{StatusCode: resp.StatusCode, Headers: headers, Body: payload}, nil
}

// credential memoises decryption by ciphertext so a rotated secret is never served stale.
func (d *Dispatcher) credential(ctx context.Context, sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	if token, ok := d.credentials.Get(sealed); ok {
		return token, nil
	}
	token, err := d.secrets.Decrypt(ctx, sealed)
	if err != nil {
		return "", err
	}
	d.credentials.Add(sealed, token)
	return token, nil
}

func joinURL(base, path string, query url.Values) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", ErrMissingBaseURL
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid connection base url %q", base)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		merged := parsed.Query()
		for key, values := range query {
			for _, value := range values {
				merged.Add(key, value)
			}
		}
		parsed.RawQuery = merged.Encode()
	}
	return parsed.String(), nil
}
