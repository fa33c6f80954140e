// Package supabase implements the persistence gateway on a hosted Supabase project:
// GoTrue for identity and PostgREST for the habits table. Row-level security on the
// server scopes every habit request to the bearer token.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/storage"
)

// Config holds the project settings.
type Config struct {
	URL     string
	AnonKey string
	// JWTSecret enables local signature verification of access tokens when set
	JWTSecret  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Store struct {
	storage.Broadcaster

	baseURL    string
	anonKey    string
	jwtSecret  []byte
	httpClient *http.Client
	now        func() time.Time

	mu      sync.RWMutex
	session *models.Session

	// concurrent refreshes of one token share a single grant
	refreshGroup singleflight.Group
}

var _ storage.Provider = (*Store)(nil)

// APIError is a non-2xx response from GoTrue or PostgREST.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase: %d: %s", e.Status, e.Message)
}

// Unwrap reports server-side failures as unavailability.
func (e *APIError) Unwrap() error {
	if e.Status >= http.StatusInternalServerError {
		return storage.ErrUnavailable
	}
	return nil
}

func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("supabase URL is required")
	}
	if strings.TrimSpace(cfg.AnonKey) == "" {
		return nil, errors.New("supabase anon key is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = constants.DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	s := &Store{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		anonKey:    cfg.AnonKey,
		httpClient: httpClient,
		now:        time.Now,
	}
	if cfg.JWTSecret != "" {
		s.jwtSecret = []byte(cfg.JWTSecret)
	}
	return s, nil
}

// Init checks that the project is reachable. The habits schema is applied from the
// Supabase SQL editor (see the schema command).
func (s *Store) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultTimeout)
	defer cancel()

	if _, err := s.do(ctx, http.MethodGet, "/auth/v1/health", nil, nil, "", nil); err != nil {
		return fmt.Errorf("failed to reach supabase: %w", err)
	}
	logger.Info("Supabase project reachable", "url", s.baseURL)
	return nil
}

// Load is a no-op; connectivity is checked lazily by the first request.
func (s *Store) Load() error {
	return nil
}

func (s *Store) Close() error {
	s.Broadcaster.Close()
	s.httpClient.CloseIdleConnections()
	return nil
}

func (s *Store) Describe() string {
	if u, err := url.Parse(s.baseURL); err == nil && u.Host != "" {
		return "supabase (" + u.Host + ")"
	}
	return "supabase"
}

// do sends a request and returns the response body. token, when set, is sent as the
// bearer; otherwise the anon key is.
func (s *Store) do(ctx context.Context, method, path string, query url.Values, body any, token string, headers map[string]string) ([]byte, error) {
	reqURL := s.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, err
	}

	bearer := token
	if bearer == "" {
		bearer = s.anonKey
	}
	req.Header.Set("apikey", s.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", storage.ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseAPIError(resp.StatusCode, respBody)
		logger.Debug("Supabase request failed", "method", method, "path", path, "status", resp.StatusCode, "code", apiErr.Code)
		return nil, apiErr
	}
	return respBody, nil
}

// parseAPIError reads the message out of the differing GoTrue and PostgREST error shapes.
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	if gjson.ValidBytes(body) {
		for _, r := range gjson.GetManyBytes(body, "msg", "message", "error_description", "error") {
			if r.Type == gjson.String && r.String() != "" {
				apiErr.Message = r.String()
				break
			}
		}
		for _, r := range gjson.GetManyBytes(body, "error_code", "code", "error") {
			if r.Exists() && r.String() != "" {
				apiErr.Code = r.String()
				break
			}
		}
	}

	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
