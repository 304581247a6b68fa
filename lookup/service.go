// Package lookup serves memoized reads of an upstream JSON API.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sbc-om/sbc-sub007/cache/memo"
	"github.com/sbc-om/sbc-sub007/httpx"
	"github.com/sbc-om/sbc-sub007/internal/logging"
)

var (
	ErrInvalidResource = errors.New("lookup: invalid resource")
	ErrUpstream        = errors.New("lookup: upstream request failed")
)

var resourcePattern = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)

// Result is a decoded upstream document and where it was served from.
type Result struct {
	Data   json.RawMessage
	Source memo.Source
}

type Service struct {
	client *httpx.Client
	memo   *memo.Memoizer[json.RawMessage]
	apiKey string
	log    logrus.FieldLogger
}

type Option func(*Service)

// WithAPIKey sends key as a bearer token on every upstream request.
func WithAPIKey(key string) Option {
	return func(s *Service) { s.apiKey = key }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func NewService(client *httpx.Client, m *memo.Memoizer[json.RawMessage], opts ...Option) *Service {
	s := &Service{client: client, memo: m, log: logging.Discard()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Lookup returns the upstream document for resource and query, fetching
// it only when no cache layer holds a fresh copy.
func (s *Service) Lookup(ctx context.Context, resource string, query url.Values) (Result, error) {
	resource, err := normalizeResource(resource)
	if err != nil {
		return Result{}, err
	}
	key := Key(resource, query)

	data, source, err := s.memo.Do(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		return s.fetch(ctx, resource, query)
	})
	if err != nil {
		return Result{}, err
	}
	s.log.WithFields(logrus.Fields{"key": key, "source": source}).Debug("lookup served")
	return Result{Data: data, Source: source}, nil
}

// Forget drops the memoized document for resource and query.
func (s *Service) Forget(ctx context.Context, resource string, query url.Values) error {
	resource, err := normalizeResource(resource)
	if err != nil {
		return err
	}
	return s.memo.Forget(ctx, Key(resource, query))
}

// Purge clears the in-process cache.
func (s *Service) Purge() { s.memo.Purge() }

func (s *Service) Stats() memo.Stats { return s.memo.Stats() }

func (s *Service) fetch(ctx context.Context, resource string, query url.Values) (json.RawMessage, error) {
	resp, err := s.client.Get(ctx, "/"+resource, nil,
		httpx.WithQueryValues(query),
		httpx.WithBearer(s.apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUpstream, resource, err)
	}
	body := resp.Body()
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: %s: response is not JSON", ErrUpstream, resource)
	}
	// resty may reuse the buffer; keep our own copy in the cache.
	return append(json.RawMessage(nil), body...), nil
}

// Key is the cache key for resource and query. Query parameters are
// sorted so equivalent requests share an entry.
func Key(resource string, query url.Values) string {
	if len(query) == 0 {
		return resource
	}
	return resource + "?" + query.Encode()
}

func normalizeResource(resource string) (string, error) {
	resource = strings.Trim(resource, "/")
	if resource == "" || !resourcePattern.MatchString(resource) {
		return "", fmt.Errorf("%w: %q", ErrInvalidResource, resource)
	}
	if strings.Contains(resource, "..") || strings.Contains(resource, "//") {
		return "", fmt.Errorf("%w: %q", ErrInvalidResource, resource)
	}
	return resource, nil
}
