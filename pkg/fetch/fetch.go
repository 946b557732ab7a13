// Package fetch reads remote documents for the pipeline: the default data
// set, corrections, the program feed and mailing list archives.
//
// http(s) URIs are retried with exponential backoff, since the sources are
// third party services that fail transiently during a long harvesting run.
// file URIs (and bare paths) read the local filesystem and never retry.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	yaml "gopkg.in/yaml.v2"
)

const defaultUserAgent = "trawler"

// Error qualifies a fetch failure with the URI it happened on. StatusCode
// is set when the failure was an unexpected http status.
type Error struct {
	URI        string
	Op         string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s %q: %v", e.Op, e.URI, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Option alters fetch behavior.
type Option func(*settings)

type settings struct {
	client     *http.Client
	fs         afero.Fs
	userAgent  string
	maxElapsed time.Duration
}

func defaultSettings() settings {
	return settings{
		client:     &http.Client{Timeout: 30 * time.Second},
		fs:         afero.NewOsFs(),
		userAgent:  defaultUserAgent,
		maxElapsed: 2 * time.Minute,
	}
}

// WithClient overrides the HTTP client.
func WithClient(client *http.Client) Option {
	return func(s *settings) {
		if client != nil {
			s.client = client
		}
	}
}

// WithFS overrides the filesystem backing file URIs.
func WithFS(fs afero.Fs) Option {
	return func(s *settings) {
		if fs != nil {
			s.fs = fs
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(s *settings) {
		if agent != "" {
			s.userAgent = agent
		}
	}
}

// WithRetryBudget caps the total time spent retrying one URI.
func WithRetryBudget(budget time.Duration) Option {
	return func(s *settings) {
		if budget > 0 {
			s.maxElapsed = budget
		}
	}
}

// Bytes reads the document at uri.
func Bytes(ctx context.Context, uri string, opts ...Option) ([]byte, error) {
	s := defaultSettings()
	for _, apply := range opts {
		apply(&s)
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, &Error{URI: uri, Op: "parse", Cause: err}
	}
	switch parsed.Scheme {
	case "http", "https":
		return s.httpBytes(ctx, uri)
	case "file":
		return s.fileBytes(parsed.Path)
	case "":
		return s.fileBytes(uri)
	default:
		return nil, &Error{URI: uri, Op: "read", Cause: fmt.Errorf("unsupported scheme %q", parsed.Scheme)}
	}
}

// JSON reads and decodes a JSON document.
func JSON(ctx context.Context, uri string, value interface{}, opts ...Option) error {
	data, err := Bytes(ctx, uri, opts...)
	if err != nil {
		return err
	}
	if err := jsoniter.Unmarshal(data, value); err != nil {
		return &Error{URI: uri, Op: "decode json", Cause: err}
	}
	return nil
}

// YAML reads and decodes a YAML document.
func YAML(ctx context.Context, uri string, value interface{}, opts ...Option) error {
	data, err := Bytes(ctx, uri, opts...)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, value); err != nil {
		return &Error{URI: uri, Op: "decode yaml", Cause: err}
	}
	return nil
}

func (s *settings) fileBytes(path string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, &Error{URI: path, Op: "read file", Cause: err}
	}
	return data, nil
}

func (s *settings) httpBytes(ctx context.Context, uri string) ([]byte, error) {
	var (
		body       []byte
		lastStatus int
	)

	operation := func() error {
		lastStatus = 0
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", s.userAgent)

		resp, err := s.client.Do(req)
		if err != nil {
			return err // network errors retry
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusOK:
			body, err = io.ReadAll(resp.Body)
			return err
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			lastStatus = resp.StatusCode
			return fmt.Errorf("status %s", resp.Status)
		default:
			// other statuses will not get better by retrying
			lastStatus = resp.StatusCode
			return backoff.Permanent(fmt.Errorf("status %s", resp.Status))
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = s.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, &Error{URI: uri, Op: "get", StatusCode: lastStatus, Cause: err}
	}
	return body, nil
}

// Resolve joins a possibly relative link against a base URI, the form
// mailing list archive indexes use.
func Resolve(base, link string) string {
	b, err := url.Parse(base)
	if err != nil {
		return link
	}
	l, err := url.Parse(link)
	if err != nil {
		return link
	}
	return b.ResolveReference(l).String()
}
