// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package courtlistener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/caseingest/core"
)

const (
	// DefaultBaseURL is the public CourtListener site.
	DefaultBaseURL = "https://www.courtlistener.com"

	// DefaultPageSize is the number of opinions requested per page.
	DefaultPageSize = 20

	// DefaultRequestsPerSecond keeps well below the API's hourly quota.
	DefaultRequestsPerSecond = 1.0

	// DefaultBurst is the token bucket burst size.
	DefaultBurst = 3

	apiPath             = "/api/rest/v3"
	defaultTimeout      = 30 * time.Second
	maxRateLimitRetries = 3
	maxErrorBody        = 512
	dateLayout          = "2006-01-02"
)

// Client is a CourtListener REST API client.
type Client struct {
	baseURL  string
	token    string
	pageSize int
	http     *http.Client
	timeout  time.Duration
	limiter  *RateLimiter
	logger   *slog.Logger

	mu       sync.Mutex
	clusters map[string]*cluster
	courts   map[string]*court
}

// Option configures a Client.
type Option func(*Client) error

// WithBaseURL overrides the site URL, mainly for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) error {
		if _, err := url.Parse(baseURL); err != nil || baseURL == "" {
			return fmt.Errorf("invalid base URL %q", baseURL)
		}
		c.baseURL = strings.TrimSuffix(baseURL, "/")
		return nil
	}
}

// WithPageSize sets the number of opinions requested per page.
func WithPageSize(size int) Option {
	return func(c *Client) error {
		if size <= 0 {
			return fmt.Errorf("page size must be greater than 0, got %d", size)
		}
		c.pageSize = size
		return nil
	}
}

// WithRateLimit sets proactive throttling. A non-positive rate disables it.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(c *Client) error {
		c.limiter = NewRateLimiter(requestsPerSecond, burst)
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) error {
		if client == nil {
			return errors.New("http client cannot be nil")
		}
		c.http = client
		return nil
	}
}

// WithTimeout sets the per-request timeout. A client supplied through
// WithHTTPClient is copied, never modified.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", timeout)
		}
		c.timeout = timeout
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// NewClient creates a client authenticating with token.
func NewClient(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, ErrTokenRequired
	}
	c := &Client{
		baseURL:  DefaultBaseURL,
		token:    token,
		pageSize: DefaultPageSize,
		http:     &http.Client{Timeout: defaultTimeout},
		limiter:  NewRateLimiter(DefaultRequestsPerSecond, DefaultBurst),
		logger:   slog.Default(),
		clusters: make(map[string]*cluster),
		courts:   make(map[string]*court),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.timeout > 0 {
		client := *c.http
		client.Timeout = c.timeout
		c.http = &client
	}
	c.logger = c.logger.With("component", "courtlistener")
	return c, nil
}

type opinionPage struct {
	Count   int       `json:"count"`
	Next    *string   `json:"next"`
	Results []opinion `json:"results"`
}

type opinion struct {
	ID                int    `json:"id"`
	AbsoluteURL       string `json:"absolute_url"`
	Cluster           string `json:"cluster"`
	PlainText         string `json:"plain_text"`
	HTMLWithCitations string `json:"html_with_citations"`
	HTMLLawbox        string `json:"html_lawbox"`
	HTML              string `json:"html"`
}

type citation struct {
	Volume   json.Number `json:"volume"`
	Reporter string      `json:"reporter"`
	Page     string      `json:"page"`
}

type cluster struct {
	ID           int        `json:"id"`
	CaseName     string     `json:"case_name"`
	CaseNameFull string     `json:"case_name_full"`
	DateFiled    string     `json:"date_filed"`
	Citations    []citation `json:"citations"`
	AbsoluteURL  string     `json:"absolute_url"`
}

type court struct {
	ID           string `json:"id"`
	FullName     string `json:"full_name"`
	Jurisdiction string `json:"jurisdiction"`
}

// jurisdictions names CourtListener's court jurisdiction codes.
var jurisdictions = map[string]string{
	"F":   "Federal Appellate",
	"FD":  "Federal District",
	"FB":  "Federal Bankruptcy",
	"FBP": "Federal Bankruptcy Panel",
	"FS":  "Federal Special",
	"S":   "State Supreme",
	"SA":  "State Appellate",
	"ST":  "State Trial",
	"SS":  "State Special",
	"TRS": "Tribal Supreme",
	"TRA": "Tribal Appellate",
	"TRT": "Tribal Trial",
	"C":   "Committee",
	"I":   "International",
	"T":   "Testing",
}

// FetchOpinions lists up to maxCases opinions of court filed on or after filedAfter.
// Opinions are returned in the order the API lists them.
func (c *Client) FetchOpinions(ctx context.Context, courtID string, filedAfter time.Time, maxCases int) ([]core.Opinion, error) {
	if courtID == "" {
		return nil, errors.New("court is required")
	}
	if maxCases <= 0 {
		return nil, fmt.Errorf("max cases must be greater than 0, got %d", maxCases)
	}

	jurisdiction := c.jurisdiction(ctx, courtID)

	query := url.Values{}
	query.Set("cluster__docket__court", courtID)
	if !filedAfter.IsZero() {
		query.Set("cluster__date_filed__gte", filedAfter.Format(dateLayout))
	}
	query.Set("order_by", "id")
	query.Set("page_size", strconv.Itoa(min(c.pageSize, maxCases)))
	next := c.baseURL + apiPath + "/opinions/?" + query.Encode()

	var opinions []core.Opinion
	for page := 1; next != "" && len(opinions) < maxCases; page++ {
		var body opinionPage
		if err := c.getJSON(ctx, next, &body); err != nil {
			return nil, fmt.Errorf("fetching opinions page %d: %w", page, err)
		}
		c.logger.Debug("fetched opinions page", "page", page, "results", len(body.Results), "count", body.Count)

		for i := range body.Results {
			if len(opinions) == maxCases {
				break
			}
			op, err := c.toOpinion(ctx, &body.Results[i], courtID, jurisdiction)
			if err != nil {
				return nil, err
			}
			opinions = append(opinions, op)
		}

		next = ""
		if body.Next != nil {
			next = *body.Next
		}
	}

	c.logger.Info("fetched opinions", "court", courtID, "opinions", len(opinions))
	return opinions, nil
}

func (c *Client) toOpinion(ctx context.Context, raw *opinion, courtID, jurisdiction string) (core.Opinion, error) {
	op := core.Opinion{
		ID:           strconv.Itoa(raw.ID),
		Court:        courtID,
		Jurisdiction: jurisdiction,
	}
	if raw.AbsoluteURL != "" {
		op.URL = c.baseURL + raw.AbsoluteURL
	}

	text, err := opinionText(raw)
	if err != nil {
		return op, fmt.Errorf("extracting text of opinion %d: %w", raw.ID, err)
	}
	op.FullText = text

	if raw.Cluster == "" {
		return op, nil
	}
	cl, err := c.cluster(ctx, raw.Cluster)
	if err != nil {
		return op, fmt.Errorf("fetching cluster of opinion %d: %w", raw.ID, err)
	}
	op.CaseName = cl.CaseName
	if op.CaseName == "" {
		op.CaseName = cl.CaseNameFull
	}
	if len(cl.Citations) > 0 {
		op.Citation = formatCitation(cl.Citations[0])
	}
	if cl.DateFiled != "" {
		if filed, err := time.Parse(dateLayout, cl.DateFiled); err == nil {
			op.DateFiled = filed
		} else {
			c.logger.Warn("unparseable date_filed", "cluster", cl.ID, "value", cl.DateFiled)
		}
	}
	if op.URL == "" && cl.AbsoluteURL != "" {
		op.URL = c.baseURL + cl.AbsoluteURL
	}
	return op, nil
}

// opinionText prefers the plain text rendering and falls back to HTML.
func opinionText(raw *opinion) (string, error) {
	if text := strings.TrimSpace(raw.PlainText); text != "" {
		return raw.PlainText, nil
	}
	for _, source := range []string{raw.HTMLWithCitations, raw.HTMLLawbox, raw.HTML} {
		if strings.TrimSpace(source) != "" {
			return htmlToText(source)
		}
	}
	return "", nil
}

func formatCitation(c citation) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{c.Volume.String(), c.Reporter, c.Page} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

func (c *Client) cluster(ctx context.Context, clusterURL string) (*cluster, error) {
	c.mu.Lock()
	cached, ok := c.clusters[clusterURL]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	var cl cluster
	if err := c.getJSON(ctx, c.resolve(clusterURL), &cl); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.clusters[clusterURL] = &cl
	c.mu.Unlock()
	return &cl, nil
}

// jurisdiction looks up the court's jurisdiction name.
// Lookup failures are logged and yield the court id.
func (c *Client) jurisdiction(ctx context.Context, courtID string) string {
	c.mu.Lock()
	cached, ok := c.courts[courtID]
	c.mu.Unlock()
	if !ok {
		var ct court
		if err := c.getJSON(ctx, c.baseURL+apiPath+"/courts/"+url.PathEscape(courtID)+"/", &ct); err != nil {
			c.logger.Warn("court lookup failed", "court", courtID, "error", err)
			return courtID
		}
		c.mu.Lock()
		c.courts[courtID] = &ct
		c.mu.Unlock()
		cached = &ct
	}
	if name, ok := jurisdictions[cached.Jurisdiction]; ok {
		return name
	}
	if cached.Jurisdiction != "" {
		return cached.Jurisdiction
	}
	return courtID
}

// resolve turns a path-only reference into an absolute URL on the configured site.
func (c *Client) resolve(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return c.baseURL + ref
}

func (c *Client) getJSON(ctx context.Context, target string, v any) error {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Token "+c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("calling courtlistener: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := c.limiter.Pause(resp)
			resp.Body.Close()
			if attempt >= maxRateLimitRetries {
				return &RateLimitError{RetryAfter: wait}
			}
			c.logger.Warn("rate limited", "retry_after", wait, "attempt", attempt+1)
			continue
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			resp.Body.Close()
			return ErrUnauthorized
		case resp.StatusCode != http.StatusOK:
			data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			resp.Body.Close()
			return &StatusError{URL: target, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		}

		err = json.NewDecoder(resp.Body).Decode(v)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	}
}
