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


package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/poiesic/caseingest/core"
	"github.com/poiesic/caseingest/storage"
)

const (
	// DefaultAPIVersion is the Azure AI Search REST API version used for all requests.
	DefaultAPIVersion = "2023-11-01"

	defaultTimeout = 60 * time.Second

	vectorAlgorithmName = "hnsw-config"
	vectorProfileName   = "vector-profile"
	uploadAction        = "mergeOrUpload"

	// maxErrorBody bounds how much of a failed response is kept in the error.
	maxErrorBody = 4096
)

// Index is an Azure AI Search index client.
type Index struct {
	endpoint   string
	apiKey     string
	name       string
	dimensions int
	apiVersion string
	client     *http.Client
	logger     *slog.Logger
}

var _ storage.SearchIndex = (*Index)(nil)

// Option configures an Index.
type Option func(*Index) error

// WithAPIVersion overrides the REST API version.
func WithAPIVersion(version string) Option {
	return func(x *Index) error {
		if version == "" {
			return errors.New("api version cannot be empty")
		}
		x.apiVersion = version
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(x *Index) error {
		if client == nil {
			return errors.New("http client cannot be nil")
		}
		x.client = client
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(x *Index) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		x.logger = logger
		return nil
	}
}

// NewIndex creates a client for the index called name on the search service at endpoint.
func NewIndex(endpoint, apiKey, name string, dimensions int, opts ...Option) (*Index, error) {
	if endpoint == "" {
		return nil, errors.New("search endpoint is required")
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}
	if apiKey == "" {
		return nil, errors.New("search api key is required")
	}
	if name == "" {
		return nil, errors.New("index name is required")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be greater than 0, got %d", dimensions)
	}

	x := &Index{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		apiKey:     apiKey,
		name:       name,
		dimensions: dimensions,
		apiVersion: DefaultAPIVersion,
		client:     &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(x); err != nil {
			return nil, err
		}
	}
	x.logger = x.logger.With("component", "azure_index", "index", name)
	return x, nil
}

// Name returns the index name.
func (x *Index) Name() string {
	return x.name
}

// Close releases idle connections.
func (x *Index) Close() error {
	x.client.CloseIdleConnections()
	return nil
}

// CreateIndex creates the index or updates its schema in place.
func (x *Index) CreateIndex(ctx context.Context) error {
	body, err := json.Marshal(x.schema())
	if err != nil {
		return fmt.Errorf("marshaling index schema: %w", err)
	}
	resp, err := x.do(ctx, http.MethodPut, x.indexURL(""), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		x.logger.Info("index ready", "dimensions", x.dimensions)
		return nil
	default:
		return statusError("create index", resp)
	}
}

// DeleteIndex deletes the index. A 404 response yields storage.ErrIndexNotFound.
func (x *Index) DeleteIndex(ctx context.Context) error {
	resp, err := x.do(ctx, http.MethodDelete, x.indexURL(""), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		x.logger.Info("index deleted")
		return nil
	case http.StatusNotFound:
		return storage.ErrIndexNotFound
	default:
		return statusError("delete index", resp)
	}
}

// indexAction is one entry of a docs/index request.
type indexAction struct {
	Action string `json:"@search.action"`
	core.UploadDocument
}

type indexRequest struct {
	Value []indexAction `json:"value"`
}

type indexingResult struct {
	Key          string `json:"key"`
	Status       bool   `json:"status"`
	ErrorMessage string `json:"errorMessage"`
	StatusCode   int    `json:"statusCode"`
}

type indexResponse struct {
	Value []indexingResult `json:"value"`
}

// UploadDocuments submits docs as one mergeOrUpload batch.
func (x *Index) UploadDocuments(ctx context.Context, docs []core.UploadDocument) (storage.IndexingResult, error) {
	var result storage.IndexingResult
	if len(docs) == 0 {
		return result, nil
	}

	req := indexRequest{Value: make([]indexAction, len(docs))}
	for i, doc := range docs {
		req.Value[i] = indexAction{Action: uploadAction, UploadDocument: doc}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return result, fmt.Errorf("marshaling documents: %w", err)
	}

	resp, err := x.do(ctx, http.MethodPost, x.indexURL("/docs/index"), body)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusMultiStatus:
	case http.StatusNotFound:
		return result, storage.ErrIndexNotFound
	default:
		return result, statusError("upload documents", resp)
	}

	var parsed indexResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return result, fmt.Errorf("decoding indexing response: %w", err)
	}
	for _, r := range parsed.Value {
		if r.Status {
			result.Succeeded++
			continue
		}
		result.Failed = append(result.Failed, storage.FailedDocument{
			Key:     r.Key,
			Message: fmt.Sprintf("%d: %s", r.StatusCode, r.ErrorMessage),
		})
	}
	if len(parsed.Value) != len(docs) {
		x.logger.Warn("indexing response size differs from batch",
			"submitted", len(docs), "reported", len(parsed.Value))
	}
	return result, nil
}

func (x *Index) indexURL(suffix string) string {
	return fmt.Sprintf("%s/indexes/%s%s?api-version=%s",
		x.endpoint, url.PathEscape(x.name), suffix, url.QueryEscape(x.apiVersion))
}

func (x *Index) do(ctx context.Context, method, target string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("api-key", x.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	x.logger.Debug("search request", "method", method, "bytes", len(body))
	resp, err := x.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling search service: %w", err)
	}
	return resp, nil
}

func statusError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		return fmt.Errorf("%s: search service returned status %d", op, resp.StatusCode)
	}
	return fmt.Errorf("%s: search service returned status %d: %s", op, resp.StatusCode, msg)
}
