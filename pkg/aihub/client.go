// Package aihub is a client for the hosted document-conversation and
// chatbot query API.
package aihub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/auto-oracle/internal/resilience"
)

const defaultBaseURL = "https://aihub.instabase.com/api"

const (
	conversationsPath = "/v2/aihub/converse/conversations"
	queriesPath       = "/v2/queries"
)

// Client defines the remote operations used by the questionnaire pipeline.
type Client interface {
	CreateConversation(ctx context.Context, req CreateConversationRequest) (*Conversation, error)
	GetConversation(ctx context.Context, id ID) (*ConversationStatus, error)
	Converse(ctx context.Context, id ID, req ConverseRequest) (*ConverseResponse, error)
	RunQuery(ctx context.Context, req QueryRequest) (*QueryResponse, error)
	GetQueryStatus(ctx context.Context, id ID) (*QueryStatus, error)
}

// APIError is returned when the service responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("aihub: HTTP %d: %s", e.StatusCode, e.Body)
}

// RemoteDetail is the response body, or the status when the body is empty.
func (e *APIError) RemoteDetail() string {
	if body := strings.TrimSpace(e.Body); body != "" {
		return body
	}
	return fmt.Sprintf("HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// UploadError is returned when the service accepts a conversation request
// but rejects every uploaded file.
type UploadError struct {
	Name    string
	Message string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("aihub: upload of %s rejected: %s", e.Name, e.Message)
}

// RemoteDetail names the rejected file and the service's reason.
func (e *UploadError) RemoteDetail() string {
	return e.Name + ": " + e.Message
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default API root.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithContextID sets the IB-Context header naming the tenant or organization.
func WithContextID(ibContext string) Option {
	return func(c *httpClient) {
		c.ibContext = ibContext
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithBreakers routes calls through per-service circuit breakers.
func WithBreakers(sb *resilience.ServiceBreakers) Option {
	return func(c *httpClient) {
		c.breakers = sb
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey    string
	ibContext string
	baseURL   string
	http      *http.Client
	retry     resilience.RetryConfig
	breakers  *resilience.ServiceBreakers
}

// NewClient creates a client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry:    resilience.DefaultRetryConfig(),
		breakers: resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) CreateConversation(ctx context.Context, req CreateConversationRequest) (*Conversation, error) {
	body, contentType, err := conversationForm(req)
	if err != nil {
		return nil, eris.Wrap(err, "aihub: build conversation upload")
	}

	var resp Conversation
	if err := c.create(ctx, "conversations", conversationsPath, contentType, body, &resp); err != nil {
		return nil, eris.Wrap(err, "aihub: create conversation")
	}
	if len(resp.UploadStatus.Failure) > 0 && len(resp.UploadStatus.Success) == 0 {
		f := resp.UploadStatus.Failure[0]
		return nil, &UploadError{Name: f.Name, Message: f.Message}
	}
	return &resp, nil
}

func (c *httpClient) GetConversation(ctx context.Context, id ID) (*ConversationStatus, error) {
	var resp ConversationStatus
	if err := c.send(ctx, "conversations", http.MethodGet, conversationsPath+"/"+string(id), "", nil, &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("aihub: get conversation %s", id))
	}
	return &resp, nil
}

func (c *httpClient) Converse(ctx context.Context, id ID, req ConverseRequest) (*ConverseResponse, error) {
	if req.Mode == "" {
		req.Mode = "default"
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "aihub: marshal converse request")
	}

	var resp ConverseResponse
	path := fmt.Sprintf("%s/%s/prompts", conversationsPath, id)
	if err := c.send(ctx, "conversations", http.MethodPost, path, "application/json", body, &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("aihub: converse %s", id))
	}
	return &resp, nil
}

func (c *httpClient) RunQuery(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "aihub: marshal query request")
	}

	var resp QueryResponse
	if err := c.create(ctx, "queries", queriesPath, "application/json", body, &resp); err != nil {
		return nil, eris.Wrap(err, "aihub: run query")
	}
	return &resp, nil
}

func (c *httpClient) GetQueryStatus(ctx context.Context, id ID) (*QueryStatus, error) {
	var resp QueryStatus
	if err := c.send(ctx, "queries", http.MethodGet, queriesPath+"/"+string(id), "", nil, &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("aihub: get query status %s", id))
	}
	return &resp, nil
}

// send performs one logical call, retrying transient failures behind the
// service's circuit breaker. body is replayed on every attempt.
func (c *httpClient) send(ctx context.Context, service, method, path, contentType string, body []byte, out any) error {
	return c.sendWith(ctx, c.retry, service, method, path, contentType, body, out)
}

// create is send for a POST that makes a new conversation or query. It is
// repeated only when the service cannot have acted on it, so a lost response
// never yields a duplicate.
func (c *httpClient) create(ctx context.Context, service, path, contentType string, body []byte, out any) error {
	cfg := c.retry
	cfg.ShouldRetry = resilience.IsUnprocessed
	return c.sendWith(ctx, cfg, service, http.MethodPost, path, contentType, body, out)
}

func (c *httpClient) sendWith(ctx context.Context, cfg resilience.RetryConfig, service, method, path, contentType string, body []byte, out any) error {
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("aihub", method+" "+path)
	}
	cb := c.breakers.Get(service)

	return resilience.Do(ctx, cfg, func(ctx context.Context) error {
		return cb.Execute(ctx, func(ctx context.Context) error {
			var r io.Reader
			if body != nil {
				r = bytes.NewReader(body)
			}
			req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
			if err != nil {
				return eris.Wrap(err, "create request")
			}
			if contentType != "" {
				req.Header.Set("Content-Type", contentType)
			}
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
			if c.ibContext != "" {
				req.Header.Set("IB-Context", c.ibContext)
			}
			return c.do(req, out)
		})
	})
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(data)}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}

// conversationForm encodes the multipart body for a conversation upload.
func conversationForm(req CreateConversationRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("name", req.Name); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("description", req.Description); err != nil {
		return nil, "", err
	}
	for _, path := range req.Files {
		if err := addFilePart(w, path); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func addFilePart(w *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "open %s", path)
	}
	defer f.Close() //nolint:errcheck

	part, err := w.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return eris.Wrapf(err, "copy %s", path)
	}
	return nil
}
