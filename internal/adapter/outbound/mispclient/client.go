package mispclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/i2y/misperer/internal/domain"
	"github.com/i2y/misperer/internal/usecase"
)

const userAgent = "misperer/0.1.0"

// refPattern accepts numeric ids and uuids, the only identifier forms the
// platform routes on. Anything else never reaches a URL path.
var refPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// ErrInvalidReference is returned for identifiers that are not ids or uuids.
var ErrInvalidReference = errors.New("invalid identifier")

// APIError is a non-2xx answer from the platform.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("MISP API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// Client implements usecase.MISPClient against the MISP REST API.
type Client struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

var _ usecase.MISPClient = (*Client)(nil)

// NewHTTPClient returns the HTTP client used to talk to the platform.
// verifyCert=false disables TLS certificate verification, for instances with
// self-signed certificates.
func NewHTTPClient(verifyCert bool, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !verifyCert {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // operator opt-in
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// New creates a platform client. baseURL must be an absolute http(s) URL.
func New(baseURL, apiKey string, client *http.Client, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid MISP URL %q: %w", baseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid MISP URL %q: must be an absolute http(s) URL", baseURL)
	}
	if apiKey == "" {
		return nil, errors.New("MISP API key is empty")
	}
	if client == nil {
		client = http.DefaultClient
	}
	u.Path = strings.TrimRight(u.Path, "/")
	return &Client{
		baseURL: u,
		apiKey:  apiKey,
		client:  client,
		logger:  logger.With("component", "misp_client"),
	}, nil
}

func ref(id string) (string, error) {
	if !refPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidReference, id)
	}
	return id, nil
}

// do executes one API call. body, when non-nil, is sent as JSON.
func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	u := *c.baseURL
	u.Path = u.Path + "/" + path
	log := c.logger.With(slog.String("method", method), slog.String("path", u.Path))

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			log.Error("Failed to marshal request body", slog.Any("error", err))
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		log.Error("Failed to create HTTP request", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debug("Executing HTTP request")
	resp, err := c.client.Do(req)
	if err != nil {
		log.Error("HTTP request failed", slog.Any("error", err))
		return nil, fmt.Errorf("request execution failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("Failed to read response body", slog.Any("error", err))
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	log = log.With(slog.Int("status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, respBody),
			Body:       string(respBody),
		}
		log.Warn("Received non-success status code", slog.String("message", apiErr.Message))
		return nil, apiErr
	}
	log.Debug("Received HTTP response", slog.Int("size", len(respBody)))
	return json.RawMessage(respBody), nil
}

// errorMessage picks the most specific message out of a platform error body.
func errorMessage(status int, body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"message", "errors", "name"} {
			if r := gjson.GetBytes(body, path); r.Exists() && r.String() != "" {
				return r.String()
			}
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 {
		return text
	}
	return http.StatusText(status)
}

// Search runs restSearch on the query's controller.
func (c *Client) Search(ctx context.Context, query domain.SearchQuery) (json.RawMessage, error) {
	switch query.Controller {
	case domain.ControllerEvents, domain.ControllerAttributes:
	default:
		return nil, fmt.Errorf("unsupported search controller %q", query.Controller)
	}
	if query.ReturnFormat == "" {
		query.ReturnFormat = "json"
	}
	return c.do(ctx, http.MethodPost, query.Controller+"/restSearch", query)
}

// BuildComplexQuery combines values into the boolean filter form.
func (c *Client) BuildComplexQuery(or, and, not []string) domain.ComplexQuery {
	return domain.ComplexQuery{Or: or, And: and, Not: not}
}

// GetEvent returns the full event, or its metadata through restSearch.
func (c *Client) GetEvent(ctx context.Context, eventRef string, metadataOnly bool) (json.RawMessage, error) {
	id, err := ref(eventRef)
	if err != nil {
		return nil, err
	}
	if !metadataOnly {
		return c.do(ctx, http.MethodGet, "events/view/"+id, nil)
	}
	filter := map[string]any{"returnFormat": "json", "metadata": true}
	if strings.Contains(id, "-") {
		filter["uuid"] = id
	} else {
		filter["eventid"] = id
	}
	return c.do(ctx, http.MethodPost, "events/restSearch", filter)
}

// AddEvent creates an event.
func (c *Client) AddEvent(ctx context.Context, event domain.Event) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "events/add", domain.EventEnvelope{Event: event})
}

// UpdateEvent sends the full event back to the platform.
func (c *Client) UpdateEvent(ctx context.Context, event domain.Event) (json.RawMessage, error) {
	key := string(event.ID)
	if key == "" {
		key = event.UUID
	}
	id, err := ref(key)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, "events/edit/"+id, domain.EventEnvelope{Event: event})
}

// PublishEvent publishes an event.
func (c *Client) PublishEvent(ctx context.Context, eventID string) (json.RawMessage, error) {
	return c.post(ctx, "events/publish/", eventID)
}

// DeleteEvent deletes an event.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) (json.RawMessage, error) {
	return c.post(ctx, "events/delete/", eventID)
}

// DeleteAttribute soft-deletes an attribute, or removes it when hard is set.
func (c *Client) DeleteAttribute(ctx context.Context, attributeID string, hard bool) (json.RawMessage, error) {
	id, err := ref(attributeID)
	if err != nil {
		return nil, err
	}
	path := "attributes/delete/" + id
	if hard {
		path += "/1"
	}
	return c.do(ctx, http.MethodPost, path, map[string]any{})
}

// DeleteObject deletes an object.
func (c *Client) DeleteObject(ctx context.Context, objectID string) (json.RawMessage, error) {
	return c.post(ctx, "objects/delete/", objectID)
}

// DeleteTag deletes a tag.
func (c *Client) DeleteTag(ctx context.Context, tagID string) (json.RawMessage, error) {
	return c.post(ctx, "tags/delete/", tagID)
}

// Organisations lists the local organisations.
func (c *Client) Organisations(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "organisations/index/scope:local", nil)
}

// Logs lists audit log entries.
func (c *Client) Logs(ctx context.Context, query domain.LogQuery) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "admin/logs/index", query)
}

// Users lists all users.
func (c *Client) Users(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "admin/users/index", nil)
}

// AddUser creates a user.
func (c *Client) AddUser(ctx context.Context, user domain.User) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "admin/users/add", user)
}

// EditUser changes the given fields of a user.
func (c *Client) EditUser(ctx context.Context, userID string, changes domain.User) (json.RawMessage, error) {
	id, err := ref(userID)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, "admin/users/edit/"+id, changes)
}

// DeleteUser deletes a user.
func (c *Client) DeleteUser(ctx context.Context, userID string) (json.RawMessage, error) {
	return c.post(ctx, "admin/users/delete/", userID)
}

// Version returns the platform version, proving the URL and key work.
func (c *Client) Version(ctx context.Context) (string, error) {
	raw, err := c.do(ctx, http.MethodGet, "servers/getVersion", nil)
	if err != nil {
		return "", err
	}
	v := gjson.GetBytes(raw, "version")
	if !v.Exists() {
		return "", fmt.Errorf("unexpected version response: %s", strings.TrimSpace(string(raw)))
	}
	return v.String(), nil
}

// post sends an empty JSON body to prefix+id.
func (c *Client) post(ctx context.Context, prefix, rawID string) (json.RawMessage, error) {
	id, err := ref(rawID)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, prefix+id, map[string]any{})
}
