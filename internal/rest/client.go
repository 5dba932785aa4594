// Package rest wraps the marketplace REST endpoints the messaging core
// depends on. Everything else the backend offers (projects, categories,
// ads, profiles) lives outside this module.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/SrClauss/agapp-messaging/internal/model"
)

// Client is the set of REST collaborators consumed by the messaging
// core. Implementations must be safe for concurrent use.
type Client interface {
	// GetContactDetails fetches one conversation with its full message
	// log. This is the source of truth the socket stream reconciles
	// against.
	GetContactDetails(ctx context.Context, contactID string) (*model.Contact, error)

	// SendContactMessage posts a new message to the conversation.
	SendContactMessage(ctx context.Context, contactID, text string) error

	// MarkContactMessagesAsRead acknowledges every message in the
	// conversation on the backend.
	MarkContactMessagesAsRead(ctx context.Context, contactID string) error

	// RegisterPushToken associates the device's push token with the
	// authenticated session.
	RegisterPushToken(ctx context.Context, reg model.DeviceRegistration) error
}

// HTTPClient is the default JSON-over-HTTP implementation of Client.
type HTTPClient struct {
	base  string
	token func() string
	http  *http.Client
}

// NewHTTPClient creates a client against the given API base URL. token
// is called per request so a refreshed auth token takes effect without
// rebuilding the client.
func NewHTTPClient(baseURL string, token func() string) *HTTPClient {
	return &HTTPClient{
		base:  baseURL,
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPClient) GetContactDetails(ctx context.Context, contactID string) (*model.Contact, error) {
	var contact model.Contact
	path := "/contacts/" + url.PathEscape(contactID)
	if err := c.do(ctx, http.MethodGet, path, nil, &contact); err != nil {
		return nil, fmt.Errorf("get contact %s: %w", contactID, err)
	}
	return &contact, nil
}

func (c *HTTPClient) SendContactMessage(ctx context.Context, contactID, text string) error {
	path := "/contacts/" + url.PathEscape(contactID) + "/messages"
	body := map[string]string{"content": text}
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("send message to %s: %w", contactID, err)
	}
	return nil
}

func (c *HTTPClient) MarkContactMessagesAsRead(ctx context.Context, contactID string) error {
	path := "/contacts/" + url.PathEscape(contactID) + "/read"
	if err := c.do(ctx, http.MethodPut, path, nil, nil); err != nil {
		return fmt.Errorf("mark %s as read: %w", contactID, err)
	}
	return nil
}

func (c *HTTPClient) RegisterPushToken(ctx context.Context, reg model.DeviceRegistration) error {
	if err := c.do(ctx, http.MethodPost, "/notifications/register", reg, nil); err != nil {
		return fmt.Errorf("register push token: %w", err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
