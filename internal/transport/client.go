package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/thinkwright/tastebuddy-chat/internal/chat"
)

// Client talks to the TasteBuddy backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every request. Zero leaves requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.httpClient
			hc.Timeout = d
			c.httpClient = &hc
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Reply is the synchronous /chat response. Rendering never uses it; the
// appended entries arrive through the next history fetch.
type Reply struct {
	Text            string       `json:"reply"`
	Harmony         *float64     `json:"harmony_score"`
	Recommendations []chat.Venue `json:"restaurants"`
}

type chatRequest struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Message  string `json:"message"`
}

func (c *Client) Submit(ctx context.Context, participantID, displayName, text string) (Reply, error) {
	const op = "submit message"
	body, err := c.do(ctx, op, http.MethodPost, "/chat", chatRequest{
		UserID:   participantID,
		UserName: displayName,
		Message:  text,
	})
	if err != nil {
		return Reply{}, err
	}

	var reply Reply
	if len(bytes.TrimSpace(body)) == 0 {
		return reply, nil
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return Reply{}, fmt.Errorf("%s: %w: %v", op, ErrUndecodedReply, err)
	}
	return reply, nil
}

// FetchHistory returns the whole shared log from the beginning.
func (c *Client) FetchHistory(ctx context.Context) ([]chat.LogEntry, error) {
	const op = "fetch history"
	body, err := c.do(ctx, op, http.MethodGet, "/history", nil)
	if err != nil {
		return nil, err
	}
	entries, err := chat.DecodeLog(body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return entries, nil
}

func (c *Client) Join(ctx context.Context, displayName string) error {
	_, err := c.do(ctx, "announce join", http.MethodPost, "/join", map[string]string{"name": displayName})
	return err
}

func (c *Client) ResetMemory(ctx context.Context) error {
	_, err := c.do(ctx, "reset memory", http.MethodPost, "/reset_memory", nil)
	return err
}

// Export asks the backend to render venues as a PDF document.
func (c *Client) Export(ctx context.Context, venues []chat.Venue) ([]byte, error) {
	const op = "export"
	if len(venues) == 0 {
		return nil, &PreconditionError{Op: op, Reason: "no recommendations to export yet"}
	}
	return c.do(ctx, op, http.MethodPost, "/export_pdf", venues)
}

func (c *Client) do(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ServiceError{Op: op, Status: resp.StatusCode, Detail: errorDetail(resp, body)}
	}
	return body, nil
}

// maxDetailWidth caps raw error bodies shown to the user.
const maxDetailWidth = 300

// errorDetail prefers the backend's {"detail": ...}, then the raw body,
// then the status text.
func errorDetail(resp *http.Response, body []byte) string {
	var parsed struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Detail) > 0 {
		var s string
		if err := json.Unmarshal(parsed.Detail, &s); err != nil {
			// FastAPI validation errors send a structured detail
			return string(parsed.Detail)
		} else if s != "" {
			return s
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return runewidth.Truncate(text, maxDetailWidth, "…")
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return resp.Status
}
