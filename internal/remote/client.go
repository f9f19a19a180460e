// Package remote talks to a chat server over HTTP JSON and websocket and
// implements the collaborators the chat engine needs.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/wire"
	"go.uber.org/zap"
)

const DefaultTimeout = 30 * time.Second

var (
	_ chat.Directory     = (*Client)(nil)
	_ chat.MessageSource = (*Client)(nil)
	_ chat.MessageSender = (*Client)(nil)
	_ chat.ReadMarker    = (*Client)(nil)
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token. The empty token sends no header.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// Client is the HTTP side of the chat API.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	logger     *zap.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the server at baseURL. tokens may be nil for
// unauthenticated calls such as IssueToken.
func New(baseURL string, tokens TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListConversations returns the conversations the caller takes part in.
func (c *Client) ListConversations(ctx context.Context) ([]chat.Conversation, error) {
	var resp wire.ConversationsResponse
	if err := c.do(ctx, http.MethodGet, wire.PathConversations, nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	out := make([]chat.Conversation, len(resp.Conversations))
	for i, conv := range resp.Conversations {
		out[i] = conv.ToChat()
	}
	return out, nil
}

// GetMessages returns one page of a conversation in ascending order. Page 1
// is the most recent page.
func (c *Client) GetMessages(ctx context.Context, conversationID string, page chat.PageRequest) ([]chat.Message, error) {
	q := url.Values{}
	if page.Page > 0 {
		q.Set("page", strconv.Itoa(page.Page))
	}
	if page.Limit > 0 {
		q.Set("limit", strconv.Itoa(page.Limit))
	}

	var resp wire.MessagesResponse
	if err := c.do(ctx, http.MethodGet, wire.ConversationMessagesPath(conversationID), q, nil, &resp); err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	return wire.MessagesToChat(resp.Messages), nil
}

// SendMessage posts a message. Without a conversation id the server finds
// or creates the direct conversation with the recipient.
func (c *Client) SendMessage(ctx context.Context, req chat.SendRequest) (chat.Message, error) {
	body := wire.SendMessageRequest{
		RecipientID:    req.RecipientID,
		ConversationID: req.ConversationID,
		Body:           req.Body,
		ClientNonce:    req.Nonce,
	}
	var resp wire.SendMessageResponse
	if err := c.do(ctx, http.MethodPost, wire.PathMessages, nil, body, &resp); err != nil {
		return chat.Message{}, fmt.Errorf("send message: %w", err)
	}
	return resp.Message.ToChat(), nil
}

// MarkRead clears the caller's unread count for a conversation.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	if err := c.do(ctx, http.MethodPost, wire.ConversationReadPath(conversationID), nil, nil, nil); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// IssueToken asks a development server for a token for userID.
func (c *Client) IssueToken(ctx context.Context, userID string) (wire.TokenResponse, error) {
	var resp wire.TokenResponse
	if err := c.do(ctx, http.MethodPost, wire.PathToken, nil, wire.TokenRequest{UserID: userID}, &resp); err != nil {
		return wire.TokenResponse{}, fmt.Errorf("issue token: %w", err)
	}
	return resp, nil
}

// Health checks that the server answers.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, wire.PathHealth, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("token: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode >= 300 {
		se := &StatusError{Code: resp.StatusCode}
		var er wire.ErrorResponse
		if json.Unmarshal(data, &er) == nil {
			se.Message = er.Error
		}
		return se
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
