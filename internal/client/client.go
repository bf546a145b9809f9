package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"flulance/internal/services/dto"
)

const (
	DefaultTimeout = 10 * time.Second
	apiPrefix      = "/api/v1"
)

// Client is a typed HTTP client for the flulance API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for baseURL (scheme and host, without /api/v1)
// authenticating with a bearer token.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: timeout},
	}
}

// Ping checks whether the API and its database are reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) ListMatches(ctx context.Context, status string) (dto.MatchListResponse, error) {
	var resp dto.MatchListResponse
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	err := c.do(ctx, http.MethodGet, "/matches", query, nil, &resp)
	return resp, err
}

// ListMessages returns messages of a match oldest first. With after set, only
// messages strictly newer than that message are returned.
func (c *Client) ListMessages(ctx context.Context, matchID, after string, limit int) (dto.MessageListResponse, error) {
	var resp dto.MessageListResponse
	query := url.Values{}
	if after != "" {
		query.Set("after", after)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	err := c.do(ctx, http.MethodGet, "/matches/"+url.PathEscape(matchID)+"/messages", query, nil, &resp)
	return resp, err
}

func (c *Client) SendMessage(ctx context.Context, matchID, text string) (dto.MessageResponse, error) {
	var resp dto.MessageResponse
	err := c.do(ctx, http.MethodPost, "/matches/"+url.PathEscape(matchID)+"/messages", nil,
		dto.SendMessageRequest{Text: text}, &resp)
	return resp, err
}

// SendAttachment uploads one file with optional text as a multipart form.
func (c *Client) SendAttachment(ctx context.Context, matchID, text, fileName string, content io.Reader) (dto.MessageResponse, error) {
	var resp dto.MessageResponse

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if text != "" {
		if err := form.WriteField("text", text); err != nil {
			return resp, err
		}
	}
	part, err := form.CreateFormFile("file", fileName)
	if err != nil {
		return resp, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return resp, fmt.Errorf("read attachment: %w", err)
	}
	if err := form.Close(); err != nil {
		return resp, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/matches/"+url.PathEscape(matchID)+"/messages/with-attachment", nil, &buf)
	if err != nil {
		return resp, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	return resp, c.send(req, &resp)
}

func (c *Client) MarkMessageRead(ctx context.Context, messageID string) (dto.MessageResponse, error) {
	var resp dto.MessageResponse
	err := c.do(ctx, http.MethodPatch, "/messages/"+url.PathEscape(messageID)+"/read", nil, nil, &resp)
	return resp, err
}

// MarkMatchRead marks every message addressed to the caller in a match read.
func (c *Client) MarkMatchRead(ctx context.Context, matchID string) (int64, error) {
	var resp dto.UpdatedResponse
	err := c.do(ctx, http.MethodPost, "/matches/"+url.PathEscape(matchID)+"/read", nil, nil, &resp)
	return resp.Updated, err
}

func (c *Client) UnreadCount(ctx context.Context) (int64, error) {
	var resp dto.UnreadCountResponse
	err := c.do(ctx, http.MethodGet, "/notifications/unread-count", nil, nil, &resp)
	return resp.UnreadCount, err
}

// ListNotifications returns the caller's notifications newest first.
func (c *Client) ListNotifications(ctx context.Context, criteria dto.NotificationCriteria) (dto.NotificationListResponse, error) {
	var resp dto.NotificationListResponse
	query := url.Values{}
	if criteria.UnreadOnly {
		query.Set("unread_only", "true")
	}
	if criteria.Page > 0 {
		query.Set("page", strconv.Itoa(criteria.Page))
	}
	if criteria.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(criteria.PageSize))
	}
	err := c.do(ctx, http.MethodGet, "/notifications", query, nil, &resp)
	return resp, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) (dto.NotificationResponse, error) {
	var resp dto.NotificationResponse
	err := c.do(ctx, http.MethodPatch, "/notifications/"+url.PathEscape(id)+"/read", nil, nil, &resp)
	return resp, err
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) (int64, error) {
	var resp dto.UpdatedResponse
	err := c.do(ctx, http.MethodPost, "/notifications/mark-all-read", nil, nil, &resp)
	return resp.Updated, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, path, query, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	endpoint := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
