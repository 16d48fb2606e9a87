package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is the HTTP boundary of the knowledge-base service. It speaks
// the server's response envelope and maps failure classes onto the
// error types in errors.go.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// SetToken installs the bearer credential used for authenticated calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) ClearToken() {
	c.token = ""
}

func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	body := map[string]string{"username": username, "password": password}
	var result LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ListKnowledgeBases(ctx context.Context) ([]KnowledgeBase, error) {
	var kbs []KnowledgeBase
	if err := c.do(ctx, http.MethodGet, "/knowledge-bases", nil, &kbs); err != nil {
		return nil, err
	}
	return kbs, nil
}

func (c *Client) GetKnowledgeBase(ctx context.Context, id uint) (*KnowledgeBase, error) {
	var kb KnowledgeBase
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/knowledge-bases/%d", id), nil, &kb); err != nil {
		return nil, err
	}
	return &kb, nil
}

func (c *Client) ListMembers(ctx context.Context, kbID uint) ([]Member, error) {
	var members []Member
	path := fmt.Sprintf("/knowledge-bases/%d/members", kbID)
	if err := c.do(ctx, http.MethodGet, path, nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *Client) AddMember(ctx context.Context, kbID, userID uint, role string) error {
	body := map[string]interface{}{"user_id": userID, "role": role}
	path := fmt.Sprintf("/knowledge-bases/%d/members", kbID)
	return c.do(ctx, http.MethodPost, path, body, nil)
}

func (c *Client) UpdateMemberRole(ctx context.Context, kbID, userID uint, role string) error {
	body := map[string]string{"role": role}
	path := fmt.Sprintf("/knowledge-bases/%d/members/%d", kbID, userID)
	return c.do(ctx, http.MethodPatch, path, body, nil)
}

func (c *Client) RemoveMember(ctx context.Context, kbID, userID uint) error {
	path := fmt.Sprintf("/knowledge-bases/%d/members/%d", kbID, userID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) ListDocuments(ctx context.Context, kbID uint) ([]Document, error) {
	var docs []Document
	path := fmt.Sprintf("/knowledge-bases/%d/documents", kbID)
	if err := c.do(ctx, http.MethodGet, path, nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Query issues one aggregated question. An empty kbIDs list means
// "search all knowledge bases accessible to the caller".
func (c *Client) Query(ctx context.Context, question string, kbIDs []uint, topK int) (*QueryResult, error) {
	body := map[string]interface{}{
		"question": question,
		"top_k":    topK,
		"kb_ids":   kbIDs,
	}
	var result QueryResult
	if err := c.do(ctx, http.MethodPost, "/knowledge-bases/query", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListActivities(ctx context.Context, scope string, limit int) ([]Activity, error) {
	values := url.Values{}
	if scope != "" {
		values.Set("scope", scope)
	}
	if limit > 0 {
		values.Set("limit", fmt.Sprintf("%d", limit))
	}
	path := "/activities"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var activities []Activity
	if err := c.do(ctx, http.MethodGet, path, nil, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body failed: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	var env envelope
	if decodeErr := json.NewDecoder(resp.Body).Decode(&env); decodeErr != nil && resp.StatusCode < 300 {
		return &TransportError{Op: method + " " + path, Err: fmt.Errorf("decode response failed: %w", decodeErr)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &AuthError{Message: env.Message}
	case resp.StatusCode == http.StatusForbidden:
		return &PermissionDeniedError{Message: env.Message}
	case resp.StatusCode >= 500:
		return &TransportError{
			Op:  method + " " + path,
			Err: fmt.Errorf("server error (status %d): %s", resp.StatusCode, env.Message),
		}
	case resp.StatusCode >= 300:
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &TransportError{Op: method + " " + path, Err: fmt.Errorf("decode payload failed: %w", err)}
		}
	}
	return nil
}
