// Package kintone is a small client for the kintone REST record API.
package kintone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	skillerrors "github.com/firefly-engineering/skillctl/internal/errors"
)

const (
	defaultTimeout = 30 * time.Second
	// pageSize is the largest limit the records endpoint accepts.
	pageSize = 500
)

// Field is one field value in a record.
type Field struct {
	Type  string `json:"type,omitempty"`
	Value any    `json:"value"`
}

// Record maps field codes to values.
type Record map[string]Field

// RecordFromValues wraps plain values as kintone fields. Values that are
// already {"value": ...} objects are kept as they are.
func RecordFromValues(values map[string]any) Record {
	rec := make(Record, len(values))
	for code, v := range values {
		if m, ok := v.(map[string]any); ok {
			if inner, ok := m["value"]; ok {
				typ, _ := m["type"].(string)
				rec[code] = Field{Type: typ, Value: inner}
				continue
			}
		}
		rec[code] = Field{Value: v}
	}
	return rec
}

// ID returns the record's $id field, or "" if absent.
func (r Record) ID() string {
	if f, ok := r["$id"]; ok {
		return fmt.Sprint(f.Value)
	}
	return ""
}

// APIError is the error body kintone returns with a non-2xx status.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kintone %s (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Kind classifies the error into an envelope type.
func (e *APIError) Kind() string {
	switch {
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden ||
		strings.HasPrefix(e.Code, "CB_WA") || e.Code == "GAIA_IA02" || e.Code == "CB_NO02":
		return skillerrors.TypeAuth
	case e.Status == http.StatusNotFound || e.Code == "GAIA_RE01" || e.Code == "GAIA_AP01":
		return skillerrors.TypeNotFound
	case e.Code == "CB_VA01" || e.Status == http.StatusBadRequest:
		return skillerrors.TypeValidation
	default:
		return skillerrors.TypeRemote
	}
}

// ToSkillError converts client errors into SkillErrors for the CLI boundary.
func ToSkillError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if skillerrors.As(err, &apiErr) {
		return skillerrors.Wrap(skillerrors.ExitRemoteError, apiErr.Kind(), "kintone request failed", err)
	}
	return skillerrors.RemoteError("kintone", err)
}

// Client talks to one kintone app.
type Client struct {
	baseURL    string
	app        int
	token      string
	httpClient *http.Client
}

// NewClient returns a client for app on baseURL (https://<sub>.cybozu.com).
func NewClient(baseURL string, app int, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		app:        app,
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// App returns the app id the client targets.
func (c *Client) App() int {
	return c.app
}

// GetRecord fetches one record by id.
func (c *Client) GetRecord(ctx context.Context, id int) (Record, error) {
	q := url.Values{}
	q.Set("app", strconv.Itoa(c.app))
	q.Set("id", strconv.Itoa(id))

	var resp struct {
		Record Record `json:"record"`
	}
	if err := c.do(ctx, http.MethodGet, "/k/v1/record.json", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Record, nil
}

// GetRecords runs a kintone query and returns one page of results.
func (c *Client) GetRecords(ctx context.Context, query string, fields []string) ([]Record, error) {
	q := url.Values{}
	q.Set("app", strconv.Itoa(c.app))
	if query != "" {
		q.Set("query", query)
	}
	for i, f := range fields {
		q.Set(fmt.Sprintf("fields[%d]", i), f)
	}

	var resp struct {
		Records []Record `json:"records"`
	}
	if err := c.do(ctx, http.MethodGet, "/k/v1/records.json", q, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Records == nil {
		return []Record{}, nil
	}
	return resp.Records, nil
}

// GetAllRecords pages through a query with limit/offset. query must not
// carry its own limit or offset clause.
func (c *Client) GetAllRecords(ctx context.Context, query string, fields []string) ([]Record, error) {
	var all []Record
	for offset := 0; ; offset += pageSize {
		page, err := c.GetRecords(ctx, strings.TrimSpace(fmt.Sprintf("%s limit %d offset %d", query, pageSize, offset)), fields)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			break
		}
	}
	if all == nil {
		all = []Record{}
	}
	return all, nil
}

// AddRecord creates a record and returns its id and revision.
func (c *Client) AddRecord(ctx context.Context, rec Record) (id, revision string, err error) {
	body := map[string]any{"app": c.app, "record": rec}
	var resp struct {
		ID       string `json:"id"`
		Revision string `json:"revision"`
	}
	if err := c.do(ctx, http.MethodPost, "/k/v1/record.json", nil, body, &resp); err != nil {
		return "", "", err
	}
	return resp.ID, resp.Revision, nil
}

// UpdateRecord updates a record. revision -1 skips the optimistic check.
func (c *Client) UpdateRecord(ctx context.Context, id int, rec Record, revision int) (string, error) {
	body := map[string]any{"app": c.app, "id": id, "record": rec}
	if revision >= 0 {
		body["revision"] = revision
	}
	var resp struct {
		Revision string `json:"revision"`
	}
	if err := c.do(ctx, http.MethodPut, "/k/v1/record.json", nil, body, &resp); err != nil {
		return "", err
	}
	return resp.Revision, nil
}

// DeleteRecords deletes records by id.
func (c *Client) DeleteRecords(ctx context.Context, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	q := url.Values{}
	q.Set("app", strconv.Itoa(c.app))
	for i, id := range ids {
		q.Set(fmt.Sprintf("ids[%d]", i), strconv.Itoa(id))
	}
	return c.do(ctx, http.MethodDelete, "/k/v1/records.json", q, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-Cybozu-API-Token", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
