// Package gateway is the HTTP boundary to the remote catalog service. Every
// call is a single synchronous request/response: no retries, no backoff.
// Failures carry the service's verbatim status text and identify the
// operation and item they belong to.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/maercaestro/poc-data/internal/catalog"
)

// Error is any non-success gateway outcome, transport failures included.
// It is never retried automatically and must reach the operator with the
// operation/item context intact.
type Error struct {
	Op         string
	ItemID     string
	StatusCode int
	Status     string
}

func (e *Error) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("%s (item %s): %s", e.Op, e.ItemID, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Status)
}

type Client struct {
	BaseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, op, itemID, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, ItemID: itemID, Status: err.Error()}
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return &Error{Op: op, ItemID: itemID, Status: err.Error()}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Timeouts and transport failures surface through the same path
		// as HTTP rejections.
		return &Error{Op: op, ItemID: itemID, Status: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Op: op, ItemID: itemID, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &Error{Op: op, ItemID: itemID, Status: "malformed response: " + err.Error()}
		}
	}
	return nil
}

// CreateItem persists a new item under the scope and returns it with its
// server-assigned id.
func (c *Client) CreateItem(ctx context.Context, scope catalog.Scope, item catalog.Item) (catalog.Item, error) {
	path := fmt.Sprintf("/api/catalog/%s/page/%d/items", scope.SourceID, scope.Page)
	var created catalog.Item
	if err := c.do(ctx, "create item", item.ID.String(), http.MethodPost, path, item, &created); err != nil {
		return catalog.Item{}, err
	}
	return created, nil
}

func (c *Client) UpdateItem(ctx context.Context, id catalog.ItemID, patch catalog.Patch) (catalog.Item, error) {
	path := fmt.Sprintf("/api/item/%s", id.String())
	var updated catalog.Item
	if err := c.do(ctx, "update item", id.String(), http.MethodPatch, path, patch, &updated); err != nil {
		return catalog.Item{}, err
	}
	return updated, nil
}

func (c *Client) ListPage(ctx context.Context, scope catalog.Scope) (*catalog.Page, error) {
	path := fmt.Sprintf("/api/catalog/%s/page/%d", scope.SourceID, scope.Page)
	var page catalog.Page
	if err := c.do(ctx, "list page", "", http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ExportCatalog returns the server-side consolidation untouched; the caller
// does not reshape it.
func (c *Client) ExportCatalog(ctx context.Context, sourceID string) (json.RawMessage, error) {
	path := fmt.Sprintf("/api/export/%s", sourceID)
	var doc json.RawMessage
	if err := c.do(ctx, "export catalog", "", http.MethodPost, path, nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
