package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/roach88/boltview/internal/apperr"
	"github.com/roach88/boltview/internal/store"
)

// Client calls a remote server.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a client for the server at baseURL. A nil hc uses
// http.DefaultClient.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

// ListDatabases returns the database names.
func (c *Client) ListDatabases(ctx context.Context) ([]string, error) {
	var resp ListDatabasesResponse
	err := c.call(ctx, PathListDatabases, ListDatabasesRequest{}, &resp)
	return resp.Names, err
}

// Get returns the value at key.
func (c *Client) Get(ctx context.Context, db string, key []byte) ([]byte, bool, error) {
	var resp GetResponse
	err := c.call(ctx, PathGet, GetRequest{DB: db, Key: key}, &resp)
	return resp.Value, resp.Found, err
}

// Put sets key to value in the server's pending write.
func (c *Client) Put(ctx context.Context, db string, key, value []byte) error {
	return c.call(ctx, PathPut, PutRequest{DB: db, Key: key, Value: value}, &PutResponse{})
}

// Delete removes key in the server's pending write.
func (c *Client) Delete(ctx context.Context, db string, key []byte) error {
	return c.call(ctx, PathDelete, DeleteRequest{DB: db, Key: key}, &DeleteResponse{})
}

// Commit commits the server's pending write.
func (c *Client) Commit(ctx context.Context) error {
	return c.call(ctx, PathCommit, CommitRequest{}, &CommitResponse{})
}

// Abort discards the server's pending write.
func (c *Client) Abort(ctx context.Context) error {
	return c.call(ctx, PathAbort, AbortRequest{}, &AbortResponse{})
}

// Stats returns statistics for db.
func (c *Client) Stats(ctx context.Context, db string) (store.DBStats, error) {
	var resp StatsResponse
	err := c.call(ctx, PathStats, StatsRequest{DB: db}, &resp)
	return resp.Stats, err
}

// call posts req to path and decodes the response into out. Error bodies
// become *apperr.Error with the server's code.
func (c *Client) call(ctx context.Context, path string, req, out any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")

	hresp, err := c.http.Do(hreq)
	if err != nil {
		return apperr.Wrap(apperr.CodeBusy, "call "+path, err)
	}
	defer hresp.Body.Close()

	if hresp.StatusCode != http.StatusOK {
		var e ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(hresp.Body, maxBody))
		if err := json.Unmarshal(data, &e); err != nil || e.Code == "" {
			return fmt.Errorf("call %s: unexpected status %s", path, hresp.Status)
		}
		return apperr.New(apperr.Code(e.Code), "call "+path, e.Message)
	}
	if err := json.NewDecoder(hresp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
