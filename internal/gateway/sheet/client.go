// Package sheet talks to a Lark/Feishu Bitable gateway over JSON-RPC via
// a subprocess's stdio (no first-party Lark SDK exists in the reference
// stack; grounded on the pack's io.Pipe JSON-RPC framing pattern).
package sheet

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"synctl/internal/gateway"
)

// Client is a JSON-RPC client for the sheet gateway subprocess.
type Client struct {
	conn *rpcConn
}

// Dial starts the gateway subprocess at path and returns a connected Client.
func Dial(ctx context.Context, path string, args ...string) (*Client, error) {
	conn, err := dialSubprocess(ctx, path, args...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Close terminates the gateway subprocess.
func (c *Client) Close() error {
	return c.conn.close()
}

// Table describes one Bitable table.
type Table struct {
	AppToken string `json:"appToken"`
	TableID  string `json:"tableId"`
	Name     string `json:"name"`
}

// Record is the gateway-shape representation of a Bitable row.
type Record struct {
	RecordID  string                 `json:"recordId"`
	Fields    map[string]interface{} `json:"fields"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// CreateTable creates a new Bitable table in the given app.
func (c *Client) CreateTable(ctx context.Context, appToken, name string) (Table, error) {
	var table Table
	if err := c.doCall("createTable", map[string]string{"appToken": appToken, "name": name}, &table); err != nil {
		return Table{}, err
	}
	return table, nil
}

// ListTables lists every table in an app.
func (c *Client) ListTables(ctx context.Context, appToken string) ([]Table, error) {
	var tables []Table
	if err := c.doCall("listTables", map[string]string{"appToken": appToken}, &tables); err != nil {
		return nil, err
	}
	return tables, nil
}

// GetTable fetches a single table's metadata.
func (c *Client) GetTable(ctx context.Context, appToken, tableID string) (Table, error) {
	var table Table
	if err := c.doCall("getTable", map[string]string{"appToken": appToken, "tableId": tableID}, &table); err != nil {
		return Table{}, err
	}
	return table, nil
}

// CreateRecord inserts a row and returns its assigned record id.
func (c *Client) CreateRecord(ctx context.Context, appToken, tableID string, fields map[string]interface{}) (Record, error) {
	var rec Record
	err := c.doCall("createRecord", map[string]interface{}{
		"appToken": appToken, "tableId": tableID, "fields": fields,
	}, &rec)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// SearchRecords lists rows, optionally filtered to those modified at or
// after since. Tables whose registry entry disables since-filtering
// should be scanned with a zero since and reconciled by content hash.
func (c *Client) SearchRecords(ctx context.Context, appToken, tableID string, since time.Time) ([]Record, error) {
	var records []Record
	params := map[string]interface{}{"appToken": appToken, "tableId": tableID}
	if !since.IsZero() {
		params["since"] = since.Format(time.RFC3339)
	}
	if err := c.doCall("searchRecords", params, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// UpdateRecord patches a row's fields.
func (c *Client) UpdateRecord(ctx context.Context, appToken, tableID, recordID string, fields map[string]interface{}) (Record, error) {
	var rec Record
	err := c.doCall("updateRecord", map[string]interface{}{
		"appToken": appToken, "tableId": tableID, "recordId": recordID, "fields": fields,
	}, &rec)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Contact is the resolved identity the Identity Resolver persists onto a Member.
type Contact struct {
	Email  string `json:"email"`
	OpenID string `json:"openId"`
}

// ResolveContact looks up a workspace member's open id by email.
func (c *Client) ResolveContact(ctx context.Context, email string) (Contact, error) {
	var contact Contact
	if err := c.doCall("resolveContact", map[string]string{"email": email}, &contact); err != nil {
		return Contact{}, err
	}
	return contact, nil
}

// SendMessage sends a direct message to a workspace member by open id,
// used by the Dispatcher's notifyMember handler.
func (c *Client) SendMessage(ctx context.Context, openID, text string) error {
	return c.doCall("sendMessage", map[string]string{"openId": openID, "text": text}, nil)
}

func (c *Client) doCall(method string, params interface{}, out interface{}) error {
	raw, err := c.conn.call(method, params)
	if err != nil {
		return classify(err)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal %s result: %w", method, err)
	}
	return nil
}

// classify maps a JSON-RPC error into the shared gateway taxonomy. Codes
// follow the gateway subprocess's own convention: HTTP-style status
// codes reused as JSON-RPC error codes, since it's a thin wrapper over a
// REST-shaped upstream API.
func classify(err error) error {
	rpcErr, ok := err.(*jsonRPCErr)
	if !ok {
		return fmt.Errorf("%w: %v", gateway.ErrTransient, err)
	}
	switch rpcErr.code {
	case 401, 403:
		return fmt.Errorf("%w: %v", gateway.ErrUnauthorized, rpcErr)
	case 404:
		return fmt.Errorf("%w: %v", gateway.ErrNotFound, rpcErr)
	case 409:
		return fmt.Errorf("%w: %v", gateway.ErrConflict, rpcErr)
	case 429:
		return fmt.Errorf("%w: %v", gateway.ErrRateLimited, rpcErr)
	case 400, -32602, -32600:
		return fmt.Errorf("%w: %v", gateway.ErrInvalidRequest, rpcErr)
	default:
		return fmt.Errorf("%w: %v", gateway.ErrTransient, rpcErr)
	}
}
