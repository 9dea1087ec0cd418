package api

import (
	"context"
	"net/http"
	"time"
)

// ConfigEntry is one key of the server-side configuration store (pricing
// settings, feature toggles).
type ConfigEntry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by,omitempty"`
}

// ConfigAuditEntry is one historical change to a configuration key.
type ConfigAuditEntry struct {
	Key       string    `json:"key"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	ChangedAt time.Time `json:"changed_at"`
	ChangedBy string    `json:"changed_by"`
}

// ListConfig returns all server configuration entries. Admin only.
func (c *Client) ListConfig(ctx context.Context) ([]ConfigEntry, error) {
	var out struct {
		Entries []ConfigEntry `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/config", nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// GetConfig returns one configuration entry by key. Admin only.
func (c *Client) GetConfig(ctx context.Context, key string) (*ConfigEntry, error) {
	var entry ConfigEntry
	if err := c.do(ctx, http.MethodGet, "/api/config/"+pathEscape(key), nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// SetConfig updates one configuration entry. The change lands in the audit
// history server-side. Admin only.
func (c *Client) SetConfig(ctx context.Context, key, value string) (*ConfigEntry, error) {
	body := struct {
		Value string `json:"value"`
	}{Value: value}

	var entry ConfigEntry
	if err := c.do(ctx, http.MethodPut, "/api/config/"+pathEscape(key), body, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ConfigAudit returns the change history of one configuration key, newest
// first. Admin only.
func (c *Client) ConfigAudit(ctx context.Context, key string) ([]ConfigAuditEntry, error) {
	var out struct {
		Audit []ConfigAuditEntry `json:"audit"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/config/"+pathEscape(key)+"/audit", nil, &out); err != nil {
		return nil, err
	}
	return out.Audit, nil
}
