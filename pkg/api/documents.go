package api

import (
	"context"
	"net/http"
	"time"
)

// Document processing statuses as reported by the backend.
const (
	DocumentStatusPending    = "PENDING"
	DocumentStatusProcessing = "PROCESSING"
	DocumentStatusCompleted  = "COMPLETED"
	DocumentStatusFailed     = "FAILED"
)

// Document is one uploaded document and its processing state.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CategoryID string    `json:"category_id,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// IsTerminalDocumentStatus reports whether a status is final: a document
// that reached it will never change state again.
func IsTerminalDocumentStatus(status string) bool {
	return status == DocumentStatusCompleted || status == DocumentStatusFailed
}

// ListDocuments returns all documents, optionally filtered by category.
func (c *Client) ListDocuments(ctx context.Context, categoryID string) ([]Document, error) {
	path := "/api/documents"
	if categoryID != "" {
		path += "?category_id=" + pathEscape(categoryID)
	}

	var out struct {
		Documents []Document `json:"documents"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

// GetDocumentStatus returns the current processing state of one document.
// For live status updates use notify.DocumentWatcher instead of polling.
func (c *Client) GetDocumentStatus(ctx context.Context, id string) (*Document, error) {
	var doc Document
	if err := c.do(ctx, http.MethodGet, "/api/documents/"+pathEscape(id)+"/status", nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteDocument removes a document. Admin only.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/documents/"+pathEscape(id), nil, nil)
}
