package mcpcmder

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/irobothq/irobot/pkg/api"
	"github.com/irobothq/irobot/pkg/chat"
)

var (
	askToolName    = "ask_irobot"
	askDescription = "Ask the IroBot assistant a question. Streams the full answer and returns it with its document sources. Pass conversation_id to continue an earlier exchange."

	documentStatusToolName    = "document_status"
	documentStatusDescription = "Look up the processing status of an uploaded document by ID. Status is one of PENDING, PROCESSING, COMPLETED or FAILED."
)

type tools struct {
	opts Options
}

// AskInput represents the input arguments for the ask_irobot tool.
type AskInput struct {
	Question       string `json:"question" jsonschema:"the question to ask the assistant"`
	ConversationID string `json:"conversation_id,omitempty" jsonschema:"conversation to continue (optional, a new one starts when omitted)"`
}

// AskOutput represents the output of the ask_irobot tool.
type AskOutput struct {
	Answer         string   `json:"answer"`
	ConversationID string   `json:"conversation_id"`
	MessageID      string   `json:"message_id,omitempty"`
	Sources        []string `json:"sources,omitempty"`
	DurationMs     int64    `json:"duration_ms"`
}

// handleAsk runs one full chat round-trip. Each call gets its own consumer:
// a consumer owns at most one active stream, and tool calls may overlap.
func (t *tools) handleAsk(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	consumer := chat.New(t.opts.BaseURL,
		chat.WithTokenSource(t.opts.TokenSource),
		chat.WithHeartbeatTimeout(t.opts.HeartbeatTimeout),
		chat.WithLogger(t.opts.Logger),
	)
	defer consumer.Cancel()

	res, err := consumer.Send(ctx, input.ConversationID, input.Question)
	if err != nil {
		t.opts.Logger.Error("mcp ask failed", "err", err)
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Chat request failed: %v", err)},
			},
		}, AskOutput{}, nil
	}

	titles := make([]string, 0, len(res.Sources))
	for _, src := range res.Sources {
		titles = append(titles, src.Title)
	}

	return nil, AskOutput{
		Answer:         res.Content,
		ConversationID: res.ConversationID,
		MessageID:      res.MessageID,
		Sources:        titles,
		DurationMs:     res.Duration.Milliseconds(),
	}, nil
}

// DocumentStatusInput represents the input arguments for the document_status tool.
type DocumentStatusInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document to look up"`
}

// DocumentStatusOutput represents the output of the document_status tool.
type DocumentStatusOutput struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name,omitempty"`
	Status     string `json:"status"`
	Terminal   bool   `json:"terminal"`
	Error      string `json:"error,omitempty"`
}

// handleDocumentStatus fetches one document's current processing state.
func (t *tools) handleDocumentStatus(ctx context.Context, req *mcp.CallToolRequest, input DocumentStatusInput) (*mcp.CallToolResult, DocumentStatusOutput, error) {
	client := api.NewClient(t.opts.BaseURL,
		api.WithTokenSource(t.opts.TokenSource),
		api.WithLogger(t.opts.Logger),
	)

	doc, err := client.GetDocumentStatus(ctx, input.DocumentID)
	if err != nil {
		t.opts.Logger.Error("mcp document status failed", "err", err)
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Document lookup failed: %v", err)},
			},
		}, DocumentStatusOutput{}, nil
	}

	return nil, DocumentStatusOutput{
		DocumentID: doc.ID,
		Name:       doc.Name,
		Status:     doc.Status,
		Terminal:   api.IsTerminalDocumentStatus(doc.Status),
		Error:      doc.Error,
	}, nil
}
