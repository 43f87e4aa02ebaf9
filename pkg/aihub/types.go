package aihub

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Remote lifecycle states shared by conversations and queries.
const (
	StateCreated  = "CREATED"
	StatePending  = "PENDING"
	StateRunning  = "RUNNING"
	StateComplete = "COMPLETE"
	StateFailed   = "FAILED"
)

// InProgress reports whether state is one the service documents as
// not yet finished.
func InProgress(state string) bool {
	switch state {
	case StateCreated, StatePending, StateRunning:
		return true
	default:
		return false
	}
}

// ID is an identifier the service may send either as a string or a number.
type ID string

// UnmarshalJSON accepts both JSON strings and numbers.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("aihub: id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// CreateConversationRequest uploads files into a new conversation.
type CreateConversationRequest struct {
	Name        string
	Description string
	Files       []string
}

// Conversation is the response to a create call.
type Conversation struct {
	ID           ID           `json:"id"`
	UploadStatus UploadStatus `json:"upload_status"`
}

// UploadStatus lists which uploaded files were accepted.
type UploadStatus struct {
	Success []UploadedFile `json:"success"`
	Failure []UploadedFile `json:"failure"`
}

// UploadedFile is one entry of an UploadStatus.
type UploadedFile struct {
	Name    string `json:"name"`
	Message string `json:"message,omitempty"`
}

// ConversationStatus is the polled state of a conversation.
type ConversationStatus struct {
	ID        ID         `json:"id"`
	Name      string     `json:"name"`
	State     string     `json:"state"`
	Status    string     `json:"status"`
	Documents []Document `json:"documents"`
}

// Document is a file ingested into a conversation.
type Document struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// ConverseRequest asks a question about documents in a conversation.
type ConverseRequest struct {
	Question    string `json:"question"`
	DocumentIDs []ID   `json:"document_ids"`
	Mode        string `json:"mode,omitempty"`
}

// ConverseResponse carries the model's answer text.
type ConverseResponse struct {
	PromptID ID     `json:"prompt_id"`
	Answer   string `json:"answer"`
}

// SourceApp names the app a query runs against.
type SourceApp struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// QueryRequest submits a question to a chatbot.
type QueryRequest struct {
	Query             string    `json:"query"`
	SourceApp         SourceApp `json:"source_app"`
	ModelName         string    `json:"model_name,omitempty"`
	IncludeSourceInfo bool      `json:"include_source_info"`
}

// QueryResponse is the response to a query submission.
type QueryResponse struct {
	QueryID ID `json:"query_id"`
}

// QueryStatus is the polled state of a query.
type QueryStatus struct {
	QueryID ID            `json:"query_id"`
	Status  string        `json:"status"`
	Results []QueryResult `json:"results"`
	Error   string        `json:"error"`
}

// QueryResult is one answer produced by a query.
type QueryResult struct {
	Response        string           `json:"response"`
	SourceDocuments []SourceDocument `json:"source_documents,omitempty"`
}

// SourceDocument is a citation attached to a QueryResult.
type SourceDocument struct {
	Name string `json:"name"`
}
