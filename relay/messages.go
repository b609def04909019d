// Package relay defines the typed message contract between the page-context
// interceptor and the privileged background service, and the channel
// implementations that carry it. The message set is closed: every kind has
// a statically defined payload and result shape, dispatched through one
// channel abstraction instead of ad hoc event names.
package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/feedscope/feedscope/model"
	"github.com/feedscope/feedscope/store"
)

// Message kinds.
const (
	MessageTypeSendInterceptedData   = "send_intercepted_data"
	MessageTypeGetAllInterceptedData = "get_all_intercepted_data"
)

// Topic names for the pub/sub transport.
const (
	TopicInterceptedData = "intercepted-data"
)

// SendInterceptedDataRequest relays one intercepted record from the page
// context to the background service.
type SendInterceptedDataRequest struct {
	MessageType  string          `json:"message_type"`
	Data         json.RawMessage `json:"data"`
	Type         string          `json:"type"`
	OriginatorID string          `json:"originator_id"`
	ItemID       string          `json:"item_id"`
	UserID       string          `json:"userid"`
	Timestamp    time.Time       `json:"timestamp"`
	TraceID      string          `json:"trace_id,omitempty"`
}

// NewSendInterceptedDataRequest builds a request with kind, capture time
// and trace ID filled in.
func NewSendInterceptedDataRequest(data json.RawMessage, recordType, originatorID, itemID, userID string) SendInterceptedDataRequest {
	return SendInterceptedDataRequest{
		MessageType:  MessageTypeSendInterceptedData,
		Data:         data,
		Type:         recordType,
		OriginatorID: originatorID,
		ItemID:       itemID,
		UserID:       userID,
		Timestamp:    time.Now().UTC(),
		TraceID:      generateTraceID(),
	}
}

// Validate checks the request payload before dispatch.
func (r *SendInterceptedDataRequest) Validate() error {
	if r.MessageType != MessageTypeSendInterceptedData {
		return fmt.Errorf("invalid message type: %s", r.MessageType)
	}
	if len(r.Data) == 0 {
		return fmt.Errorf("intercepted data cannot be empty")
	}
	id := model.Identity{Type: r.Type, OriginatorID: r.OriginatorID, ItemID: r.ItemID}
	return id.Validate()
}

// SendInterceptedDataResponse reports the background service's decision.
// Errors travel here as structured failures, never as unhandled faults.
type SendInterceptedDataResponse struct {
	Success  bool   `json:"success"`
	Admitted bool   `json:"admitted"`
	Error    string `json:"error,omitempty"`
}

// QueryRequest asks the background service for a filtered page of records
// plus the overview breakdown.
type QueryRequest struct {
	MessageType string        `json:"message_type"`
	Filters     store.Filters `json:"filters"`
	Page        int           `json:"page"`
	PageSize    int           `json:"page_size"`
}

// NewQueryRequest builds a query with the kind filled in.
func NewQueryRequest(f store.Filters, page, pageSize int) QueryRequest {
	return QueryRequest{
		MessageType: MessageTypeGetAllInterceptedData,
		Filters:     f,
		Page:        page,
		PageSize:    pageSize,
	}
}

// Validate checks the query shape.
func (r *QueryRequest) Validate() error {
	if r.MessageType != MessageTypeGetAllInterceptedData {
		return fmt.Errorf("invalid message type: %s", r.MessageType)
	}
	if r.Page < 0 || r.PageSize < 0 {
		return fmt.Errorf("page and page size cannot be negative")
	}
	return nil
}

// QueryResponse carries one page of records with pagination and overview.
type QueryResponse struct {
	Success    bool             `json:"success"`
	Error      string           `json:"error,omitempty"`
	Data       []model.Record   `json:"data"`
	Pagination store.Pagination `json:"pagination"`
	Overview   store.Overview   `json:"overview"`
}

// generateTraceID produces a trace ID for correlating a relay round trip
// in logs. The UUID suffix keeps IDs distinct even when a whole timeline's
// records are relayed within the same clock tick.
func generateTraceID() string {
	return "trace_" + time.Now().Format("20060102150405") + "_" + uuid.NewString()
}
