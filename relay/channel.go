package relay

import (
	"context"
)

// Handler is the background-service side of the contract.
type Handler interface {
	SendInterceptedData(ctx context.Context, req SendInterceptedDataRequest) SendInterceptedDataResponse
	GetAllInterceptedData(ctx context.Context, req QueryRequest) QueryResponse
}

// Channel is the page-context side: a typed request/response boundary to
// the background service. Implementations must validate before dispatch
// and must never surface a failure as anything other than a structured
// response.
type Channel interface {
	Send(ctx context.Context, req SendInterceptedDataRequest) SendInterceptedDataResponse
	Query(ctx context.Context, req QueryRequest) QueryResponse
	Close() error
}

// Direct is the in-process channel used when both contexts live in one
// process. It dispatches straight into the handler.
type Direct struct {
	handler Handler
}

func NewDirect(h Handler) *Direct {
	return &Direct{handler: h}
}

func (d *Direct) Send(ctx context.Context, req SendInterceptedDataRequest) SendInterceptedDataResponse {
	if err := req.Validate(); err != nil {
		return SendInterceptedDataResponse{Success: false, Error: err.Error()}
	}
	return d.handler.SendInterceptedData(ctx, req)
}

func (d *Direct) Query(ctx context.Context, req QueryRequest) QueryResponse {
	if err := req.Validate(); err != nil {
		return QueryResponse{Success: false, Error: err.Error()}
	}
	return d.handler.GetAllInterceptedData(ctx, req)
}

func (d *Direct) Close() error { return nil }
