package relay

import (
	"context"
	"encoding/json"
	"fmt"

	daprc "github.com/dapr/go-sdk/client"
	"github.com/dapr/go-sdk/service/common"
	daprs "github.com/dapr/go-sdk/service/grpc"
	"github.com/rs/zerolog/log"
)

// PubSub carries intercepted-data messages between separate processes over
// a Dapr pub/sub component. Delivery is at-least-once, which the admit path
// tolerates; queries are not routed over pub/sub — they stay on the Direct
// channel of whatever process owns the store.
type PubSub struct {
	client     daprc.Client
	pubsubName string
	appPort    string
	handler    Handler
}

// NewPubSub creates the transport against the named pub/sub component.
func NewPubSub(pubsubName, appPort string, handler Handler) (*PubSub, error) {
	client, err := daprc.NewClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create dapr client: %w", err)
	}
	return &PubSub{client: client, pubsubName: pubsubName, appPort: appPort, handler: handler}, nil
}

func (p *PubSub) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}

// Publish sends one intercepted record to the background topic.
func (p *PubSub) Publish(ctx context.Context, req SendInterceptedDataRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal intercepted data message: %w", err)
	}

	if err := p.client.PublishEvent(ctx, p.pubsubName, TopicInterceptedData, data); err != nil {
		return fmt.Errorf("failed to publish intercepted data: %w", err)
	}

	log.Debug().
		Str("type", req.Type).
		Str("item_id", req.ItemID).
		Str("trace_id", req.TraceID).
		Msg("Published intercepted record")
	return nil
}

// PublishChannel adapts the pub/sub transport to the Channel contract for
// page-context callers in a separate process. Sends are fire-and-forget:
// a published record reports success without waiting for the background
// decision. Queries are not routed over pub/sub.
type PublishChannel struct {
	ps *PubSub
}

func NewPublishChannel(ps *PubSub) *PublishChannel {
	return &PublishChannel{ps: ps}
}

func (c *PublishChannel) Send(ctx context.Context, req SendInterceptedDataRequest) SendInterceptedDataResponse {
	if err := c.ps.Publish(ctx, req); err != nil {
		return SendInterceptedDataResponse{Success: false, Error: err.Error()}
	}
	return SendInterceptedDataResponse{Success: true}
}

func (c *PublishChannel) Query(ctx context.Context, req QueryRequest) QueryResponse {
	return QueryResponse{Success: false, Error: "queries are not routed over pub/sub"}
}

func (c *PublishChannel) Close() error { return c.ps.Close() }

// Serve subscribes to the background topic and dispatches incoming
// messages into the handler. A malformed message is dropped without retry;
// a handler failure is retried by the transport.
func (p *PubSub) Serve(ctx context.Context) error {
	server, err := daprs.NewService(p.appPort)
	if err != nil {
		return fmt.Errorf("failed to create dapr service: %w", err)
	}

	subscription := &common.Subscription{
		PubsubName: p.pubsubName,
		Topic:      TopicInterceptedData,
		Route:      "/" + TopicInterceptedData,
	}

	err = server.AddTopicEventHandler(subscription, func(ctx context.Context, e *common.TopicEvent) (bool, error) {
		var req SendInterceptedDataRequest
		if err := json.Unmarshal(e.RawData, &req); err != nil {
			log.Error().Err(err).Msg("Failed to unmarshal intercepted data message")
			return false, err
		}

		resp := p.handler.SendInterceptedData(ctx, req)
		if !resp.Success {
			log.Error().
				Str("item_id", req.ItemID).
				Str("trace_id", req.TraceID).
				Str("error", resp.Error).
				Msg("Failed to handle intercepted data message")
			return true, fmt.Errorf("handler failed: %s", resp.Error)
		}
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("failed to register topic handler: %w", err)
	}

	log.Info().
		Str("topic", TopicInterceptedData).
		Str("pubsub", p.pubsubName).
		Str("port", p.appPort).
		Msg("Starting relay pub/sub server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		if err := server.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop relay pub/sub server")
		}
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("relay pub/sub server failed: %w", err)
		}
		return nil
	}
}
