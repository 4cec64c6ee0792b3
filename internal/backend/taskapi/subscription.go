package taskapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"taskdash/internal/service"
)

// Subprotocol is the GraphQL over WebSocket protocol spoken by the gateway.
const Subprotocol = "graphql-transport-ws"

// Message types of the graphql-transport-ws protocol.
const (
	MsgConnectionInit = "connection_init"
	MsgConnectionAck  = "connection_ack"
	MsgPing           = "ping"
	MsgPong           = "pong"
	MsgSubscribe      = "subscribe"
	MsgNext           = "next"
	MsgError          = "error"
	MsgComplete       = "complete"
)

// ackTimeout bounds the wait for connection_ack.
const ackTimeout = 10 * time.Second

// WSMessage is one graphql-transport-ws frame.
type WSMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type taskCreatedPayload struct {
	Data struct {
		TaskCreated *service.Task `json:"taskCreated"`
	} `json:"data"`
	Errors []gqlError `json:"errors"`
}

// SubscribeTaskCreated implements service.Service. There is no reconnect:
// when the stream drops the error is returned to the caller.
func (c *Client) SubscribeTaskCreated(ctx context.Context, fn func(service.Task)) error {
	conn, _, err := websocket.Dial(ctx, c.wsURL, &websocket.DialOptions{
		HTTPClient:   c.http,
		Subprotocols: []string{Subprotocol},
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrap(err, "subscribe")
	}
	defer conn.CloseNow()

	if err := c.handshake(ctx, conn); err != nil {
		return err
	}

	id := uuid.NewString()
	query, _ := json.Marshal(gqlRequest{OperationName: "OnTaskCreated", Query: taskCreatedSubscription})
	if err := wsjson.Write(ctx, conn, WSMessage{ID: id, Type: MsgSubscribe, Payload: query}); err != nil {
		return errors.Wrap(err, "subscribe")
	}
	c.log.Debug().Str("id", id).Msg("subscribed to taskCreated")

	for {
		var msg WSMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "subscription closed")
		}

		switch msg.Type {
		case MsgPing:
			if err := wsjson.Write(ctx, conn, WSMessage{Type: MsgPong}); err != nil {
				return errors.Wrap(err, "subscription closed")
			}
		case MsgNext:
			if msg.ID != id {
				continue
			}
			var payload taskCreatedPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				return errors.Wrap(err, "invalid subscription event")
			}
			if len(payload.Errors) > 0 {
				return graphQLError(http.StatusOK, payload.Errors)
			}
			if payload.Data.TaskCreated != nil {
				c.log.Debug().Str("task", payload.Data.TaskCreated.ID).Msg("taskCreated event")
				fn(*payload.Data.TaskCreated)
			}
		case MsgError:
			var errs []gqlError
			json.Unmarshal(msg.Payload, &errs)
			return graphQLError(http.StatusOK, errs)
		case MsgComplete:
			conn.Close(websocket.StatusNormalClosure, "")
			return nil
		}
	}
}

// handshake sends connection_init, carrying the bearer token, and waits for
// connection_ack.
func (c *Client) handshake(ctx context.Context, conn *websocket.Conn) error {
	hello := WSMessage{Type: MsgConnectionInit}
	if c.token != "" {
		hello.Payload, _ = json.Marshal(map[string]string{"Authorization": "Bearer " + c.token})
	}
	if err := wsjson.Write(ctx, conn, hello); err != nil {
		return errors.Wrap(err, "subscribe")
	}

	ackCtx, cancel := context.WithTimeout(ctx, ackTimeout)
	defer cancel()
	for {
		var msg WSMessage
		if err := wsjson.Read(ackCtx, conn, &msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var closeErr websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == 4403 {
				return &service.APIError{Status: http.StatusForbidden, Message: closeErr.Reason}
			}
			return errors.Wrap(err, "subscription handshake")
		}
		switch msg.Type {
		case MsgConnectionAck:
			return nil
		case MsgPing:
			if err := wsjson.Write(ackCtx, conn, WSMessage{Type: MsgPong}); err != nil {
				return errors.Wrap(err, "subscription handshake")
			}
		}
	}
}
