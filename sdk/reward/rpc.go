package reward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const maxMessageBytes = 16 << 20

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcMessage struct {
	ID     *uint64         `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
	Method string          `json:"method,omitempty"`
	Params *rpcNotice      `json:"params,omitempty"`
}

type rpcNotice struct {
	Subscription json.RawMessage `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// rpcConn is a JSON-RPC session over one WebSocket. Callers serialise access;
// the client never has more than one request or subscription outstanding.
type rpcConn struct {
	ws      *websocket.Conn
	nextID  uint64
	pending []rpcNotice
}

func dialRPC(ctx context.Context, endpoint string, header http.Header) (*rpcConn, error) {
	ws, _, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, err
	}
	ws.SetReadLimit(maxMessageBytes)
	return &rpcConn{ws: ws}, nil
}

func (c *rpcConn) close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "")
}

// call sends a request and blocks until its response arrives. Subscription
// notices read in the meantime are queued for nextNotice.
func (c *rpcConn) call(ctx context.Context, method string, params []any, out any) error {
	c.nextID++
	id := c.nextID
	if params == nil {
		params = []any{}
	}
	if err := wsjson.Write(ctx, c.ws, rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return fmt.Errorf("write %s: %w", method, err)
	}
	for {
		var msg rpcMessage
		if err := wsjson.Read(ctx, c.ws, &msg); err != nil {
			return fmt.Errorf("read %s: %w", method, err)
		}
		if msg.ID == nil {
			// Errors the node cannot attribute to a request carry a null id.
			if msg.Error != nil {
				return msg.Error
			}
			if msg.Params != nil {
				c.pending = append(c.pending, *msg.Params)
			}
			continue
		}
		if *msg.ID != id {
			continue
		}
		if msg.Error != nil {
			return msg.Error
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(msg.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	}
}

// nextNotice returns the next notification for subscription, discarding
// notices that belong to earlier subscriptions.
func (c *rpcConn) nextNotice(ctx context.Context, subscription json.RawMessage) (json.RawMessage, error) {
	for len(c.pending) > 0 {
		notice := c.pending[0]
		c.pending = c.pending[1:]
		if bytes.Equal(notice.Subscription, subscription) {
			return notice.Result, nil
		}
	}
	for {
		var msg rpcMessage
		if err := wsjson.Read(ctx, c.ws, &msg); err != nil {
			return nil, fmt.Errorf("read notification: %w", err)
		}
		if msg.ID != nil || msg.Params == nil {
			continue
		}
		if bytes.Equal(msg.Params.Subscription, subscription) {
			return msg.Params.Result, nil
		}
	}
}
