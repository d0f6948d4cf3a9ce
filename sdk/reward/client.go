package reward

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"

	"rewardcampaign/crypto"
)

// Signer signs extrinsic payloads on behalf of a single account.
type Signer interface {
	AccountID() crypto.AccountID
	Sign(payload []byte) ([]byte, error)
}

// WaitPolicy selects the status that counts as a confirmation.
type WaitPolicy int

const (
	// WaitFinalized waits until the including block is finalized.
	WaitFinalized WaitPolicy = iota
	// WaitInBlock returns as soon as the extrinsic is in a block.
	WaitInBlock
)

// ParseWaitPolicy accepts "finalized" or "in_block".
func ParseWaitPolicy(raw string) (WaitPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "finalized":
		return WaitFinalized, nil
	case "in_block", "inblock":
		return WaitInBlock, nil
	default:
		return 0, fmt.Errorf("reward: unknown wait policy %q", raw)
	}
}

func (p WaitPolicy) String() string {
	if p == WaitInBlock {
		return "in_block"
	}
	return "finalized"
}

// Confirmation reports where a submitted extrinsic landed.
type Confirmation struct {
	ExtrinsicHash string
	BlockHash     string
	Nonce         uint32
	Finalized     bool
}

// Option customises the client.
type Option func(*Client)

// WithWaitPolicy sets the confirmation policy. The default is WaitFinalized.
func WithWaitPolicy(policy WaitPolicy) Option {
	return func(c *Client) { c.policy = policy }
}

// WithSubmitTimeout bounds each submission, from nonce lookup to confirmation.
func WithSubmitTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.submitTimeout = timeout }
}

// WithDialTimeout bounds (re)connecting to the node.
func WithDialTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.dialTimeout = timeout }
}

// WithRateLimit paces submissions. A non-positive limit disables pacing.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithBearerSecret authenticates the WebSocket upgrade with a short-lived
// HS256 token minted from secret.
func WithBearerSecret(secret []byte) Option {
	return func(c *Client) { c.bearerSecret = append([]byte(nil), secret...) }
}

// WithSS58Format sets the network format used when addressing the signer.
func WithSS58Format(format uint16) Option {
	return func(c *Client) { c.format = format }
}

// WithLogger overrides the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithClock sets the function used to stamp bearer tokens.
func WithClock(clock func() time.Time) Option {
	return func(c *Client) { c.now = clock }
}

// Client submits signed reward pallet extrinsics over a single WebSocket
// connection, one at a time. A broken connection is re-established on the
// next submission.
type Client struct {
	endpoint      string
	signer        Signer
	policy        WaitPolicy
	submitTimeout time.Duration
	dialTimeout   time.Duration
	limiter       *rate.Limiter
	bearerSecret  []byte
	format        uint16
	logger        *slog.Logger
	now           func() time.Time

	mu     sync.Mutex
	conn   *rpcConn
	closed bool
}

// Dial connects to the node at endpoint (ws:// or wss://).
func Dial(ctx context.Context, endpoint string, signer Signer, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("reward: endpoint required")
	}
	if signer == nil {
		return nil, errors.New("reward: signer required")
	}
	c := &Client{
		endpoint:      endpoint,
		signer:        signer,
		policy:        WaitFinalized,
		submitTimeout: 2 * time.Minute,
		dialTimeout:   10 * time.Second,
		limiter:       rate.NewLimiter(rate.Inf, 1),
		format:        crypto.DataHighwayFormat,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.connLocked(ctx); err != nil {
		return nil, networkErr("dial", err)
	}
	return c, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn == nil {
		return nil
	}
	err := c.conn.close()
	c.conn = nil
	return err
}

// Account returns the signer's account.
func (c *Client) Account() crypto.AccountID {
	return c.signer.AccountID()
}

func (c *Client) connLocked(ctx context.Context) (*rpcConn, error) {
	if c.closed {
		return nil, ErrClientClosed
	}
	if c.conn != nil {
		return c.conn, nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()
	header := http.Header{}
	if len(c.bearerSecret) > 0 {
		token, err := bearerToken(c.bearerSecret, c.now())
		if err != nil {
			return nil, err
		}
		header.Set("Authorization", "Bearer "+token)
	}
	conn, err := dialRPC(dialCtx, c.endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.endpoint, err)
	}
	c.conn = conn
	return conn, nil
}

func (c *Client) dropConnLocked() {
	if c.conn == nil {
		return
	}
	if err := c.conn.ws.Close(websocket.StatusGoingAway, "resetting"); err != nil {
		c.logger.Debug("close rpc connection", slog.String("error", err.Error()))
	}
	c.conn = nil
}

type signedPayload struct {
	Signer string `json:"signer"`
	Nonce  uint32 `json:"nonce"`
	Call   Call   `json:"call"`
}

type extrinsic struct {
	signedPayload
	Signature string `json:"signature"`
}

// Submit signs call with the next account nonce, submits it and waits for the
// configured confirmation. It never retries.
func (c *Client) Submit(ctx context.Context, call Call) (Confirmation, error) {
	op := call.Pallet + "." + call.Method
	if err := c.limiter.Wait(ctx); err != nil {
		return Confirmation{}, networkErr(op, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.submitTimeout)
		defer cancel()
	}
	conn, err := c.connLocked(ctx)
	if err != nil {
		if errors.Is(err, ErrClientClosed) {
			return Confirmation{}, &ChainError{Op: op, Kind: KindNetwork, Err: err}
		}
		return Confirmation{}, networkErr(op, err)
	}

	signer := c.signer.AccountID().SS58(c.format)
	var nonce uint32
	if err := conn.call(ctx, "system_accountNextIndex", []any{signer}, &nonce); err != nil {
		return Confirmation{}, c.classifyLocked(ctx, op, err)
	}

	encoded, hash, err := c.encode(signedPayload{Signer: signer, Nonce: nonce, Call: call})
	if err != nil {
		return Confirmation{}, &ChainError{Op: op, Kind: KindRejected, Err: err}
	}
	conf := Confirmation{ExtrinsicHash: hash, Nonce: nonce}

	var subscription json.RawMessage
	if err := conn.call(ctx, "author_submitAndWatchExtrinsic", []any{encoded}, &subscription); err != nil {
		return conf, c.classifyLocked(ctx, op, err)
	}
	c.logger.Debug("extrinsic submitted",
		slog.String("call", op),
		slog.String("extrinsic", hash),
		slog.Uint64("nonce", uint64(nonce)))

	for {
		raw, err := conn.nextNotice(ctx, subscription)
		if err != nil {
			return conf, c.classifyLocked(ctx, op, err)
		}
		status, block, err := parseStatus(raw)
		if err != nil {
			return conf, rejectedErr(op, err)
		}
		switch status {
		case "future", "ready", "broadcast", "retracted":
			continue
		case "inBlock":
			conf.BlockHash = block
			if c.policy == WaitInBlock {
				if err := conn.call(ctx, "author_unwatchExtrinsic", []any{subscription}, nil); err != nil {
					c.logger.Debug("unwatch extrinsic", slog.String("extrinsic", hash), slog.String("error", err.Error()))
				}
				return conf, nil
			}
		case "finalized":
			conf.BlockHash = block
			conf.Finalized = true
			return conf, nil
		case "finalityTimeout":
			conf.BlockHash = block
			return conf, &ChainError{Op: op, Kind: KindTimeout, Err: ErrFinalityTimeout}
		case "usurped":
			return conf, rejectedErr(op, ErrExtrinsicUsurped)
		case "dropped":
			return conf, rejectedErr(op, ErrExtrinsicDropped)
		case "invalid":
			return conf, rejectedErr(op, ErrExtrinsicInvalid)
		default:
			return conf, rejectedErr(op, fmt.Errorf("unexpected extrinsic status %q", status))
		}
	}
}

// classifyLocked maps an RPC failure onto a ChainError. Node errors are
// rejections; anything else leaves the connection in an unknown state and it
// is dropped.
func (c *Client) classifyLocked(ctx context.Context, op string, err error) error {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rejectedErr(op, err)
	}
	c.dropConnLocked()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ChainError{Op: op, Kind: KindTimeout, Err: err}
	}
	return networkErr(op, err)
}

func (c *Client) encode(payload signedPayload) (string, string, error) {
	message, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("encode call: %w", err)
	}
	sig, err := c.signer.Sign(message)
	if err != nil {
		return "", "", fmt.Errorf("sign call: %w", err)
	}
	body, err := json.Marshal(extrinsic{signedPayload: payload, Signature: "0x" + hex.EncodeToString(sig)})
	if err != nil {
		return "", "", fmt.Errorf("encode extrinsic: %w", err)
	}
	hash := blake2b.Sum256(body)
	return "0x" + hex.EncodeToString(body), "0x" + hex.EncodeToString(hash[:]), nil
}

// parseStatus decodes an author_extrinsicUpdate payload. Simple statuses are
// bare strings; the rest are single-key objects such as {"inBlock": "0x.."}.
func parseStatus(raw json.RawMessage) (string, string, error) {
	var simple string
	if err := json.Unmarshal(raw, &simple); err == nil {
		return simple, "", nil
	}
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return "", "", fmt.Errorf("decode extrinsic status: %w", err)
	}
	if len(tagged) != 1 {
		return "", "", fmt.Errorf("decode extrinsic status: expected one variant, got %d", len(tagged))
	}
	for status, value := range tagged {
		var block string
		// broadcast carries a peer list rather than a block hash.
		_ = json.Unmarshal(value, &block)
		return status, block, nil
	}
	return "", "", nil
}
