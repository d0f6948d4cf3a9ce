package reward

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies chain submission failures.
type ErrorKind int

const (
	// KindNetwork covers transport failures talking to the node.
	KindNetwork ErrorKind = iota + 1
	// KindRejected means the node or runtime refused the extrinsic.
	KindRejected
	// KindTimeout means no terminal status arrived in time.
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRejected:
		return "rejected"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

var (
	// ErrClientClosed is returned once Close has been called.
	ErrClientClosed = errors.New("reward: client closed")
	// ErrExtrinsicInvalid is reported when the pool marks an extrinsic invalid.
	ErrExtrinsicInvalid = errors.New("reward: extrinsic invalid")
	// ErrExtrinsicDropped is reported when the pool drops an extrinsic.
	ErrExtrinsicDropped = errors.New("reward: extrinsic dropped")
	// ErrExtrinsicUsurped is reported when another extrinsic replaced ours.
	ErrExtrinsicUsurped = errors.New("reward: extrinsic usurped")
	// ErrFinalityTimeout is reported when the including block was not finalized in time.
	ErrFinalityTimeout = errors.New("reward: finality timeout")
)

// ChainError describes a failed extrinsic submission.
type ChainError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("reward: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ChainError) Unwrap() error { return e.Err }

// KindOf returns the kind of a ChainError in err's chain, or zero.
func KindOf(err error) ErrorKind {
	var chainErr *ChainError
	if errors.As(err, &chainErr) {
		return chainErr.Kind
	}
	return 0
}

func networkErr(op string, err error) *ChainError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ChainError{Op: op, Kind: KindTimeout, Err: err}
	}
	return &ChainError{Op: op, Kind: KindNetwork, Err: err}
}

func rejectedErr(op string, err error) *ChainError {
	return &ChainError{Op: op, Kind: KindRejected, Err: err}
}

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (%v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}
