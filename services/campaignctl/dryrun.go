package campaignctl

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/crypto/blake2b"

	"rewardcampaign/sdk/reward"
)

// dryRunSubmitter logs each call instead of sending it and answers with a
// deterministic confirmation derived from the call body and its position.
type dryRunSubmitter struct {
	logger *slog.Logger

	mu    sync.Mutex
	nonce uint32
}

func newDryRunSubmitter(logger *slog.Logger) *dryRunSubmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &dryRunSubmitter{logger: logger}
}

func (d *dryRunSubmitter) Submit(ctx context.Context, call reward.Call) (reward.Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return reward.Confirmation{}, err
	}
	body, err := json.Marshal(call)
	if err != nil {
		return reward.Confirmation{}, fmt.Errorf("dry run: encode %s.%s: %w", call.Pallet, call.Method, err)
	}

	d.mu.Lock()
	nonce := d.nonce
	d.nonce++
	d.mu.Unlock()

	hash := blake2b.Sum256(append(body, byte(nonce), byte(nonce>>8), byte(nonce>>16), byte(nonce>>24)))
	conf := reward.Confirmation{
		ExtrinsicHash: "0x" + hex.EncodeToString(hash[:]),
		Nonce:         nonce,
	}
	d.logger.Info("dry run call",
		slog.String("call", call.Pallet+"."+call.Method),
		slog.Uint64("nonce", uint64(nonce)),
		slog.String("args", string(body)),
		slog.String("extrinsic", conf.ExtrinsicHash))
	return conf, nil
}
