package reward

import (
	"context"

	"github.com/holiman/uint256"

	"rewardcampaign/crypto"
)

// Submitter delivers a call to the chain and reports its confirmation.
type Submitter interface {
	Submit(ctx context.Context, call Call) (Confirmation, error)
}

// SubmitFunc adapts a function to the Submitter interface.
type SubmitFunc func(ctx context.Context, call Call) (Confirmation, error)

// Submit delegates to the wrapped function.
func (f SubmitFunc) Submit(ctx context.Context, call Call) (Confirmation, error) {
	return f(ctx, call)
}

// Pallet exposes the reward pallet's extrinsics as typed methods.
type Pallet struct {
	submitter Submitter
}

// NewPallet binds the pallet calls to a submitter.
func NewPallet(submitter Submitter) *Pallet {
	return &Pallet{submitter: submitter}
}

func (p *Pallet) StartNewCampaign(ctx context.Context, campaignID uint32, info CreateCampaignParams) (Confirmation, error) {
	return p.submitter.Submit(ctx, StartNewCampaign(campaignID, info))
}

func (p *Pallet) UpdateCampaign(ctx context.Context, campaignID uint32, info UpdateCampaignParams) (Confirmation, error) {
	return p.submitter.Submit(ctx, UpdateCampaign(campaignID, info))
}

func (p *Pallet) DiscardCampaign(ctx context.Context, campaignID uint32) (Confirmation, error) {
	return p.submitter.Submit(ctx, DiscardCampaign(campaignID))
}

func (p *Pallet) WipeCampaign(ctx context.Context, campaignID uint32) (Confirmation, error) {
	return p.submitter.Submit(ctx, WipeCampaign(campaignID))
}

func (p *Pallet) AddContributer(ctx context.Context, campaignID uint32, who crypto.AccountID, amount *uint256.Int) (Confirmation, error) {
	return p.submitter.Submit(ctx, AddContributer(campaignID, who, amount))
}

func (p *Pallet) RemoveContributer(ctx context.Context, campaignID uint32, who crypto.AccountID) (Confirmation, error) {
	return p.submitter.Submit(ctx, RemoveContributer(campaignID, who))
}

func (p *Pallet) LockCampaign(ctx context.Context, campaignID uint32) (Confirmation, error) {
	return p.submitter.Submit(ctx, LockCampaign(campaignID))
}
