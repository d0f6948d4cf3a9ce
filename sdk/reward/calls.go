package reward

import (
	"github.com/holiman/uint256"

	"rewardcampaign/crypto"
)

// PalletName is the runtime module the calls are dispatched to.
const PalletName = "Reward"

// Call method names as exposed by the pallet.
const (
	MethodStartNewCampaign  = "start_new_campaign"
	MethodUpdateCampaign    = "update_campaign"
	MethodDiscardCampaign   = "discard_campaign"
	MethodWipeCampaign      = "wipe_campaign"
	MethodAddContributer    = "add_contributer"
	MethodRemoveContributer = "remove_contributer"
	MethodLockCampaign      = "lock_campaign"
)

// SmallRational mirrors the pallet's numerator/denominator pair.
type SmallRational struct {
	Numerator   uint32 `json:"numenator"`
	Denominator uint32 `json:"denomator"`
}

// CreateCampaignParams mirrors the pallet's CreateCampaignParam.
type CreateCampaignParams struct {
	Hoster            *crypto.AccountID `json:"hoster"`
	InstantPercentage SmallRational     `json:"instant_percentage"`
	StartsFrom        *uint32           `json:"starts_from"`
	EndTarget         uint32            `json:"end_target"`
}

// UpdateCampaignParams mirrors the pallet's UpdateCampaignParam. Nil fields
// are left unchanged on-chain.
type UpdateCampaignParams struct {
	Hoster            *crypto.AccountID `json:"hoster"`
	InstantPercentage *SmallRational    `json:"instant_percentage"`
	StartsFrom        *uint32           `json:"starts_from"`
	EndTarget         *uint32           `json:"end_target"`
}

// Call is a pallet extrinsic before signing.
type Call struct {
	Pallet string `json:"pallet"`
	Method string `json:"method"`
	Args   any    `json:"args"`
}

type campaignArgs struct {
	CampaignID uint32 `json:"campaign_id"`
}

type startArgs struct {
	CampaignID uint32               `json:"campaign_id"`
	Info       CreateCampaignParams `json:"info"`
}

type updateArgs struct {
	CampaignID uint32               `json:"campaign_id"`
	Info       UpdateCampaignParams `json:"info"`
}

type contributerArgs struct {
	CampaignID  uint32           `json:"campaign_id"`
	Contributer crypto.AccountID `json:"contributer"`
	// Balances are carried as decimal strings; JSON numbers lose precision
	// beyond 53 bits.
	Amount string `json:"amount,omitempty"`
}

func StartNewCampaign(campaignID uint32, info CreateCampaignParams) Call {
	return Call{Pallet: PalletName, Method: MethodStartNewCampaign, Args: startArgs{CampaignID: campaignID, Info: info}}
}

func UpdateCampaign(campaignID uint32, info UpdateCampaignParams) Call {
	return Call{Pallet: PalletName, Method: MethodUpdateCampaign, Args: updateArgs{CampaignID: campaignID, Info: info}}
}

func DiscardCampaign(campaignID uint32) Call {
	return Call{Pallet: PalletName, Method: MethodDiscardCampaign, Args: campaignArgs{CampaignID: campaignID}}
}

func WipeCampaign(campaignID uint32) Call {
	return Call{Pallet: PalletName, Method: MethodWipeCampaign, Args: campaignArgs{CampaignID: campaignID}}
}

func AddContributer(campaignID uint32, who crypto.AccountID, amount *uint256.Int) Call {
	value := "0"
	if amount != nil {
		value = amount.Dec()
	}
	return Call{Pallet: PalletName, Method: MethodAddContributer, Args: contributerArgs{CampaignID: campaignID, Contributer: who, Amount: value}}
}

func RemoveContributer(campaignID uint32, who crypto.AccountID) Call {
	return Call{Pallet: PalletName, Method: MethodRemoveContributer, Args: contributerArgs{CampaignID: campaignID, Contributer: who}}
}

func LockCampaign(campaignID uint32) Call {
	return Call{Pallet: PalletName, Method: MethodLockCampaign, Args: campaignArgs{CampaignID: campaignID}}
}
