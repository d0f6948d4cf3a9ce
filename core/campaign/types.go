package campaign

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"rewardcampaign/crypto"
)

// BalanceBits is the width of the on-chain balance type.
const BalanceBits = 128

// baseUnitsPerDHX is one whole token expressed in the chain's base unit.
const baseUnitsPerDHX uint64 = 1_000_000_000_000_000_000

// DefaultRewardPool returns the fixed pool shared between contributors:
// 300,000 DHX in base units.
func DefaultRewardPool() *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(300_000), uint256.NewInt(baseUnitsPerDHX))
}

// Fraction mirrors the pallet's SmallRational: the share of a reward released
// immediately rather than vested.
type Fraction struct {
	Numerator   uint32
	Denominator uint32
}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Numerator, f.Denominator)
}

// Descriptor carries the campaign-level parameters submitted when the
// campaign is started.
type Descriptor struct {
	ID                uint32
	InstantPercentage Fraction
	StartsFrom        uint32
	EndsAt            uint32
	Hoster            crypto.AccountID
}

// Contributor is an account owed a share of the reward pool.
type Contributor struct {
	Who         crypto.AccountID
	Contributed *uint256.Int
}

// Campaign is a descriptor merged with its ordered contributor list.
type Campaign struct {
	Descriptor
	Contributors []Contributor

	fingerprint [32]byte
}

// Fingerprint returns the BLAKE3 digest of the raw campaign and contributor
// files the campaign was loaded from. It is zero for campaigns built in memory.
func (c *Campaign) Fingerprint() [32]byte {
	return c.fingerprint
}

// ParseBalance parses a base-10 amount that must fit the chain balance type.
func ParseBalance(raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is empty")
	}
	for _, r := range trimmed {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("amount %q is not a base-10 unsigned integer", raw)
		}
	}
	value, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("amount %q: %w", raw, err)
	}
	if value.BitLen() > BalanceBits {
		return nil, fmt.Errorf("amount %q exceeds %d bits", raw, BalanceBits)
	}
	return value, nil
}

func (d Descriptor) validate() error {
	if d.InstantPercentage.Denominator == 0 {
		return fmt.Errorf("instantPercentage denominator must be greater than zero")
	}
	if d.EndsAt < d.StartsFrom {
		return fmt.Errorf("endsAt %d precedes startsFrom %d", d.EndsAt, d.StartsFrom)
	}
	if d.Hoster.IsZero() {
		return fmt.Errorf("hoster is required")
	}
	return nil
}
