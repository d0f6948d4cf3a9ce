package campaign

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Allocation pairs a contributor with the reward computed for it.
type Allocation struct {
	Index       int
	Contributor Contributor
	Reward      *uint256.Int
}

// TotalRaised sums the contributed amounts. The sum is carried in 256 bits so
// any realistic list fits; a wrap is still reported rather than ignored.
func TotalRaised(contributors []Contributor) (*uint256.Int, error) {
	total := new(uint256.Int)
	for i, c := range contributors {
		if c.Contributed == nil {
			return nil, &ArithmeticError{Op: "total raised", Err: fmt.Errorf("contributor %d has no amount", i)}
		}
		if _, overflow := total.AddOverflow(total, c.Contributed); overflow {
			return nil, &ArithmeticError{Op: "total raised", Err: ErrOverflow}
		}
	}
	return total, nil
}

// RewardAmount returns floor(contributed * pool / total). The product is
// formed in 512 bits, so neither factor needs to be pre-scaled. The result must
// fit the 128-bit balance type.
func RewardAmount(contributed, total, pool *uint256.Int) (*uint256.Int, error) {
	if contributed == nil || total == nil || pool == nil {
		return nil, &ArithmeticError{Op: "reward amount", Err: fmt.Errorf("nil operand")}
	}
	if total.IsZero() {
		return nil, &ArithmeticError{Op: "reward amount", Err: ErrDivideByZero}
	}
	reward, overflow := new(uint256.Int).MulDivOverflow(contributed, pool, total)
	if overflow || reward.BitLen() > BalanceBits {
		return nil, &ArithmeticError{
			Op:  "reward amount",
			Err: fmt.Errorf("%w: %s * %s / %s", ErrOverflow, contributed.Dec(), pool.Dec(), total.Dec()),
		}
	}
	return reward, nil
}

// Allocate computes every contributor's reward in input order. The total is
// reduced first, so each reward depends only on its own contribution, the
// total and the pool.
func Allocate(c *Campaign, pool *uint256.Int) ([]Allocation, error) {
	if c == nil || len(c.Contributors) == 0 {
		return nil, &ArithmeticError{Op: "allocate", Err: ErrNoContributors}
	}
	if pool == nil || pool.BitLen() > BalanceBits {
		return nil, &ArithmeticError{Op: "allocate", Err: fmt.Errorf("%w: reward pool exceeds %d bits", ErrOverflow, BalanceBits)}
	}
	total, err := TotalRaised(c.Contributors)
	if err != nil {
		return nil, err
	}
	allocations := make([]Allocation, 0, len(c.Contributors))
	for i, contributor := range c.Contributors {
		reward, err := RewardAmount(contributor.Contributed, total, pool)
		if err != nil {
			return nil, fmt.Errorf("contributor %d (%s): %w", i, contributor.Who, err)
		}
		allocations = append(allocations, Allocation{Index: i, Contributor: contributor, Reward: reward})
	}
	return allocations, nil
}
