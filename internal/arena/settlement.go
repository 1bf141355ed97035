package arena

import "github.com/shopspring/decimal"

const (
	TransferPrize   = "arena_prize"
	TransferFeeBurn = "arena_fee_burn"
	TransferBonus   = "arena_bonus"
	TransferPenalty = "arena_loss_penalty"
)

// Settlement is the economic result of a match. Prize+Fee always equals
// Stake; Bonus is minted separately and never drawn from the loser.
type Settlement struct {
	Stake           int64  `json:"stake"`
	Fee             int64  `json:"fee"`
	Prize           int64  `json:"prize"`
	Bonus           int64  `json:"bonus"`
	Forfeit         bool   `json:"forfeit"`
	TransferID      string `json:"transfer_id,omitempty"`
	BonusTransferID string `json:"bonus_transfer_id,omitempty"`
	Failed          bool   `json:"failed,omitempty"`
}

// Settle computes the stake split for a loser holding loserBalance coins.
func Settle(plan StakePlan, loserBalance int64, bonusPct int) Settlement {
	stake := plan.Wager
	if loserBalance < stake {
		stake = loserBalance
	}
	if stake <= 0 {
		return Settlement{Forfeit: true}
	}

	var fee int64
	if stake > 1 && plan.FeePct > 0 {
		fee = decimal.NewFromInt(stake).
			Mul(decimal.NewFromInt(int64(plan.FeePct))).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
		if fee > stake-1 {
			fee = stake - 1
		}
		if fee < 0 {
			fee = 0
		}
	}
	prize := stake - fee

	var bonus int64
	if bonusPct > 0 {
		bonus = decimal.NewFromInt(prize).
			Mul(decimal.NewFromInt(int64(bonusPct))).
			Div(decimal.NewFromInt(100)).
			Floor().
			IntPart()
	}
	return Settlement{Stake: stake, Fee: fee, Prize: prize, Bonus: bonus}
}

// Void marks the settlement as not executed; no coins moved.
func (s Settlement) Void() Settlement {
	return Settlement{Forfeit: s.Forfeit, Failed: true}
}

// Balanced reports whether the coins leaving the loser equal the coins
// reaching the winner plus the burned fee.
func (s Settlement) Balanced() bool {
	return s.Prize+s.Fee == s.Stake
}

// LossPenalty is the capped coin penalty for a human-directed loser after
// the stake was settled.
func LossPenalty(fixed, limit, remainingBalance int64) int64 {
	p := fixed
	if limit > 0 && p > limit {
		p = limit
	}
	if p > remainingBalance {
		p = remainingBalance
	}
	if p < 0 {
		return 0
	}
	return p
}
