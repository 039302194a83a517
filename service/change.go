package service

import (
	"fmt"

	"github.com/Okprime/MVP-Match-Assessment/models"
)

// GreedyChange breaks an amount into coins, largest denomination first.
// The accepted coins form a canonical system, so greedy yields the fewest
// coins. Adding a denomination that breaks this needs exact change-making.
type GreedyChange struct{}

func NewGreedyChange() GreedyChange {
	return GreedyChange{}
}

func (GreedyChange) MakeChange(amount int) ([]int, error) {
	if amount < 0 || amount%models.SmallestDenomination != 0 {
		return nil, fmt.Errorf("%w: %d", models.ErrUnrepresentableAmount, amount)
	}

	change := []int{}
	remaining := amount
	for _, coin := range models.Denominations {
		count := remaining / coin
		for i := 0; i < count; i++ {
			change = append(change, coin)
		}
		remaining -= count * coin
	}
	if remaining != 0 {
		return nil, fmt.Errorf("%w: %d left over", models.ErrUnrepresentableAmount, remaining)
	}
	return change, nil
}
