// Package upgrade decides which cards to buy: ROI ranking with a greedy
// budgeted pass, and the daily combo unlock-chain resolver.
package upgrade

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/zainarain279/Dropee/internal/game/entity"
)

var (
	ErrOverMaxPrice = errors.New("price above configured ceiling")
	ErrOnCooldown   = errors.New("upgrade on cooldown")
	ErrExpired      = errors.New("upgrade expired")
	ErrUnaffordable = errors.New("not enough coins")
)

// Filter bounds which items are eligible. MaxPrice <= 0 disables the ceiling.
type Filter struct {
	MaxPrice float64
	Budget   float64
	Now      time.Time
}

// Ranked is an eligible item with its return on investment.
type Ranked struct {
	entity.UpgradeItem
	ROI float64
}

// ROI is profitDelta/price. A free item ranks first.
func ROI(u entity.UpgradeItem) float64 {
	if u.Price <= 0 {
		return math.Inf(1)
	}
	return u.ProfitDelta / u.Price
}

// Check returns why u cannot be bought under f, nil when it can.
func Check(u entity.UpgradeItem, f Filter) error {
	switch {
	case f.MaxPrice > 0 && u.Price > f.MaxPrice:
		return ErrOverMaxPrice
	case u.OnCooldown(f.Now):
		return ErrOnCooldown
	case u.Expired(f.Now):
		return ErrExpired
	case u.Price > f.Budget:
		return ErrUnaffordable
	}
	return nil
}

// Rank keeps the eligible items and orders them by ROI, highest first. Ties
// keep config order.
func Rank(items []entity.UpgradeItem, f Filter) []Ranked {
	out := make([]Ranked, 0, len(items))
	for _, it := range items {
		if Check(it, f) != nil {
			continue
		}
		out = append(out, Ranked{UpgradeItem: it, ROI: ROI(it)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ROI > out[j].ROI })
	return out
}
