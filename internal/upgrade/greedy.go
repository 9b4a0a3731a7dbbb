package upgrade

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/zainarain279/Dropee/internal/game/entity"
	"github.com/zainarain279/Dropee/internal/gateway"
)

var ErrNoUpgrades = errors.New("no affordable upgrades")

// Purchaser buys one level of an upgrade and may return the refreshed list.
type Purchaser interface {
	PurchaseUpgrade(ctx context.Context, token, id string) ([]entity.UpgradeItem, error)
}

// Catalogue fetches the current upgrade list.
type Catalogue interface {
	Config(ctx context.Context, token string) (*entity.GameConfig, error)
}

// Shop is what the greedy upgrader needs from the gateway.
type Shop interface {
	Purchaser
	Catalogue
}

// Summary is the outcome of one upgrade run. Remaining always equals the
// starting budget minus Spent.
type Summary struct {
	Purchased []string
	Spent     float64
	Remaining float64
	Passes    int
}

// Upgrader buys the best-ROI upgrades it can afford.
type Upgrader struct {
	Shop     Shop
	MaxPrice float64
	// Exhaust repeats refresh -> rank -> buy until a pass spends nothing.
	// Free upgrades are bought once per pass, so a pass of only free
	// upgrades ends the run.
	Exhaust bool
	// Pause runs after every successful purchase.
	Pause func(ctx context.Context) error
	Now   func() time.Time
	Log   *zap.SugaredLogger
}

func (u *Upgrader) now() time.Time {
	if u.Now != nil {
		return u.Now()
	}
	return time.Now()
}

// Run spends at most budget. It returns ErrNoUpgrades when the first pass
// finds nothing eligible, and stops early on auth errors or cancellation.
func (u *Upgrader) Run(ctx context.Context, token string, budget float64) (Summary, error) {
	sum := Summary{Remaining: budget}
	for {
		cfg, err := u.Shop.Config(ctx, token)
		if err != nil {
			return sum, err
		}
		ranked := Rank(cfg.Upgrades, Filter{MaxPrice: u.MaxPrice, Budget: sum.Remaining, Now: u.now()})
		if len(ranked) == 0 {
			if sum.Passes == 0 {
				return sum, ErrNoUpgrades
			}
			return sum, nil
		}
		sum.Passes++

		spent := sum.Spent
		bought, err := u.pass(ctx, token, ranked, &sum)
		if err != nil {
			return sum, err
		}
		if !u.Exhaust || bought == 0 || sum.Spent == spent {
			return sum, nil
		}
	}
}

func (u *Upgrader) pass(ctx context.Context, token string, ranked []Ranked, sum *Summary) (int, error) {
	bought := 0
	for _, it := range ranked {
		if it.Price > sum.Remaining {
			continue
		}
		u.Log.Infow("upgrading", "upgrade", it.Name, "id", it.ID, "price", it.Price, "profit_delta", it.ProfitDelta)
		if _, err := u.Shop.PurchaseUpgrade(ctx, token, it.ID); err != nil {
			if gateway.IsAuth(err) || ctx.Err() != nil {
				return bought, err
			}
			u.Log.Warnw("upgrade failed", "upgrade", it.Name, "err", err)
			continue
		}
		bought++
		sum.Spent += it.Price
		sum.Remaining -= it.Price
		sum.Purchased = append(sum.Purchased, it.ID)
		u.Log.Infow("upgrade successful", "upgrade", it.Name, "remaining", sum.Remaining)
		if u.Pause != nil {
			if err := u.Pause(ctx); err != nil {
				return bought, err
			}
		}
	}
	return bought, nil
}
