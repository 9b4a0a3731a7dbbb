package upgrade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zainarain279/Dropee/internal/game/entity"
	"github.com/zainarain279/Dropee/internal/gateway"
)

// ComboSize is the number of items a daily combo asks for.
const ComboSize = 3

var (
	ErrInvalidComboTargets = errors.New("daily combo needs exactly 3 targets")
	ErrCycleDetected       = errors.New("requirement cycle detected")
	ErrNotFound            = errors.New("upgrade not found")
)

// Outcome is the result of resolving one combo target.
type Outcome int

const (
	Resolved Outcome = iota + 1
	AlreadyCredited
	Skipped
	CycleDetected
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case AlreadyCredited:
		return "already_credited"
	case Skipped:
		return "skipped"
	case CycleDetected:
		return "cycle_detected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// CycleError carries the requirement path that loops back on itself.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCycleDetected, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected
}

// TargetResult reports what happened to one combo target.
type TargetResult struct {
	ID        string
	Outcome   Outcome
	Purchases []string
	Err       error
}

// ComboResult is the outcome of one combo attempt.
type ComboResult struct {
	Targets   []TargetResult
	Purchases []string
	Spent     float64
	Remaining float64
}

// NormalizeTarget maps a configured combo name onto an upgrade id.
func NormalizeTarget(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "_"))
}

// Credited returns the combo ids already found in the current period. The
// period is over once the server combo date falls before local midnight.
func Credited(combo *entity.DailyCombo, now time.Time) []string {
	if combo == nil {
		return nil
	}
	if d, ok := entity.ParseDate(combo.CurrentDate); ok && d.Before(entity.StartOfDay(now)) {
		return nil
	}
	return combo.FoundCombo
}

// Resolver buys combo targets, unlocking their requirement chains first.
type Resolver struct {
	Purchaser Purchaser
	MaxPrice  float64
	// Pause runs after every successful purchase.
	Pause func(ctx context.Context) error
	Now   func() time.Time
	Log   *zap.SugaredLogger
}

type resolution struct {
	r      *Resolver
	token  string
	items  map[string]*entity.UpgradeItem
	owned  map[string]bool
	budget float64
	spent  float64
	bought []string
}

// Resolve attempts every target that is not in credited. items is the
// upgrade list fetched just before the attempt; budget is the coin balance.
// Failures are per target; only cancellation and auth errors are returned.
func (r *Resolver) Resolve(ctx context.Context, token string, targets, credited []string, items []entity.UpgradeItem, budget float64) (ComboResult, error) {
	if len(targets) != ComboSize {
		return ComboResult{Remaining: budget}, fmt.Errorf("%w: got %d", ErrInvalidComboTargets, len(targets))
	}
	res := &resolution{
		r:      r,
		token:  token,
		items:  make(map[string]*entity.UpgradeItem, len(items)),
		owned:  make(map[string]bool),
		budget: budget,
	}
	for i := range items {
		it := items[i]
		res.items[it.ID] = &it
	}
	for _, id := range credited {
		res.owned[NormalizeTarget(id)] = true
	}

	var out ComboResult
	for _, raw := range targets {
		id := NormalizeTarget(raw)
		tr, err := res.target(ctx, id)
		out.Targets = append(out.Targets, tr)
		r.Log.Infow("combo target", "upgrade", id, "outcome", tr.Outcome.String(), "purchases", len(tr.Purchases), "err", tr.Err)
		if err != nil {
			out.Purchases, out.Spent, out.Remaining = res.bought, res.spent, res.budget
			return out, err
		}
	}
	out.Purchases, out.Spent, out.Remaining = res.bought, res.spent, res.budget
	return out, nil
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

type frame struct {
	id   string
	want int
}

// target drives a worklist for one combo id. Each frame asks for its item to
// reach want; a frame whose gate is too low pushes the gate on top. The set
// of ids on the stack is the active path.
func (res *resolution) target(ctx context.Context, id string) (TargetResult, error) {
	tr := TargetResult{ID: id}
	if res.owned[id] {
		tr.Outcome = AlreadyCredited
		return tr, nil
	}
	root, ok := res.items[id]
	if !ok {
		tr.Outcome, tr.Err = Skipped, ErrNotFound
		return tr, nil
	}
	if err := res.check(root); err != nil {
		tr.Outcome, tr.Err = Skipped, err
		return tr, nil
	}

	stack := []frame{{id: id, want: root.Level + 1}}
	onPath := map[string]bool{id: true}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		it, ok := res.items[top.id]
		if !ok {
			tr.Outcome, tr.Err = Skipped, fmt.Errorf("%w: %s", ErrNotFound, top.id)
			return tr, nil
		}
		if it.Level >= top.want {
			stack = stack[:len(stack)-1]
			delete(onPath, top.id)
			continue
		}
		if req, ok := it.Requirement(); ok {
			if gate, ok := res.items[req.ID]; ok && gate.Level < req.Level {
				if onPath[req.ID] {
					path := make([]string, 0, len(stack)+1)
					for _, f := range stack {
						path = append(path, f.id)
					}
					tr.Outcome, tr.Err = CycleDetected, &CycleError{Path: append(path, req.ID)}
					return tr, nil
				}
				stack = append(stack, frame{id: req.ID, want: req.Level})
				onPath[req.ID] = true
				continue
			}
		}
		if err := res.check(it); err != nil {
			tr.Outcome, tr.Err = Skipped, fmt.Errorf("%s: %w", it.ID, err)
			return tr, nil
		}
		if err := res.buy(ctx, it); err != nil {
			tr.Outcome, tr.Err = Failed, err
			if gateway.IsAuth(err) || ctx.Err() != nil {
				return tr, err
			}
			return tr, nil
		}
		tr.Purchases = append(tr.Purchases, it.ID)
	}
	tr.Outcome = Resolved
	return tr, nil
}

func (res *resolution) check(it *entity.UpgradeItem) error {
	return Check(*it, Filter{MaxPrice: res.r.MaxPrice, Budget: res.budget, Now: res.r.now()})
}

// buy purchases one level of it and refreshes the local view. The bought
// item always ends at least one level higher so the worklist advances.
func (res *resolution) buy(ctx context.Context, it *entity.UpgradeItem) error {
	prev := it.Level
	price := it.Price
	res.r.Log.Infow("combo purchase", "upgrade", it.Name, "id", it.ID, "price", price, "level", prev)
	fresh, err := res.r.Purchaser.PurchaseUpgrade(ctx, res.token, it.ID)
	if err != nil {
		return err
	}
	for i := range fresh {
		f := fresh[i]
		if cur, ok := res.items[f.ID]; ok {
			*cur = f
		} else {
			res.items[f.ID] = &f
		}
	}
	if it = res.items[it.ID]; it.Level <= prev {
		it.Level = prev + 1
	}
	res.budget -= price
	res.spent += price
	res.bought = append(res.bought, it.ID)
	res.owned[it.ID] = true
	if res.r.Pause != nil {
		return res.r.Pause(ctx)
	}
	return nil
}
