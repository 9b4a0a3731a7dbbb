// Package orchestrator schedules account sessions in bounded batches and is
// the only writer of the credential store.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zainarain279/Dropee/internal/account"
	"github.com/zainarain279/Dropee/internal/session"
	"github.com/zainarain279/Dropee/pkg/utilities"
)

// BatchPause separates consecutive batches inside one cycle.
const BatchPause = 3 * time.Second

var ErrNoWorkers = errors.New("max concurrency must be positive")

// Worker runs one account session.
type Worker interface {
	Run(ctx context.Context, acct account.Account, userAgent, token string) session.Report
}

// Credentials is the store the coordinator reads before launch and writes
// after each batch.
type Credentials interface {
	Get(identity string) (string, bool)
	Put(ctx context.Context, identity, token string) error
	Evict(ctx context.Context, identity string) error
}

// Agents hands out the stable user agent of an identity.
type Agents interface {
	Get(identity string) (agent string, created bool, err error)
}

type Orchestrator struct {
	Accounts       []account.Account
	Worker         Worker
	Store          Credentials
	Agents         Agents
	MaxConcurrency int
	AccountTimeout time.Duration
	CycleInterval  time.Duration
	Log            *zap.SugaredLogger

	// Sleep is replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error

	active atomic.Int64
	peak   atomic.Int64
}

// MaxActive is the highest number of sessions that ran at the same time.
func (o *Orchestrator) MaxActive() int {
	return int(o.peak.Load())
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	if o.Sleep != nil {
		return o.Sleep(ctx, d)
	}
	return session.Sleep(ctx, d)
}

// Run repeats cycles until ctx is cancelled, sleeping CycleInterval between
// them. once stops after the first cycle.
func (o *Orchestrator) Run(ctx context.Context, once bool) error {
	for {
		if _, err := o.RunCycle(ctx); err != nil {
			return err
		}
		if once {
			return nil
		}
		o.Log.Infow("all accounts done, waiting for next cycle", "interval", o.CycleInterval)
		if err := o.sleep(ctx, o.CycleInterval); err != nil {
			return err
		}
	}
}

// RunCycle processes every account once, in batches of at most
// MaxConcurrency. A batch finishes completely before the next starts.
func (o *Orchestrator) RunCycle(ctx context.Context) ([]session.Report, error) {
	if o.MaxConcurrency <= 0 {
		return nil, ErrNoWorkers
	}
	log := o.Log.With("cycle", utilities.NewCycleID())
	log.Infow("cycle started", "accounts", len(o.Accounts), "max_concurrency", o.MaxConcurrency)

	var all []session.Report
	for start := 0; start < len(o.Accounts); {
		size := min(o.MaxConcurrency, len(o.Accounts)-start)
		batch := o.Accounts[start : start+size]
		reports, err := o.runBatch(ctx, batch)
		all = append(all, reports...)
		o.apply(ctx, log, reports)
		if err != nil {
			return all, err
		}
		start += size
		if start < len(o.Accounts) {
			if err := o.sleep(ctx, BatchPause); err != nil {
				return all, err
			}
		}
	}

	counts := map[session.Outcome]int{}
	for _, r := range all {
		counts[r.Outcome]++
	}
	log.Infow("cycle finished",
		"completed", counts[session.Completed],
		"failed", counts[session.Failed],
		"skipped", counts[session.Skipped],
		"timed_out", counts[session.TimedOut])
	return all, nil
}

func (o *Orchestrator) runBatch(ctx context.Context, batch []account.Account) ([]session.Report, error) {
	results := make(chan session.Report, len(batch))
	var g errgroup.Group
	g.SetLimit(o.MaxConcurrency)
	for _, acct := range batch {
		ua, _, err := o.Agents.Get(acct.Identity)
		if err != nil && ua != "" {
			o.Log.Warnw("cannot persist user agent", "account", acct.Label(), "err", err)
		} else if err != nil {
			results <- session.Report{
				Index: acct.Index, Identity: acct.Identity,
				Outcome: session.Skipped, Err: fmt.Errorf("user agent: %w", err),
			}
			continue
		}
		token, _ := o.Store.Get(acct.Identity)
		g.Go(func() error {
			results <- o.runOne(ctx, acct, ua, token)
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	reports := make([]session.Report, 0, len(batch))
	for r := range results {
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Index < reports[j].Index })
	return reports, ctx.Err()
}

// runOne runs a session under its own deadline. The worker observes the
// cancelled context and returns; runOne waits for it so a timed-out session
// never overlaps the next batch.
func (o *Orchestrator) runOne(ctx context.Context, acct account.Account, ua, token string) session.Report {
	n := o.active.Add(1)
	defer o.active.Add(-1)
	for {
		p := o.peak.Load()
		if n <= p || o.peak.CompareAndSwap(p, n) {
			break
		}
	}

	actx, cancel := context.WithTimeout(ctx, o.AccountTimeout)
	defer cancel()
	rep := o.Worker.Run(actx, acct, ua, token)
	if errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		rep.Outcome = session.TimedOut
		if rep.Err == nil {
			rep.Err = actx.Err()
		}
	}
	return rep
}

// apply performs the credential changes the workers asked for.
func (o *Orchestrator) apply(ctx context.Context, log *zap.SugaredLogger, reports []session.Report) {
	// Credential writes must land even while shutting down.
	wctx := context.WithoutCancel(ctx)
	for _, r := range reports {
		l := log.With("account", r.Index+1, "identity", r.Identity, "outcome", r.Outcome.String())
		if r.Err != nil {
			l.Warnw("session ended with error", "err", r.Err)
		} else {
			l.Infow("session ended")
		}
		switch r.Action {
		case session.Put:
			if err := o.Store.Put(wctx, r.Identity, r.Token); err != nil {
				l.Errorw("save token failed", "err", err)
			}
		case session.Evict:
			if err := o.Store.Evict(wctx, r.Identity); err != nil {
				l.Errorw("delete token failed", "err", err)
			}
		}
	}
}
