// Package session runs the per-account state machine: authenticate, sync,
// then every enabled game stage in a fixed order, then a final sync.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/zainarain279/Dropee/internal/account"
	"github.com/zainarain279/Dropee/internal/config"
	"github.com/zainarain279/Dropee/internal/credential"
	"github.com/zainarain279/Dropee/internal/game/entity"
	"github.com/zainarain279/Dropee/internal/gateway"
	"github.com/zainarain279/Dropee/internal/useragent"
	"github.com/zainarain279/Dropee/pkg/utilities"
)

// API is the slice of the game gateway a session drives.
type API interface {
	Authenticate(ctx context.Context, initData, referralCode string) (*gateway.Login, error)
	Sync(ctx context.Context, token string) (*entity.PlayerState, error)
	Tap(ctx context.Context, token string, req gateway.TapRequest) (float64, error)
	CompleteOnboarding(ctx context.Context, token string) error
	DailyCheckin(ctx context.Context, token string) error
	Config(ctx context.Context, token string) (*entity.GameConfig, error)
	PurchaseUpgrade(ctx context.Context, token, id string) ([]entity.UpgradeItem, error)
	CompleteTaskAction(ctx context.Context, token, taskID string) error
	ClaimTaskReward(ctx context.Context, token, taskID string) error
	ClaimDailyTask(ctx context.Context, token, taskID string) error
	WheelState(ctx context.Context, token string) (int, error)
	SpinWheel(ctx context.Context, token string) (gateway.Prize, error)
	ClaimAd(ctx context.Context, token string, kind gateway.AdKind) error
	DailyQuestion(ctx context.Context, token string) (string, error)
	AnswerDailyQuestion(ctx context.Context, token, answer string) (bool, error)
	Friends(ctx context.Context, token string) (gateway.FriendList, error)
	Poke(ctx context.Context, token string, friendID gateway.FlexID) error
	AddFriend(ctx context.Context, token, referralCode string) error
	CheckReferral(ctx context.Context, token, referralCode string) error
	ProxyIP(ctx context.Context) (string, error)
}

// Dialer builds the gateway for one account.
type Dialer func(acct account.Account, userAgent string) (API, error)

// GatewayDialer returns a Dialer backed by gateway.Client. Requests are logged
// at debug level through log.
func GatewayDialer(cfg config.Config, log *zap.SugaredLogger) Dialer {
	return func(acct account.Account, userAgent string) (API, error) {
		opts := gateway.Options{
			BaseURL:    cfg.BaseURL,
			IPCheckURL: cfg.IPCheckURL,
			Timeout:    cfg.RequestTimeout,
			Headers:    gateway.DefaultHeaders(userAgent, useragent.Platform(userAgent)),
		}
		if log != nil {
			opts.Log = log.With("account", acct.Label())
		}
		if cfg.UseProxy {
			opts.Proxy = acct.Proxy
		}
		c, err := gateway.New(opts)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Fixed spacing the game server expects. Pacing between ordinary requests
// and between wheel games comes from DELAY_BETWEEN_REQUESTS and
// DELAY_BETWEEN_GAME.
const (
	tapPause    = time.Second
	buyPause    = time.Second
	adWait      = 15 * time.Second
	maxAdSpins  = 10
	allDoneNeed = 4
)

// Runner executes sessions. One Runner is shared by every worker; all
// per-session state lives on the stack of Run.
type Runner struct {
	Cfg  config.Config
	Dial Dialer
	Log  *zap.SugaredLogger

	// Sleep and Now are replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// NewRunner returns a Runner with real clocks.
func NewRunner(cfg config.Config, dial Dialer, log *zap.SugaredLogger) *Runner {
	return &Runner{Cfg: cfg, Dial: dial, Log: log, Sleep: Sleep, Now: time.Now}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// run is the state of one session.
type run struct {
	*Runner
	api   API
	acct  account.Account
	log   *zap.SugaredLogger
	rng   *rand.Rand
	token string
	state *entity.PlayerState
	coins float64
	rep   Report
}

// Run drives one account from authentication to the final sync. cached is
// the credential the coordinator holds for the account, "" if none.
func (r *Runner) Run(ctx context.Context, acct account.Account, userAgent, cached string) Report {
	s := &run{
		Runner: r,
		acct:   acct,
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		rep:    Report{Index: acct.Index, Identity: acct.Identity},
	}
	s.log = r.Log.With("account", acct.Label(), "identity", acct.Identity, "session", utilities.NewSessionID())

	api, err := r.Dial(acct, userAgent)
	if err != nil {
		s.rep.Outcome, s.rep.Err = Skipped, fmt.Errorf("dial gateway: %w", err)
		s.log.Errorw("cannot build gateway", "err", err)
		return s.rep
	}
	s.api = api
	return s.exec(ctx, cached)
}

func (s *run) exec(ctx context.Context, cached string) Report {
	if s.Cfg.UseProxy && s.acct.Proxy != "" {
		ip, err := s.api.ProxyIP(ctx)
		if err != nil {
			s.log.Errorw("proxy check failed, moving to next account", "err", err)
			s.rep.Outcome, s.rep.Err = Skipped, fmt.Errorf("proxy check: %w", err)
			return s.rep
		}
		s.rep.ProxyIP = ip
	} else {
		s.rep.ProxyIP = "no proxy"
	}
	s.log = s.log.With("proxy_ip", s.rep.ProxyIP)

	delay := s.Cfg.DelayStartBot.Pick()
	s.log.Infow("starting session", "name", s.acct.FirstName, "delay", delay)
	if err := s.Sleep(ctx, delay); err != nil {
		return s.fail(err)
	}

	if err := s.authenticate(ctx, cached); err != nil {
		return s.fail(err)
	}
	s.referral(ctx)

	state, err := s.api.Sync(ctx, s.token)
	if err != nil {
		return s.fail(fmt.Errorf("sync: %w", err))
	}
	s.setState(state)
	s.log.Infow("data sync successful", "coins", state.Coins, "profit", state.Profit,
		"energy", state.Energy.Available, "energy_max", state.Energy.Max)

	for _, st := range s.stages() {
		if err := s.stage(ctx, st); err != nil {
			return s.fail(err)
		}
	}

	if final, err := s.api.Sync(ctx, s.token); err != nil {
		if abort(err) {
			return s.fail(err)
		}
		s.log.Warnw("final sync failed", "err", err)
	} else {
		s.rep.Final = final
		s.log.Infow("final statistics", "coins", final.Coins, "profit", final.Profit,
			"energy", final.Energy.Available, "energy_max", final.Energy.Max)
	}
	s.rep.Outcome = Completed
	return s.rep
}

// authenticate reuses cached when it is still valid and logs in otherwise.
func (s *run) authenticate(ctx context.Context, cached string) error {
	if cached != "" && !credential.IsExpired(cached, s.Now()) {
		s.log.Infow("using cached token")
		s.token = cached
		return nil
	}
	s.log.Warnw("token not found or expired, logging in")
	login, err := s.api.Authenticate(ctx, s.acct.InitData, s.Cfg.RefID)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	s.token = login.Token
	s.rep.Action, s.rep.Token = Put, login.Token
	return nil
}

// referral registers the configured referrer. Best-effort.
func (s *run) referral(ctx context.Context) {
	if s.Cfg.RefID == "" {
		return
	}
	if err := s.api.AddFriend(ctx, s.token, s.Cfg.RefID); err != nil {
		s.log.Debugw("add friend failed", "err", err)
	}
	if err := s.api.CheckReferral(ctx, s.token, s.Cfg.RefID); err != nil {
		s.log.Warnw("referral check failed", "err", err)
		return
	}
	s.log.Infow("referral check successful")
}

// pace waits a DELAY_BETWEEN_REQUESTS interval.
func (s *run) pace(ctx context.Context) error {
	return s.Sleep(ctx, s.Cfg.DelayBetweenRequests.Pick())
}

func (s *run) setState(st *entity.PlayerState) {
	s.state = st
	s.coins = st.Coins
}

// fail ends the session. An auth error evicts the credential so the next
// cycle logs in again.
func (s *run) fail(err error) Report {
	s.rep.Outcome, s.rep.Err = Failed, err
	if gateway.IsAuth(err) {
		s.rep.Action, s.rep.Token = Evict, ""
		s.log.Warnw("deleted invalid token", "err", err)
	} else {
		s.log.Errorw("session failed", "err", err)
	}
	return s.rep
}

// abort reports errors that must end the whole session.
func abort(err error) bool {
	return gateway.IsAuth(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// skipError marks a stage that had nothing to do.
type skipError struct{ reason string }

func (e skipError) Error() string { return e.reason }

func skip(reason string) error { return skipError{reason: reason} }

type stageFunc struct {
	name    string
	enabled bool
	run     func(ctx context.Context) error
}

// stage runs one optional stage. Only errors that must end the session are
// returned; everything else is recorded and logged.
func (s *run) stage(ctx context.Context, st stageFunc) error {
	if !st.enabled {
		s.rep.Stages = append(s.rep.Stages, StageResult{Name: st.name, Status: StageSkipped})
		return nil
	}
	err := st.run(ctx)
	var sk skipError
	switch {
	case err == nil:
		s.rep.Stages = append(s.rep.Stages, StageResult{Name: st.name, Status: StageDone})
	case errors.As(err, &sk):
		s.log.Infow("stage skipped", "stage", st.name, "reason", sk.reason)
		s.rep.Stages = append(s.rep.Stages, StageResult{Name: st.name, Status: StageSkipped})
	default:
		s.rep.Stages = append(s.rep.Stages, StageResult{Name: st.name, Status: StageFailed, Err: err})
		if abort(err) {
			return fmt.Errorf("%s: %w", st.name, err)
		}
		s.log.Warnw("stage failed", "stage", st.name, "err", err)
	}
	return nil
}
