package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zainarain279/Dropee/internal/energy"
	"github.com/zainarain279/Dropee/internal/game/entity"
	"github.com/zainarain279/Dropee/internal/gateway"
	"github.com/zainarain279/Dropee/internal/upgrade"
)

// Stage names as they appear in reports and logs.
const (
	StageOnboarding    = "onboarding"
	StageTap           = "tap"
	StageCheckin       = "checkin"
	StageAds           = "ads"
	StageSpin          = "spin"
	StageDailyQuestion = "daily_question"
	StageCombo         = "daily_combo"
	StageUpgrade       = "upgrade"
	StageTasks         = "tasks"
	StageDailyTasks    = "daily_tasks"
)

func (s *run) stages() []stageFunc {
	c := s.Cfg
	return []stageFunc{
		{StageOnboarding, !s.state.OnboardingDone(), s.onboarding},
		{StageTap, c.AutoTap, s.tap},
		{StageCheckin, true, s.checkin},
		{StageAds, c.AutoAds, s.ads},
		{StageSpin, c.AutoSpin, s.spin},
		{StageDailyQuestion, c.AutoAnswerDaily, s.dailyQuestion},
		{StageCombo, c.AutoDailyCombo, s.combo},
		{StageUpgrade, c.AutoUpgrade, s.upgrade},
		{StageTasks, c.AutoTask, s.tasks},
		{StageDailyTasks, len(c.DailyTasks) > 0, s.dailyTasks},
	}
}

func (s *run) onboarding(ctx context.Context) error {
	s.log.Warnw("onboarding not completed, processing")
	if err := s.api.CompleteOnboarding(ctx, s.token); err != nil {
		return err
	}
	s.log.Infow("onboarding completed")
	return nil
}

// tap spends the available energy in energy.Parts requests.
func (s *run) tap(ctx context.Context) error {
	avail := s.state.Energy.Available
	if avail < energy.Parts {
		return skip(fmt.Sprintf("not enough energy to tap: %d", avail))
	}
	total := energy.Cap(avail, energy.Parts)
	parts, err := energy.Distribute(total, energy.Parts, s.rng)
	if err != nil {
		return err
	}
	spent := 0
	for i, n := range parts {
		spent += n
		req := gateway.TapRequest{
			Count:           n,
			StartTimestamp:  s.Now().Unix(),
			Duration:        35 + s.rng.IntN(6),
			AvailableEnergy: avail - spent,
		}
		coins, err := s.api.Tap(ctx, s.token, req)
		if err != nil {
			return fmt.Errorf("tap %d/%d: %w", i+1, len(parts), err)
		}
		s.coins = coins
		s.log.Debugw("tap", "n", i+1, "energy", n, "duration_ms", req.Duration)
		if err := s.Sleep(ctx, tapPause); err != nil {
			return err
		}
	}
	s.log.Infow("tap successful", "balance", s.coins)
	return nil
}

// needsCheckin compares calendar days in UTC.
func needsCheckin(last string, now time.Time) bool {
	t, ok := entity.ParseDate(last)
	if !ok {
		return true
	}
	return t.UTC().Format(time.DateOnly) != now.UTC().Format(time.DateOnly)
}

func (s *run) checkin(ctx context.Context) error {
	if !needsCheckin(s.state.LastCheckin(), s.Now()) {
		return skip("already checked in today")
	}
	if err := s.api.DailyCheckin(ctx, s.token); err != nil {
		return err
	}
	s.log.Infow("check-in successful")
	return nil
}

// ads claims spin ads up to the daily limit, then the offline profit ad.
func (s *run) ads(ctx context.Context) error {
	act := s.state.Activities
	if act == nil {
		return skip("no ad activity record")
	}
	cfg, err := s.api.Config(ctx, s.token)
	if err != nil {
		return err
	}
	policy := cfg.AdPolicy()
	if policy == nil {
		return skip("no ad policy")
	}

	watched := act.WatchAdForSpin + act.WatchAdForDoublePrize + act.WatchAdInterstitial
	spins := act.WatchAdForSpin
	for watched < policy.Others.MaxPerDay && spins < maxAdSpins {
		s.log.Infow("waiting for spin ad", "watched", watched)
		if err := s.Sleep(ctx, adWait); err != nil {
			return err
		}
		if err := s.claimAd(ctx, gateway.AdExtraSpin); err != nil {
			return err
		}
		watched++
		spins++
	}
	if act.WatchAdForDoubleOfflineProfit < policy.DoubleOfflineProfit.MaxPerDay {
		s.log.Infow("waiting for double offline profit ad")
		if err := s.Sleep(ctx, adWait); err != nil {
			return err
		}
		return s.claimAd(ctx, gateway.AdDoubleOfflineProfit)
	}
	return nil
}

// claimAd logs ordinary rejections and only returns errors that end the session.
func (s *run) claimAd(ctx context.Context, kind gateway.AdKind) error {
	err := s.api.ClaimAd(ctx, s.token, kind)
	switch {
	case err == nil:
		s.log.Infow("claimed ad", "kind", string(kind))
	case abort(err):
		return err
	default:
		s.log.Warnw("ad claim failed", "kind", string(kind), "err", err)
	}
	return nil
}

func (s *run) spin(ctx context.Context) error {
	n, err := s.api.WheelState(ctx, s.token)
	if err != nil {
		return err
	}
	if n <= 0 {
		return skip("no spins available")
	}
	s.log.Infow("spins available", "spins", n)
	for i := 0; i < n; i++ {
		prize, err := s.api.SpinWheel(ctx, s.token)
		if err != nil {
			if abort(err) {
				return err
			}
			s.log.Warnw("spin failed", "n", i+1, "err", err)
			continue
		}
		s.log.Infow("spin successful", "n", i+1, "prize", prize.String())
		if err := s.Sleep(ctx, s.Cfg.DelayBetweenGame.Pick()); err != nil {
			return err
		}
	}
	return nil
}

// dailyQuestion answers once per day. The answer result only gets logged.
func (s *run) dailyQuestion(ctx context.Context) error {
	if last, ok := entity.ParseDate(s.state.DailyQuestionLastDone()); ok && !last.Before(entity.StartOfDay(s.Now())) {
		return skip("daily question already answered")
	}
	if s.Cfg.AnswerDaily == "" {
		return skip("no answer configured")
	}
	if err := s.pace(ctx); err != nil {
		return err
	}
	q, err := s.api.DailyQuestion(ctx, s.token)
	if err != nil {
		return err
	}
	if err := s.pace(ctx); err != nil {
		return err
	}
	ok, err := s.api.AnswerDailyQuestion(ctx, s.token, s.Cfg.AnswerDaily)
	switch {
	case err != nil && abort(err):
		return err
	case err != nil:
		s.log.Warnw("daily answer failed", "question", q, "err", err)
	case ok:
		s.log.Infow("daily answer correct", "question", q, "answer", s.Cfg.AnswerDaily)
	default:
		s.log.Warnw("daily answer wrong", "question", q, "answer", s.Cfg.AnswerDaily)
	}
	return nil
}

func (s *run) combo(ctx context.Context) error {
	credited := upgrade.Credited(s.state.DailyCombo(), s.Now())
	if len(credited) >= upgrade.ComboSize {
		return skip("daily combo completed")
	}
	if len(s.Cfg.DailyCombo) != upgrade.ComboSize {
		return fmt.Errorf("%w: got %d", upgrade.ErrInvalidComboTargets, len(s.Cfg.DailyCombo))
	}
	if err := s.pace(ctx); err != nil {
		return err
	}
	cfg, err := s.api.Config(ctx, s.token)
	if err != nil {
		return err
	}
	r := &upgrade.Resolver{
		Purchaser: s.api,
		MaxPrice:  s.Cfg.MaxUpgradePrice,
		Pause:     func(ctx context.Context) error { return s.Sleep(ctx, buyPause) },
		Now:       s.Now,
		Log:       s.log,
	}
	res, err := r.Resolve(ctx, s.token, s.Cfg.DailyCombo, credited, cfg.Upgrades, s.coins)
	s.coins -= res.Spent
	if err != nil {
		return err
	}
	var errs []error
	for _, t := range res.Targets {
		if t.Outcome == upgrade.CycleDetected || t.Outcome == upgrade.Failed {
			errs = append(errs, fmt.Errorf("%s: %w", t.ID, t.Err))
		}
	}
	s.log.Infow("daily combo attempted", "purchases", len(res.Purchases), "spent", res.Spent)
	return errors.Join(errs...)
}

func (s *run) upgrade(ctx context.Context) error {
	if err := s.pace(ctx); err != nil {
		return err
	}
	u := &upgrade.Upgrader{
		Shop:     s.api,
		MaxPrice: s.Cfg.MaxUpgradePrice,
		Exhaust:  s.Cfg.AutoUpgradeMax,
		Pause:    func(ctx context.Context) error { return s.Sleep(ctx, buyPause) },
		Now:      s.Now,
		Log:      s.log,
	}
	sum, err := u.Run(ctx, s.token, s.coins)
	s.coins -= sum.Spent
	if errors.Is(err, upgrade.ErrNoUpgrades) {
		return skip("no upgrades available")
	}
	if err != nil {
		return err
	}
	s.log.Infow("upgrades done", "purchased", len(sum.Purchased), "spent", sum.Spent, "remaining", sum.Remaining)
	return nil
}

// tasks completes every open task not in SKIP_TASKS: action, claimDelay, claim.
func (s *run) tasks(ctx context.Context) error {
	if err := s.pace(ctx); err != nil {
		return err
	}
	cfg, err := s.api.Config(ctx, s.token)
	if err != nil {
		return err
	}
	var open []entity.Task
	for _, t := range cfg.Tasks {
		if !t.IsDone && !s.Cfg.SkipTasks.Contains(t.ID) {
			open = append(open, t)
		}
	}
	if len(open) == 0 {
		return skip("all tasks completed")
	}
	for _, t := range open {
		s.log.Infow("processing task", "task", t.Title, "id", t.ID)
		if err := s.api.CompleteTaskAction(ctx, s.token, t.ID); err != nil {
			if abort(err) {
				return err
			}
			s.log.Warnw("cannot complete task action", "id", t.ID, "err", err)
			continue
		}
		if t.ClaimDelay > 0 {
			s.log.Infow("waiting to claim reward", "id", t.ID, "delay_seconds", t.ClaimDelay)
			if err := s.Sleep(ctx, time.Duration(t.ClaimDelay)*time.Second); err != nil {
				return err
			}
		}
		if err := s.api.ClaimTaskReward(ctx, s.token, t.ID); err != nil {
			if abort(err) {
				return err
			}
			s.log.Warnw("cannot claim task reward", "id", t.ID, "err", err)
		} else {
			s.log.Infow("task completed", "task", t.Title, "reward", t.Reward)
		}
		if err := s.pace(ctx); err != nil {
			return err
		}
	}
	return nil
}

// pendingDailyTasks drops ids already claimed when the claim record is for
// today or later.
func pendingDailyTasks(want []string, rec *entity.DailyTasks, now time.Time) []string {
	if rec == nil {
		return want
	}
	d, ok := entity.ParseDate(rec.Date)
	if !ok || d.Before(entity.StartOfDay(now)) {
		return want
	}
	claimed := make(map[string]bool)
	for _, id := range rec.ClaimedIDs() {
		claimed[id] = true
	}
	var out []string
	for _, id := range want {
		if !claimed[id] {
			out = append(out, id)
		}
	}
	return out
}

func (s *run) dailyTasks(ctx context.Context) error {
	pending := pendingDailyTasks(s.Cfg.DailyTasks, s.state.DailyTasks(), s.Now())
	if len(pending) == 0 {
		return skip("daily tasks already claimed")
	}
	if err := s.pace(ctx); err != nil {
		return err
	}
	for _, id := range pending {
		var err error
		switch id {
		case "poke":
			err = s.pokeAndClaim(ctx)
		case "allDone":
			err = s.allDone(ctx)
		default:
			err = s.api.ClaimDailyTask(ctx, s.token, id)
		}
		switch {
		case err == nil:
			s.log.Infow("daily task completed", "task", id)
		case abort(err):
			return err
		default:
			s.log.Warnw("daily task not claimed", "task", id, "err", err)
		}
		if err := s.pace(ctx); err != nil {
			return err
		}
	}
	return nil
}

var errNoFriendToPoke = errors.New("no friend left to poke today")

func (s *run) pokeAndClaim(ctx context.Context) error {
	friends, err := s.api.Friends(ctx, s.token)
	if err != nil {
		return err
	}
	f, ok := friends.NextToPoke()
	if !ok {
		return errNoFriendToPoke
	}
	if err := s.api.Poke(ctx, s.token, f.ID); err != nil {
		return err
	}
	return s.api.ClaimDailyTask(ctx, s.token, "poke")
}

var errNotAllDone = errors.New("not enough daily tasks claimed for allDone")

// allDone re-syncs and claims only once enough daily tasks are claimed.
func (s *run) allDone(ctx context.Context) error {
	st, err := s.api.Sync(ctx, s.token)
	if err != nil {
		return err
	}
	var n int
	if rec := st.DailyTasks(); rec != nil {
		n = len(rec.ClaimedIDs())
	}
	if n < allDoneNeed {
		return fmt.Errorf("%w: %d of %d", errNotAllDone, n, allDoneNeed)
	}
	return s.api.ClaimDailyTask(ctx, s.token, "allDone")
}
