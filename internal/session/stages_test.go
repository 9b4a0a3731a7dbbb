package session

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/zainarain279/Dropee/internal/config"
	"github.com/zainarain279/Dropee/internal/game/entity"
)

func TestOnboardingStage(t *testing.T) {
	tests := []struct {
		name       string
		onboarding *entity.Onboarding
		err        error
		calls      int
		want       StageStatus
	}{
		{"already done", &entity.Onboarding{Done: true}, nil, 0, StageSkipped},
		{"not done", &entity.Onboarding{Done: false}, nil, 1, StageDone},
		{"no record", nil, nil, 1, StageDone},
		{"rejected", nil, rejected("onboarding"), 1, StageFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := baseState()
			st.Onboarding = tt.onboarding
			api := &fakeAPI{state: st, errs: map[string]error{"onboarding": tt.err}}
			r, _ := newTestRunner(t, config.Config{}, api)
			rep := r.Run(context.Background(), acct, "ua", validToken(t))

			if rep.Outcome != Completed {
				t.Fatalf("report = %+v", rep)
			}
			if got := api.count("onboarding"); got != tt.calls {
				t.Fatalf("onboarding calls = %d, want %d", got, tt.calls)
			}
			if s, _ := rep.Stage(StageOnboarding); s.Status != tt.want {
				t.Fatalf("stage = %+v, want %v", s, tt.want)
			}
		})
	}
}

func TestTasksStage(t *testing.T) {
	join := entity.Task{ID: "join", Title: "join", ClaimDelay: 5}
	done := entity.Task{ID: "old", Title: "old", IsDone: true}
	promo := entity.Task{ID: "promo", Title: "promo", ClaimDelay: 9}
	follow := entity.Task{ID: "follow", Title: "follow"}

	tests := []struct {
		name  string
		tasks []entity.Task
		skip  config.StringList
		errs  map[string]error
		calls []string
		slept time.Duration
		want  StageStatus
	}{
		{
			name:  "action then claim after delay",
			tasks: []entity.Task{join, done, promo, follow},
			skip:  config.StringList{"promo"},
			calls: []string{"config", "task action", "task claim", "task action", "task claim"},
			// gap, join claim delay, pause, pause
			slept: 2*time.Second + 5*time.Second + 2*time.Second + 2*time.Second,
			want:  StageDone,
		},
		{
			name:  "failed action skips the claim",
			tasks: []entity.Task{join},
			errs:  map[string]error{"task action": rejected("task action")},
			calls: []string{"config", "task action"},
			slept: 2 * time.Second,
			want:  StageDone,
		},
		{
			name:  "nothing open",
			tasks: []entity.Task{done},
			calls: []string{"config"},
			slept: 2 * time.Second,
			want:  StageSkipped,
		},
		{
			name:  "everything skipped",
			tasks: []entity.Task{join},
			skip:  config.StringList{"join"},
			calls: []string{"config"},
			slept: 2 * time.Second,
			want:  StageSkipped,
		},
		{
			name:  "auth error on claim",
			tasks: []entity.Task{join},
			errs:  map[string]error{"task claim": authErr("task claim")},
			calls: []string{"config", "task action", "task claim"},
			slept: 2*time.Second + 5*time.Second,
			want:  StageFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{state: baseState(), cfg: &entity.GameConfig{Tasks: tt.tasks}, errs: tt.errs}
			cfg := config.Config{
				AutoTask:             true,
				SkipTasks:            tt.skip,
				DelayBetweenRequests: config.Range{Min: 2, Max: 2},
			}
			r, sl := newTestRunner(t, cfg, api)
			rep := r.Run(context.Background(), acct, "ua", validToken(t))

			if got := api.only("config", "task action", "task claim"); !reflect.DeepEqual(got, tt.calls) {
				t.Fatalf("calls = %v, want %v", got, tt.calls)
			}
			if sl.total != tt.slept {
				t.Fatalf("slept %v, want %v", sl.total, tt.slept)
			}
			if s, _ := rep.Stage(StageTasks); s.Status != tt.want {
				t.Fatalf("stage = %+v, want %v", s, tt.want)
			}
		})
	}
}

func TestDailyQuestionStage(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		lastDone string
		answerOK bool
		err      error
		calls    []string
		want     StageStatus
		outcome  Outcome
	}{
		{"correct answer", "42", "", true, nil, []string{"question", "answer"}, StageDone, Completed},
		{"wrong answer", "41", "2026-03-09T10:00:00Z", false, nil, []string{"question", "answer"}, StageDone, Completed},
		{"answer rejected", "42", "", false, rejected("answer"), []string{"question", "answer"}, StageDone, Completed},
		{"auth error", "42", "", false, authErr("answer"), []string{"question", "answer"}, StageFailed, Failed},
		{"answered today", "42", "2026-03-10T08:00:00Z", false, nil, nil, StageSkipped, Completed},
		{"no answer configured", "", "", false, nil, nil, StageSkipped, Completed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := baseState()
			st.Challenges = &entity.Challenges{DailyQuestion: &entity.DailyQuestion{LastDone: tt.lastDone}}
			api := &fakeAPI{state: st, answerOK: tt.answerOK, errs: map[string]error{"answer": tt.err}}
			cfg := config.Config{AutoAnswerDaily: true, AnswerDaily: tt.answer}
			r, _ := newTestRunner(t, cfg, api)
			rep := r.Run(context.Background(), acct, "ua", validToken(t))

			if rep.Outcome != tt.outcome {
				t.Fatalf("report = %+v", rep)
			}
			if got := api.only("question", "answer"); !reflect.DeepEqual(got, tt.calls) {
				t.Fatalf("calls = %v, want %v", got, tt.calls)
			}
			if s, _ := rep.Stage(StageDailyQuestion); s.Status != tt.want {
				t.Fatalf("stage = %+v, want %v", s, tt.want)
			}
		})
	}
}

func TestAdsStage(t *testing.T) {
	const (
		spinAd    = "ad extra-spin-by-ad"
		offlineAd = "ad multiply-offline-profit-for-ad"
	)
	policy := func(others, offline int) *entity.GameConfig {
		return &entity.GameConfig{Game: &entity.GameSettings{Ads: &entity.AdPolicy{
			Others:              entity.AdLimit{MaxPerDay: others},
			DoubleOfflineProfit: entity.AdLimit{MaxPerDay: offline},
		}}}
	}

	tests := []struct {
		name  string
		act   *entity.Activities
		cfg   *entity.GameConfig
		errs  map[string]error
		calls []string
		slept time.Duration
		want  StageStatus
	}{
		{
			name:  "spin ads up to the daily limit then offline profit",
			act:   &entity.Activities{WatchAdForSpin: 1, WatchAdInterstitial: 1},
			cfg:   policy(5, 1),
			calls: []string{"config", spinAd, spinAd, spinAd, offlineAd},
			slept: 4 * adWait,
			want:  StageDone,
		},
		{
			name:  "spin ad cap",
			act:   &entity.Activities{WatchAdForSpin: 8, WatchAdForDoubleOfflineProfit: 1},
			cfg:   policy(100, 1),
			calls: []string{"config", spinAd, spinAd},
			slept: 2 * adWait,
			want:  StageDone,
		},
		{
			name:  "limits reached",
			act:   &entity.Activities{WatchAdForSpin: 3, WatchAdForDoublePrize: 2, WatchAdForDoubleOfflineProfit: 2},
			cfg:   policy(5, 2),
			calls: []string{"config"},
			want:  StageDone,
		},
		{
			name:  "rejected claims keep going",
			act:   &entity.Activities{},
			cfg:   policy(2, 0),
			errs:  map[string]error{spinAd: rejected("ad")},
			calls: []string{"config", spinAd, spinAd},
			slept: 2 * adWait,
			want:  StageDone,
		},
		{
			name:  "no activity record",
			cfg:   policy(5, 1),
			calls: nil,
			want:  StageSkipped,
		},
		{
			name:  "no ad policy",
			act:   &entity.Activities{},
			cfg:   &entity.GameConfig{},
			calls: []string{"config"},
			want:  StageSkipped,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := baseState()
			st.Activities = tt.act
			api := &fakeAPI{state: st, cfg: tt.cfg, errs: tt.errs}
			r, sl := newTestRunner(t, config.Config{AutoAds: true}, api)
			rep := r.Run(context.Background(), acct, "ua", validToken(t))

			if rep.Outcome != Completed {
				t.Fatalf("report = %+v", rep)
			}
			if got := api.only("config", spinAd, offlineAd); !reflect.DeepEqual(got, tt.calls) {
				t.Fatalf("calls = %v, want %v", got, tt.calls)
			}
			if sl.total != tt.slept {
				t.Fatalf("slept %v, want %v", sl.total, tt.slept)
			}
			if s, _ := rep.Stage(StageAds); s.Status != tt.want {
				t.Fatalf("stage = %+v, want %v", s, tt.want)
			}
		})
	}
}

func TestRunPacesWithConfiguredDelays(t *testing.T) {
	api := &fakeAPI{state: baseState(), spins: 2, cfg: &entity.GameConfig{Tasks: []entity.Task{{ID: "t"}}}}
	cfg := config.Config{
		AutoSpin:             true,
		AutoTask:             true,
		DelayStartBot:        config.Range{Min: 1, Max: 1},
		DelayBetweenRequests: config.Range{Min: 3, Max: 3},
		DelayBetweenGame:     config.Range{Min: 7, Max: 7},
	}
	r, sl := newTestRunner(t, cfg, api)
	if rep := r.Run(context.Background(), acct, "ua", validToken(t)); rep.Outcome != Completed {
		t.Fatalf("report = %+v", rep)
	}

	// start delay, two wheel games, task gap, task pause
	want := []time.Duration{time.Second, 7 * time.Second, 7 * time.Second, 3 * time.Second, 3 * time.Second}
	if !reflect.DeepEqual(sl.each, want) {
		t.Fatalf("sleeps = %v, want %v", sl.each, want)
	}
}
