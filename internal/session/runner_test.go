package session

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap/zaptest"

	"github.com/zainarain279/Dropee/internal/account"
	"github.com/zainarain279/Dropee/internal/config"
	"github.com/zainarain279/Dropee/internal/game/entity"
	"github.com/zainarain279/Dropee/internal/gateway"
	"github.com/zainarain279/Dropee/internal/upgrade"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func authErr(op string) error {
	return &gateway.Error{Op: op, Kind: gateway.KindAuth, Status: 401, Message: "invalid token"}
}

func rejected(op string) error {
	return &gateway.Error{Op: op, Kind: gateway.KindRejected, Status: 400, Message: "nope"}
}

// fakeAPI records calls in order and answers from its fields.
type fakeAPI struct {
	calls []string

	login     string
	state     *entity.PlayerState
	cfg       *entity.GameConfig
	spins     int
	friends   gateway.FriendList
	proxyIP   string
	errs      map[string]error
	taps      []gateway.TapRequest
	bought    []string
	claimed   []string
	syncCount int
	answerOK  bool
}

func (f *fakeAPI) call(name string) error {
	f.calls = append(f.calls, name)
	return f.errs[name]
}

func (f *fakeAPI) Authenticate(context.Context, string, string) (*gateway.Login, error) {
	if err := f.call("authenticate"); err != nil {
		return nil, err
	}
	return &gateway.Login{Token: f.login}, nil
}

func (f *fakeAPI) Sync(context.Context, string) (*entity.PlayerState, error) {
	f.syncCount++
	if err := f.call("sync"); err != nil {
		return nil, err
	}
	return f.state, nil
}

func (f *fakeAPI) Tap(_ context.Context, _ string, req gateway.TapRequest) (float64, error) {
	if err := f.call("tap"); err != nil {
		return 0, err
	}
	f.taps = append(f.taps, req)
	return 1000, nil
}

func (f *fakeAPI) CompleteOnboarding(context.Context, string) error { return f.call("onboarding") }
func (f *fakeAPI) DailyCheckin(context.Context, string) error       { return f.call("checkin") }

func (f *fakeAPI) Config(context.Context, string) (*entity.GameConfig, error) {
	if err := f.call("config"); err != nil {
		return nil, err
	}
	if f.cfg == nil {
		return &entity.GameConfig{}, nil
	}
	return f.cfg, nil
}

func (f *fakeAPI) PurchaseUpgrade(_ context.Context, _ string, id string) ([]entity.UpgradeItem, error) {
	if err := f.call("purchase"); err != nil {
		return nil, err
	}
	f.bought = append(f.bought, id)
	return nil, nil
}

func (f *fakeAPI) CompleteTaskAction(context.Context, string, string) error {
	return f.call("task action")
}

func (f *fakeAPI) ClaimTaskReward(context.Context, string, string) error {
	return f.call("task claim")
}

func (f *fakeAPI) ClaimDailyTask(_ context.Context, _ string, id string) error {
	if err := f.call("daily claim"); err != nil {
		return err
	}
	f.claimed = append(f.claimed, id)
	return nil
}

func (f *fakeAPI) WheelState(context.Context, string) (int, error) {
	return f.spins, f.call("wheel")
}

func (f *fakeAPI) SpinWheel(context.Context, string) (gateway.Prize, error) {
	return gateway.Prize{Type: "coins", ID: "c100"}, f.call("spin")
}

func (f *fakeAPI) ClaimAd(_ context.Context, _ string, kind gateway.AdKind) error {
	return f.call("ad " + string(kind))
}

func (f *fakeAPI) DailyQuestion(context.Context, string) (string, error) {
	return "q?", f.call("question")
}

func (f *fakeAPI) AnswerDailyQuestion(context.Context, string, string) (bool, error) {
	return f.answerOK, f.call("answer")
}

func (f *fakeAPI) Friends(context.Context, string) (gateway.FriendList, error) {
	return f.friends, f.call("friends")
}

func (f *fakeAPI) Poke(context.Context, string, gateway.FlexID) error { return f.call("poke") }
func (f *fakeAPI) AddFriend(context.Context, string, string) error    { return f.call("add friend") }
func (f *fakeAPI) CheckReferral(context.Context, string, string) error {
	return f.call("check referral")
}

func (f *fakeAPI) ProxyIP(context.Context) (string, error) {
	return f.proxyIP, f.call("proxy ip")
}

func (f *fakeAPI) count(name string) int {
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

// only returns the recorded calls whose name is in names, in order.
func (f *fakeAPI) only(names ...string) []string {
	var out []string
	for _, c := range f.calls {
		for _, n := range names {
			if c == n {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func validToken(t *testing.T) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": testNow.Add(time.Hour).Unix(),
	}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func baseState() *entity.PlayerState {
	return &entity.PlayerState{
		Coins:      500,
		Energy:     entity.Energy{Available: 0, Max: 1000},
		Onboarding: &entity.Onboarding{Done: true},
		Tasks: &entity.TaskState{
			DailyCheckin: &entity.DailyCheckin{LastCheckin: testNow.Format(time.RFC3339)},
		},
	}
}

type sleeps struct {
	total time.Duration
	each  []time.Duration
}

func newTestRunner(t *testing.T, cfg config.Config, api *fakeAPI) (*Runner, *sleeps) {
	sl := &sleeps{}
	r := &Runner{
		Cfg:  cfg,
		Dial: func(account.Account, string) (API, error) { return api, nil },
		Log:  zaptest.NewLogger(t).Sugar(),
		Sleep: func(ctx context.Context, d time.Duration) error {
			sl.total += d
			sl.each = append(sl.each, d)
			return ctx.Err()
		},
		Now: func() time.Time { return testNow },
	}
	return r, sl
}

var acct = account.Account{Index: 0, InitData: "user=...", Identity: "42", FirstName: "Ann", Proxy: "http://p:1"}

func TestRunUsesValidCachedToken(t *testing.T) {
	api := &fakeAPI{state: baseState(), proxyIP: "1.2.3.4"}
	r, _ := newTestRunner(t, config.Config{UseProxy: true, RefID: "ref"}, api)

	rep := r.Run(context.Background(), acct, "ua", validToken(t))
	if rep.Outcome != Completed || rep.Action != Keep {
		t.Fatalf("report = %+v", rep)
	}
	if api.count("authenticate") != 0 {
		t.Fatalf("authenticated with a valid cached token: %v", api.calls)
	}
	if rep.ProxyIP != "1.2.3.4" || rep.Final == nil {
		t.Fatalf("proxy=%q final=%v", rep.ProxyIP, rep.Final)
	}
	if api.count("add friend") != 1 || api.count("check referral") != 1 {
		t.Fatalf("referral calls = %v", api.calls)
	}
	if st, _ := rep.Stage(StageCheckin); st.Status != StageSkipped {
		t.Fatalf("checkin = %+v, want skipped", st)
	}
}

func TestRunLogsInWhenCachedTokenUnusable(t *testing.T) {
	for _, cached := range []string{"", "not-a-jwt"} {
		api := &fakeAPI{state: baseState(), login: "fresh"}
		r, _ := newTestRunner(t, config.Config{}, api)
		rep := r.Run(context.Background(), acct, "ua", cached)
		if rep.Outcome != Completed || rep.Action != Put || rep.Token != "fresh" {
			t.Fatalf("cached=%q report = %+v", cached, rep)
		}
		if api.count("proxy ip") != 0 {
			t.Fatalf("proxy checked with USE_PROXY off")
		}
	}
}

func TestRunEvictsOnAuthFailure(t *testing.T) {
	api := &fakeAPI{state: baseState(), errs: map[string]error{"sync": authErr("sync")}}
	r, _ := newTestRunner(t, config.Config{}, api)
	rep := r.Run(context.Background(), acct, "ua", validToken(t))
	if rep.Outcome != Failed || rep.Action != Evict || !gateway.IsAuth(rep.Err) {
		t.Fatalf("report = %+v", rep)
	}
}

func TestRunFatalLoginFailure(t *testing.T) {
	api := &fakeAPI{errs: map[string]error{"authenticate": &gateway.Error{Op: "authenticate", Kind: gateway.KindTransport}}}
	r, _ := newTestRunner(t, config.Config{}, api)
	rep := r.Run(context.Background(), acct, "ua", "")
	if rep.Outcome != Failed || rep.Action != Keep {
		t.Fatalf("report = %+v", rep)
	}
	if api.count("sync") != 0 {
		t.Fatalf("synced after failed login: %v", api.calls)
	}
}

func TestRunSkipsAccountOnProxyFailure(t *testing.T) {
	api := &fakeAPI{errs: map[string]error{"proxy ip": rejected("proxy ip")}}
	r, _ := newTestRunner(t, config.Config{UseProxy: true}, api)
	rep := r.Run(context.Background(), acct, "ua", "")
	if rep.Outcome != Skipped || len(api.calls) != 1 {
		t.Fatalf("report = %+v calls = %v", rep, api.calls)
	}
}

func TestStageFailureDoesNotBlockLaterStages(t *testing.T) {
	st := baseState()
	st.Energy.Available = 300
	st.Tasks.DailyCheckin.LastCheckin = ""
	api := &fakeAPI{state: st, errs: map[string]error{"tap": rejected("tap")}}
	r, _ := newTestRunner(t, config.Config{AutoTap: true}, api)

	rep := r.Run(context.Background(), acct, "ua", validToken(t))
	if rep.Outcome != Completed {
		t.Fatalf("report = %+v", rep)
	}
	if s, _ := rep.Stage(StageTap); s.Status != StageFailed {
		t.Fatalf("tap = %+v", s)
	}
	if s, _ := rep.Stage(StageCheckin); s.Status != StageDone {
		t.Fatalf("checkin = %+v", s)
	}
}

func TestAuthErrorInStageEndsSession(t *testing.T) {
	st := baseState()
	st.Tasks.DailyCheckin.LastCheckin = "2026-03-09T08:00:00Z"
	api := &fakeAPI{state: st, spins: 2, errs: map[string]error{"checkin": authErr("checkin")}}
	r, _ := newTestRunner(t, config.Config{AutoSpin: true}, api)

	rep := r.Run(context.Background(), acct, "ua", validToken(t))
	if rep.Outcome != Failed || rep.Action != Evict {
		t.Fatalf("report = %+v", rep)
	}
	if api.count("wheel") != 0 {
		t.Fatalf("stages ran after auth failure: %v", api.calls)
	}
}

func TestTapSpendsCappedEnergy(t *testing.T) {
	st := baseState()
	st.Energy.Available = 5000
	api := &fakeAPI{state: st}
	r, sl := newTestRunner(t, config.Config{AutoTap: true}, api)
	r.Run(context.Background(), acct, "ua", validToken(t))

	if len(api.taps) != 10 {
		t.Fatalf("taps = %d", len(api.taps))
	}
	sum := 0
	for _, tp := range api.taps {
		if tp.Count < 1 || tp.Count > 200 || tp.Duration < 35 || tp.Duration > 40 {
			t.Fatalf("tap = %+v", tp)
		}
		sum += tp.Count
	}
	if sum != 2000 || api.taps[9].AvailableEnergy != 3000 {
		t.Fatalf("sum=%d last available=%d", sum, api.taps[9].AvailableEnergy)
	}
	if sl.total < 10*time.Second {
		t.Fatalf("slept %v between taps", sl.total)
	}
}

func TestComboAndUpgradeShareBudget(t *testing.T) {
	st := baseState()
	st.Coins = 100
	api := &fakeAPI{
		state: st,
		cfg: &entity.GameConfig{Upgrades: []entity.UpgradeItem{
			{ID: "a", Name: "a", Price: 40, ProfitDelta: 4},
			{ID: "b", Name: "b", Price: 40, ProfitDelta: 40},
			{ID: "c", Name: "c", Price: 10, ProfitDelta: 1},
			{ID: "d", Name: "d", Price: 30, ProfitDelta: 30},
		}},
	}
	cfg := config.Config{AutoDailyCombo: true, AutoUpgrade: true, DailyCombo: config.StringList{"A", "B", "zzz"}}
	r, _ := newTestRunner(t, cfg, api)
	rep := r.Run(context.Background(), acct, "ua", validToken(t))

	if rep.Outcome != Completed {
		t.Fatalf("report = %+v", rep)
	}
	// Combo spends 80; 20 left only covers c.
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(api.bought, want) {
		t.Fatalf("bought = %v, want %v", api.bought, want)
	}
}

func TestComboRejectsWrongTargetCount(t *testing.T) {
	api := &fakeAPI{state: baseState()}
	cfg := config.Config{AutoDailyCombo: true, AutoSpin: true, DailyCombo: config.StringList{"a", "b"}}
	r, _ := newTestRunner(t, cfg, api)
	rep := r.Run(context.Background(), acct, "ua", validToken(t))

	s, _ := rep.Stage(StageCombo)
	if s.Status != StageFailed || !errors.Is(s.Err, upgrade.ErrInvalidComboTargets) {
		t.Fatalf("combo = %+v", s)
	}
	if rep.Outcome != Completed {
		t.Fatalf("outcome = %v", rep.Outcome)
	}
}

func TestDailyTasksPokeAndAllDone(t *testing.T) {
	st := baseState()
	st.Tasks.DailyTasks = &entity.DailyTasks{
		Date:    "2026-03-10T00:00:00Z",
		Claimed: map[string]any{"watch": true, "share": true, "invite": true, "visit": true},
	}
	api := &fakeAPI{
		state: st,
		friends: gateway.FriendList{
			Friends: []gateway.Friend{{ID: "1"}, {ID: "2"}},
			Pokes:   []gateway.FlexID{"1"},
		},
	}
	cfg := config.Config{DailyTasks: config.StringList{"watch", "poke", "allDone", "login"}}
	r, _ := newTestRunner(t, cfg, api)
	rep := r.Run(context.Background(), acct, "ua", validToken(t))

	if rep.Outcome != Completed {
		t.Fatalf("report = %+v", rep)
	}
	if want := []string{"poke", "allDone", "login"}; !reflect.DeepEqual(api.claimed, want) {
		t.Fatalf("claimed = %v, want %v", api.claimed, want)
	}
	if api.count("poke") != 1 {
		t.Fatalf("pokes = %d", api.count("poke"))
	}
}

func TestPendingDailyTasks(t *testing.T) {
	want := []string{"a", "b"}
	rec := &entity.DailyTasks{Date: "2026-03-09T00:00:00Z", Claimed: map[string]any{"a": true}}
	if got := pendingDailyTasks(want, rec, testNow); !reflect.DeepEqual(got, want) {
		t.Fatalf("stale record: %v", got)
	}
	rec.Date = "2026-03-10T00:00:00Z"
	if got := pendingDailyTasks(want, rec, testNow); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("current record: %v", got)
	}
	if got := pendingDailyTasks(want, nil, testNow); !reflect.DeepEqual(got, want) {
		t.Fatalf("nil record: %v", got)
	}
}

func TestNeedsCheckin(t *testing.T) {
	tests := []struct {
		last string
		want bool
	}{
		{"", true},
		{"garbage", true},
		{"2026-03-09T23:59:00Z", true},
		{"2026-03-10T00:01:00Z", false},
	}
	for _, tt := range tests {
		if got := needsCheckin(tt.last, testNow); got != tt.want {
			t.Errorf("needsCheckin(%q) = %v, want %v", tt.last, got, tt.want)
		}
	}
}

func TestRunStopsWhenCancelled(t *testing.T) {
	api := &fakeAPI{state: baseState()}
	r, _ := newTestRunner(t, config.Config{}, api)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep := r.Run(ctx, acct, "ua", validToken(t))
	if rep.Outcome != Failed || !errors.Is(rep.Err, context.Canceled) {
		t.Fatalf("report = %+v", rep)
	}
}
