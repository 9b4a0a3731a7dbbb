package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/zainarain279/Dropee/internal/game/entity"
)

// Login is the result of exchanging an init payload for a credential.
type Login struct {
	Token        string `json:"token"`
	ReferralCode string `json:"referralCode"`
	FirstName    string `json:"firstName"`
}

// Authenticate exchanges the platform init payload for a bearer credential.
func (c *Client) Authenticate(ctx context.Context, initData, referralCode string) (*Login, error) {
	const op = "authenticate"
	if initData == "" {
		return nil, invalidCall(op, "empty init data")
	}
	payload := map[string]any{
		"initData":           initData,
		"referrerCode":       referralCode,
		"utmSource":          nil,
		"impersonationToken": nil,
	}
	var out Login
	if err := c.do(ctx, op, http.MethodPost, "/telegram/me", "", payload, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, &Error{Op: op, Kind: KindAuth, Message: "no token in response"}
	}
	return &out, nil
}

// Sync fetches the current player snapshot. Safe to repeat.
func (c *Client) Sync(ctx context.Context, token string) (*entity.PlayerState, error) {
	const op = "sync"
	if err := requireToken(op, token); err != nil {
		return nil, err
	}
	var out struct {
		PlayerStats *entity.PlayerState `json:"playerStats"`
	}
	if err := c.do(ctx, op, http.MethodPost, "/sync", token, struct{}{}, &out); err != nil {
		return nil, err
	}
	if out.PlayerStats == nil {
		return nil, &Error{Op: op, Kind: KindRejected, Message: "response has no playerStats"}
	}
	return out.PlayerStats, nil
}

// TapRequest is one sub-request of an energy spend.
type TapRequest struct {
	Count           int   `json:"count"`
	StartTimestamp  int64 `json:"startTimestamp"`
	Duration        int   `json:"duration"`
	AvailableEnergy int   `json:"availableEnergy"`
}

// Tap spends req.Count energy and returns the resulting coin balance.
func (c *Client) Tap(ctx context.Context, token string, req TapRequest) (float64, error) {
	const op = "tap"
	if err := requireToken(op, token); err != nil {
		return 0, err
	}
	if req.Count <= 0 {
		return 0, invalidCall(op, "non-positive count %d", req.Count)
	}
	var out struct {
		Coins float64 `json:"coins"`
	}
	if err := c.do(ctx, op, http.MethodPost, "/actions/tap", token, req, &out); err != nil {
		return 0, err
	}
	return out.Coins, nil
}

func (c *Client) CompleteOnboarding(ctx context.Context, token string) error {
	const op = "complete onboarding"
	if err := requireToken(op, token); err != nil {
		return err
	}
	return c.do(ctx, op, http.MethodPost, "/actions/onboarding/done", token, struct{}{}, nil)
}

// DailyCheckin claims today's check-in. Callers check PlayerState first.
func (c *Client) DailyCheckin(ctx context.Context, token string) error {
	const op = "daily checkin"
	if err := requireToken(op, token); err != nil {
		return err
	}
	_, offset := time.Now().Zone()
	payload := map[string]int{"timezoneOffset": -offset / 60}
	return c.do(ctx, op, http.MethodPost, "/actions/tasks/daily-checkin", token, payload, nil)
}

// Config fetches the task and upgrade catalogue.
func (c *Client) Config(ctx context.Context, token string) (*entity.GameConfig, error) {
	const op = "config"
	if err := requireToken(op, token); err != nil {
		return nil, err
	}
	var out struct {
		Config *entity.GameConfig `json:"config"`
	}
	if err := c.do(ctx, op, http.MethodGet, "/config", token, nil, &out); err != nil {
		return nil, err
	}
	if out.Config == nil {
		return nil, &Error{Op: op, Kind: KindRejected, Message: "response has no config"}
	}
	return out.Config, nil
}

// PurchaseUpgrade buys one level of id. The returned slice is the server's
// updated upgrade list when the response carries one, nil otherwise.
func (c *Client) PurchaseUpgrade(ctx context.Context, token, id string) ([]entity.UpgradeItem, error) {
	const op = "purchase upgrade"
	if err := requireToken(op, token); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, invalidCall(op, "empty upgrade id")
	}
	var out struct {
		Config *struct {
			Upgrades []entity.UpgradeItem `json:"upgrades"`
		} `json:"config"`
	}
	if err := c.do(ctx, op, http.MethodPost, "/actions/upgrade", token, map[string]string{"upgradeId": id}, &out); err != nil {
		return nil, err
	}
	if out.Config == nil {
		return nil, nil
	}
	return out.Config.Upgrades, nil
}

func (c *Client) CompleteTaskAction(ctx context.Context, token, taskID string) error {
	const op = "complete task action"
	if err := requireToken(op, token); err != nil {
		return err
	}
	return c.do(ctx, op, http.MethodPost, "/actions/tasks/action-completed", token, map[string]string{"taskId": taskID}, nil)
}

func (c *Client) ClaimTaskReward(ctx context.Context, token, taskID string) error {
	const op = "claim task reward"
	if err := requireToken(op, token); err != nil {
		return err
	}
	return c.do(ctx, op, http.MethodPost, "/actions/tasks/done", token, map[string]string{"taskId": taskID}, nil)
}

// ClaimDailyTask claims a daily task; daily ids live in their own namespace.
func (c *Client) ClaimDailyTask(ctx context.Context, token, taskID string) error {
	const op = "claim daily task"
	if err := requireToken(op, token); err != nil {
		return err
	}
	var out struct {
		Success *bool `json:"success"`
	}
	if err := c.do(ctx, op, http.MethodPost, "/actions/tasks/daily/done", token, map[string]string{"taskId": taskID}, &out); err != nil {
		return err
	}
	if out.Success != nil && !*out.Success {
		return &Error{Op: op, Kind: KindRejected, Message: "daily task " + taskID + " not accepted"}
	}
	return nil
}

// WheelState returns the number of fortune wheel spins available.
func (c *Client) WheelState(ctx context.Context, token string) (int, error) {
	const op = "wheel state"
	if err := requireToken(op, token); err != nil {
		return 0, err
	}
	var out struct {
		State *struct {
			Spins struct {
				Available int `json:"available"`
			} `json:"spins"`
		} `json:"state"`
	}
	if err := c.do(ctx, op, http.MethodGet, "/fortune-wheel", token, nil, &out); err != nil {
		return 0, err
	}
	if out.State == nil {
		return 0, nil
	}
	return out.State.Spins.Available, nil
}

// Prize is what one wheel spin paid out.
type Prize struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
	ID     string  `json:"id"`
}

func (p Prize) String() string {
	if p.Type == "usdt" {
		return strconv.FormatFloat(p.Amount, 'f', -1, 64) + " USDT"
	}
	return p.ID
}

func (c *Client) SpinWheel(ctx context.Context, token string) (Prize, error) {
	const op = "spin wheel"
	if err := requireToken(op, token); err != nil {
		return Prize{}, err
	}
	var out struct {
		Prize Prize `json:"prize"`
	}
	if err := c.do(ctx, op, http.MethodPost, "/actions/fortune-wheel/spin", token, map[string]int{"version": 2}, &out); err != nil {
		return Prize{}, err
	}
	return out.Prize, nil
}

// AdKind selects which rewarded-ad claim to make.
type AdKind string

const (
	AdExtraSpin           AdKind = "extra-spin-by-ad"
	AdDoubleOfflineProfit AdKind = "multiply-offline-profit-for-ad"
)

func (c *Client) ClaimAd(ctx context.Context, token string, kind AdKind) error {
	const op = "claim ad"
	if err := requireToken(op, token); err != nil {
		return err
	}
	switch kind {
	case AdExtraSpin, AdDoubleOfflineProfit:
	default:
		return invalidCall(op, "unknown ad kind %q", kind)
	}
	return c.do(ctx, op, http.MethodPost, "/actions/"+string(kind), token, struct{}{}, nil)
}

// DailyQuestion returns today's question text.
func (c *Client) DailyQuestion(ctx context.Context, token string) (string, error) {
	const op = "daily question"
	if err := requireToken(op, token); err != nil {
		return "", err
	}
	var out struct {
		Question string `json:"question"`
	}
	if err := c.do(ctx, op, http.MethodGet, "/daily-question", token, nil, &out); err != nil {
		return "", err
	}
	return out.Question, nil
}

// AnswerDailyQuestion reports whether the answer was accepted as correct.
func (c *Client) AnswerDailyQuestion(ctx context.Context, token, answer string) (bool, error) {
	const op = "answer daily question"
	if err := requireToken(op, token); err != nil {
		return false, err
	}
	var out struct {
		Success bool `json:"success"`
	}
	if err := c.do(ctx, op, http.MethodPost, "/actions/tasks/daily-question/answer", token, map[string]string{"answer": answer}, &out); err != nil {
		return false, err
	}
	return out.Success, nil
}

// FriendList is the friends page plus the ids already poked today.
type FriendList struct {
	Friends []Friend `json:"friends"`
	Pokes   []FlexID `json:"pokes"`
}

type Friend struct {
	ID FlexID `json:"id"`
}

// NextToPoke returns the first friend not already poked.
func (f FriendList) NextToPoke() (Friend, bool) {
	poked := make(map[FlexID]struct{}, len(f.Pokes))
	for _, id := range f.Pokes {
		poked[id] = struct{}{}
	}
	for _, fr := range f.Friends {
		if _, ok := poked[fr.ID]; !ok {
			return fr, true
		}
	}
	return Friend{}, false
}

// FlexID decodes ids the API sends either as numbers or strings.
type FlexID string

func (id *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = FlexID(n.String())
	return nil
}

func (c *Client) Friends(ctx context.Context, token string) (FriendList, error) {
	const op = "list friends"
	if err := requireToken(op, token); err != nil {
		return FriendList{}, err
	}
	var out FriendList
	if err := c.do(ctx, op, http.MethodGet, "/friends-v2", token, nil, &out); err != nil {
		return FriendList{}, err
	}
	return out, nil
}

func (c *Client) Poke(ctx context.Context, token string, friendID FlexID) error {
	const op = "poke"
	if err := requireToken(op, token); err != nil {
		return err
	}
	if friendID == "" {
		return invalidCall(op, "empty friend id")
	}
	return c.do(ctx, op, http.MethodPost, "/actions/friends/"+url.PathEscape(string(friendID))+"/poke-v2", token, struct{}{}, nil)
}

// AddFriend registers the referral relationship. Best-effort.
func (c *Client) AddFriend(ctx context.Context, token, referralCode string) error {
	const op = "add friend"
	if err := requireToken(op, token); err != nil {
		return err
	}
	return c.do(ctx, op, http.MethodPost, "/friends", token, map[string]string{"referrerCode": referralCode}, nil)
}

func (c *Client) CheckReferral(ctx context.Context, token, referralCode string) error {
	const op = "check referral"
	if err := requireToken(op, token); err != nil {
		return err
	}
	return c.do(ctx, op, http.MethodPost, "/player-by-referral-code", token, map[string]string{"referralCode": referralCode}, nil)
}

// ProxyIP returns the egress IP seen through this client's proxy.
func (c *Client) ProxyIP(ctx context.Context) (string, error) {
	const op = "proxy ip"
	var out struct {
		IP string `json:"ip"`
	}
	if err := c.do(ctx, op, http.MethodGet, c.ipCheckURL, "", nil, &out); err != nil {
		return "", err
	}
	if out.IP == "" {
		return "", &Error{Op: op, Kind: KindTransport, Message: "empty ip in response"}
	}
	return out.IP, nil
}
