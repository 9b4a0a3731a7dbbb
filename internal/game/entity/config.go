package entity

import "time"

// GameConfig is the catalogue returned by the config endpoint. It must be
// re-fetched before each purchase round.
type GameConfig struct {
	Tasks    []Task        `json:"tasks"`
	Upgrades []UpgradeItem `json:"upgrades"`
	Game     *GameSettings `json:"game,omitempty"`
}

type GameSettings struct {
	Ads *AdPolicy `json:"ads,omitempty"`
}

// AdPolicy caps how many rewarded ads can be claimed per day.
type AdPolicy struct {
	DoubleOfflineProfit AdLimit `json:"doubleOfflineProfit"`
	Others              AdLimit `json:"others"`
}

type AdLimit struct {
	MaxPerDay int `json:"maxPerDay"`
}

// AdPolicy returns the ad policy or nil when the config has none.
func (c *GameConfig) AdPolicy() *AdPolicy {
	if c.Game == nil {
		return nil
	}
	return c.Game.Ads
}

// Task is a one-off task completed in two phases: action then claim.
type Task struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	IsDone     bool    `json:"isDone"`
	ClaimDelay int     `json:"claimDelay"`
	Reward     float64 `json:"reward"`
}

// UpgradeItem is a purchasable card.
type UpgradeItem struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Price         float64       `json:"price"`
	ProfitDelta   float64       `json:"profitDelta"`
	Level         int           `json:"level"`
	Cooldown      int64         `json:"cooldown"`
	CooldownUntil int64         `json:"cooldownUntil"`
	ExpiresOn     *int64        `json:"expiresOn,omitempty"`
	Requirements  *Requirements `json:"requirements,omitempty"`
}

type Requirements struct {
	Upgrade *UpgradeRequirement `json:"upgrade,omitempty"`
}

// UpgradeRequirement names the item that must reach Level first.
type UpgradeRequirement struct {
	ID    string `json:"id"`
	Level int    `json:"level"`
}

// Requirement returns the unlock edge of the item, if any.
func (u UpgradeItem) Requirement() (UpgradeRequirement, bool) {
	if u.Requirements == nil || u.Requirements.Upgrade == nil || u.Requirements.Upgrade.ID == "" {
		return UpgradeRequirement{}, false
	}
	return *u.Requirements.Upgrade, true
}

// OnCooldown reports whether CooldownUntil is still in the future.
func (u UpgradeItem) OnCooldown(now time.Time) bool {
	return u.CooldownUntil > 0 && u.CooldownUntil > now.Unix()
}

// Expired reports whether the item has an expiry that is not in the future.
// A zero expiry counts as absent.
func (u UpgradeItem) Expired(now time.Time) bool {
	return u.ExpiresOn != nil && *u.ExpiresOn > 0 && *u.ExpiresOn <= now.Unix()
}
