package entity

import (
	"sort"
	"time"
)

// PlayerState is one sync snapshot of the remote account. It is superseded by
// the next sync and never mutated locally.
type PlayerState struct {
	Coins      float64     `json:"coins"`
	Profit     float64     `json:"profit"`
	Energy     Energy      `json:"energy"`
	Onboarding *Onboarding `json:"onboarding,omitempty"`
	Tasks      *TaskState  `json:"tasks,omitempty"`
	Challenges *Challenges `json:"challenges,omitempty"`
	Activities *Activities `json:"activities,omitempty"`
}

type Energy struct {
	Available int `json:"available"`
	Max       int `json:"max"`
}

type Onboarding struct {
	Done bool `json:"done"`
}

// OnboardingDone reports false when the onboarding record is missing.
func (p *PlayerState) OnboardingDone() bool {
	return p.Onboarding != nil && p.Onboarding.Done
}

// TaskState holds the per-player task completion records.
type TaskState struct {
	DailyCheckin *DailyCheckin `json:"dailyCheckin,omitempty"`
	DailyTasks   *DailyTasks   `json:"dailyTasks,omitempty"`
}

type DailyCheckin struct {
	LastCheckin string `json:"lastCheckin"`
}

// DailyTasks lists the daily task ids already claimed on Date.
type DailyTasks struct {
	Date    string         `json:"date"`
	Claimed map[string]any `json:"claimed"`
}

// ClaimedIDs returns the claimed daily task ids in a stable order.
func (d *DailyTasks) ClaimedIDs() []string {
	if d == nil {
		return nil
	}
	ids := make([]string, 0, len(d.Claimed))
	for id := range d.Claimed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type Challenges struct {
	DailyCombo    *DailyCombo    `json:"dailyCombo,omitempty"`
	DailyQuestion *DailyQuestion `json:"dailyQuestion,omitempty"`
}

// DailyCombo is the server's combo progress for the period starting at CurrentDate.
type DailyCombo struct {
	CurrentDate string   `json:"currentDate"`
	FoundCombo  []string `json:"foundCombo"`
}

type DailyQuestion struct {
	LastDone string `json:"lastDone"`
}

// Activities are the ad-watch counters for today.
type Activities struct {
	WatchAdForSpin                int `json:"watchAdForSpin"`
	WatchAdForDoublePrize         int `json:"watchAdForDoublePrize"`
	WatchAdInterstitial           int `json:"watchAdInterstitial"`
	WatchAdForDoubleOfflineProfit int `json:"watchAdForDoubleOfflineProfit"`
}

// LastCheckin returns the last check-in timestamp or "" when absent.
func (p *PlayerState) LastCheckin() string {
	if p.Tasks == nil || p.Tasks.DailyCheckin == nil {
		return ""
	}
	return p.Tasks.DailyCheckin.LastCheckin
}

// DailyTasks returns the daily task record, nil when absent.
func (p *PlayerState) DailyTasks() *DailyTasks {
	if p.Tasks == nil {
		return nil
	}
	return p.Tasks.DailyTasks
}

// DailyCombo returns the combo record, nil when absent.
func (p *PlayerState) DailyCombo() *DailyCombo {
	if p.Challenges == nil {
		return nil
	}
	return p.Challenges.DailyCombo
}

// DailyQuestionLastDone returns "" when the question was never answered.
func (p *PlayerState) DailyQuestionLastDone() string {
	if p.Challenges == nil || p.Challenges.DailyQuestion == nil {
		return ""
	}
	return p.Challenges.DailyQuestion.LastDone
}

// ParseDate accepts the date and timestamp layouts the API uses.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// StartOfDay returns local midnight of t.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
