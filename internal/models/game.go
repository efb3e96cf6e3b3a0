package models

import "time"

// GameFrequency controls how often a game may be replayed once completed.
type GameFrequency string

const (
	// FrequencyCooldown allows replay after a fixed cooldown interval.
	FrequencyCooldown GameFrequency = "cooldown"
	// FrequencyDaily allows one play per UTC calendar day.
	FrequencyDaily GameFrequency = "daily"
	// FrequencyWeekly allows one play per rolling 7-day window.
	FrequencyWeekly GameFrequency = "weekly"
)

// GameRule is the configured earning policy for a single game.
type GameRule struct {
	GameID    string
	Frequency GameFrequency
	Cooldown  time.Duration // only meaningful for FrequencyCooldown
	MinReward int64         // cents, before the tier multiplier
	MaxReward int64         // cents, before the tier multiplier
	MinTier   Tier          // TierNone = open to everyone
}

// GameStatus reports a user's current standing against the play limits,
// returned to the client so it can disable buttons and show timers.
type GameStatus struct {
	PlaysToday     int64            `json:"plays_today"`
	MaxPlaysPerDay int64            `json:"max_plays_per_day"`
	Games          []GameGateStatus `json:"games"`
}

type GameGateStatus struct {
	GameID       string `json:"game_id"`
	Available    bool   `json:"available"`
	WaitSeconds  int64  `json:"wait_seconds,omitempty"`
	RequiresTier Tier   `json:"requires_tier,omitempty"`
}
