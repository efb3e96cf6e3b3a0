package services

import "time"

const (
	KeyWallet           = "wallet:%d"
	KeyTransaction      = "wallet:tx:%s"
	KeyUserTransactions = "wallet:%d:tx"
	KeyDailyEarned      = "wallet:%d:earned:%s" // %s = UTC day key

	KeyDailyPlays   = "games:%d:plays:%s"  // %s = UTC day key
	KeyGameCooldown = "games:%d:cd:%s"     // %s = game id
	KeyGamePlaying  = "games:%d:active:%s" // %s = game id

	KeyRedeemResult = "redeem:%d:%s" // %s = client request id

	KeyHold         = "hold:%s"
	KeyUserHolds    = "holds:%d"
	KeyPendingHolds = "holds:pending"

	// Daily meters survive past midnight so reconciliation can still read
	// yesterday's bucket.
	TTLDailyMeter = 48 * time.Hour
	// Guards a play that never completed; expires on its own.
	TTLPlayingLock = 30 * time.Second
)
