package redisstore

import "time"

const (
	KeySeed          = "seed:%s"
	KeySeedExpiry    = "seeds:expiry"
	KeyRound         = "round:%s"
	KeyRoundByKey    = "round:seed:%s:nonce:%d:client:%s"
	KeyAuditSeq      = "audit:seq"
	KeyAuditEntry    = "audit:entry:%d"
	KeyAuditTimeline = "audit:timeline"
	KeyRateLimit     = "ratelimit:%s:%s"

	DefaultRateLimitWindow = time.Minute
)
