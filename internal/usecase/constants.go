package usecase

import "time"

const (
	// IdempotencyKeyTTL is the retention window for idempotency keys. A retry
	// inside the window replays the cached result; after it the key may be
	// reused.
	IdempotencyKeyTTL = 24 * time.Hour

	// BalanceCacheTTL bounds staleness of the derived-balance cache. The cache
	// is invalidated on every posting; the TTL is a backstop only.
	BalanceCacheTTL = 5 * time.Minute

	// SystemActorID is the actor recorded on audit entries produced by
	// internal operations rather than an external caller.
	SystemActorID = "system"
)
