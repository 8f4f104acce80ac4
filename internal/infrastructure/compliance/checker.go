package compliance

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/corebank/ledger/internal/usecase"
)

// ThresholdChecker screens transactions by amount. Amounts at or above the
// block threshold are rejected, at or above the review threshold they are
// allowed but flagged. A zero threshold disables that rule.
type ThresholdChecker struct {
	reviewThreshold decimal.Decimal
	blockThreshold  decimal.Decimal
	logger          zerolog.Logger
}

// NewThresholdChecker creates a new ThresholdChecker.
func NewThresholdChecker(reviewThreshold, blockThreshold decimal.Decimal, logger zerolog.Logger) *ThresholdChecker {
	return &ThresholdChecker{
		reviewThreshold: reviewThreshold,
		blockThreshold:  blockThreshold,
		logger:          logger,
	}
}

// Check screens a transaction request and returns a verdict. It never fails:
// threshold screening has no external dependency.
func (c *ThresholdChecker) Check(_ context.Context, req *usecase.TransactionRequest) (usecase.ComplianceVerdict, error) {
	amount := req.Amount.Amount

	if c.blockThreshold.IsPositive() && amount.GreaterThanOrEqual(c.blockThreshold) {
		c.logger.Warn().
			Str("idempotency_key", req.IdempotencyKey).
			Str("type", string(req.Type)).
			Str("amount", amount.String()).
			Str("threshold", c.blockThreshold.String()).
			Msg("transaction blocked by amount threshold")

		return usecase.ComplianceBlock, nil
	}

	if c.reviewThreshold.IsPositive() && amount.GreaterThanOrEqual(c.reviewThreshold) {
		c.logger.Info().
			Str("idempotency_key", req.IdempotencyKey).
			Str("type", string(req.Type)).
			Str("amount", amount.String()).
			Msg("transaction flagged for review")

		return usecase.ComplianceReview, nil
	}

	return usecase.ComplianceAllow, nil
}
