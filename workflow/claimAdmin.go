package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/models"
	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/utils"
)

// Admin transitions are pure conditional updates with no compensating side
// effects; they never call the verification oracle. A lost CAS race surfaces as
// utils.ErrTransitionConflict (HTTP 409), never a silent no-op.

// ApproveClaim moves VERIFIED_PENDING_REVIEW -> APPROVED_PENDING_MULTISIG and
// records the approver identity and timestamp.
func ApproveClaim(ctx context.Context, db *gorm.DB, logger *logrus.Logger, claimId int, approvedBy string) (*models.Claim, error) {
	tx := db.WithContext(ctx)
	claim, err := models.GetClaimById(tx, claimId)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = models.TransitionClaim(tx, claimId, models.ClaimStatusVerifiedPendingReview, models.ClaimStatusApprovedPendingMultisig, map[string]interface{}{
		"approved_by": approvedBy,
		"approved_at": now,
	})
	if err != nil {
		return nil, err
	}
	logTransition(ctx, logger, claim, models.ClaimStatusApprovedPendingMultisig, "")
	return models.GetClaimById(tx, claimId)
}

// RejectClaim moves {VERIFIED_PENDING_REVIEW, APPROVED_PENDING_MULTISIG} ->
// REJECTED. The double source is the admin safety net: a claim approved by
// mistake can still be pulled back before payout.
func RejectClaim(ctx context.Context, db *gorm.DB, logger *logrus.Logger, claimId int, reason string) (*models.Claim, error) {
	if reason == "" {
		return nil, errors.New("reject reason is required")
	}

	tx := db.WithContext(ctx)
	claim, err := models.GetClaimById(tx, claimId)
	if err != nil {
		return nil, err
	}

	from := claim.Status
	if from != models.ClaimStatusVerifiedPendingReview && from != models.ClaimStatusApprovedPendingMultisig {
		return nil, utils.ErrTransitionConflict
	}
	err = models.TransitionClaim(tx, claimId, from, models.ClaimStatusRejected, map[string]interface{}{
		"rejected_reason": reason,
	})
	if err != nil {
		return nil, err
	}
	logTransition(ctx, logger, claim, models.ClaimStatusRejected, reason)
	return models.GetClaimById(tx, claimId)
}

// MarkClaimPaid moves APPROVED_PENDING_MULTISIG -> PAID once the multisig
// transaction has executed.
func MarkClaimPaid(ctx context.Context, db *gorm.DB, logger *logrus.Logger, claimId int, multisigTxHash string, paidAt time.Time) (*models.Claim, error) {
	if multisigTxHash == "" {
		return nil, errors.New("multisig tx hash is required")
	}
	if paidAt.IsZero() {
		return nil, errors.New("paid at is required")
	}

	tx := db.WithContext(ctx)
	claim, err := models.GetClaimById(tx, claimId)
	if err != nil {
		return nil, err
	}

	err = models.TransitionClaim(tx, claimId, models.ClaimStatusApprovedPendingMultisig, models.ClaimStatusPaid, map[string]interface{}{
		"multisig_tx_hash": multisigTxHash,
		"paid_at":          paidAt.UTC(),
	})
	if err != nil {
		return nil, err
	}
	logTransition(ctx, logger, claim, models.ClaimStatusPaid, "")
	return models.GetClaimById(tx, claimId)
}

// ListClaims returns one review-queue page. Limit and offset are clamped here
// so every caller gets the same bounds.
func ListClaims(ctx context.Context, db *gorm.DB, status models.ClaimStatus, limit, offset int) ([]models.Claim, error) {
	return models.ListClaimsByStatus(
		db.WithContext(ctx),
		status,
		models.ClampListLimit(limit),
		models.ClampListOffset(offset),
	)
}

func GetClaim(ctx context.Context, db *gorm.DB, claimId int) (*models.Claim, error) {
	return models.GetClaimById(db.WithContext(ctx), claimId)
}
