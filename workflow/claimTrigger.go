package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/config"
	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/jpverify"
	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/models"
	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/utils"
)

// Oracle is the verification dependency of the trigger pipeline. jpverify.Client
// satisfies it; tests inject fakes.
type Oracle interface {
	Verify(ctx context.Context, orderId, instrumentId string) (*jpverify.Result, error)
}

// ErrOrderNotClaimable: the purchase order exists but is unpaid or has no
// coverage window. No claim row is created for it.
var ErrOrderNotClaimable = errors.New("purchase order is not claimable")

// ErrInvalidTriggerRequest: malformed trigger input; nothing is persisted.
var ErrInvalidTriggerRequest = errors.New("purchaseOrderId and claimant are required")

type TriggerRequest struct {
	PurchaseOrderId string  `json:"purchaseOrderId" binding:"required"`
	Claimant        string  `json:"claimant" binding:"required"`
	SubmitTxHash    *string `json:"submitTxHash"`
	TriggeredAtSec  *int64  `json:"triggeredAtSec"`
}

// TriggerResult is always a business outcome: rejections and verification
// failures are data, not transport errors.
type TriggerResult struct {
	Ok             bool               `json:"ok"`
	ClaimId        *int               `json:"claimId,omitempty"`
	Status         models.ClaimStatus `json:"status"`
	RejectedReason *string            `json:"rejectedReason,omitempty"`
}

// ProcessOnchainTrigger drives one liquidation trigger through verification:
// resolve the order, upsert the claim for its venue event, call the oracle
// inside the transaction, and apply exactly one state-machine transition.
//
// Recovery invariant: if anything past the upsert fails, the transaction rolls
// back (no partial evidence is committed) and a FAILED transition is written in
// a fresh, independent transaction so the claim never stays VERIFYING.
func ProcessOnchainTrigger(ctx context.Context, db *gorm.DB, logger *logrus.Logger, oracle Oracle, req TriggerRequest) (*TriggerResult, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, ErrInvalidTriggerRequest
	}

	// Once a trigger is accepted the claim must reach a terminal status even if
	// the caller hangs up: neither verification nor the recovery write ever runs
	// on a cancelable context. Context values (correlation id) are kept.
	ctx = context.WithoutCancel(ctx)

	order, err := models.GetPurchaseOrderById(db.WithContext(ctx), req.PurchaseOrderId)
	if err != nil {
		return nil, err
	}
	if !order.IsClaimable() {
		return nil, ErrOrderNotClaimable
	}

	// Missing venue metadata: no verification is possible. Record the
	// placeholder claim under the sentinel event id and fail it terminally.
	if !order.HasExchangeMeta() {
		return failClaimTerminally(ctx, db, logger, req, models.EventIdMissing, models.ClaimReasonMissingOkxMeta)
	}

	eventId := models.EventIdForOrder(*order.OkxOrderId)

	result, verifyErr := runVerificationTx(ctx, db, logger, oracle, order, req, eventId)
	if verifyErr == nil {
		return result, nil
	}

	// A lost transition race means a concurrent delivery resolved the claim
	// first. Echo whatever it decided; do not overwrite it with FAILED.
	if errors.Is(verifyErr, utils.ErrTransitionConflict) {
		claim, err := models.GetClaimByEvent(db.WithContext(ctx), req.PurchaseOrderId, eventId)
		if err != nil {
			return nil, err
		}
		return echoClaim(claim), nil
	}

	reason := models.ClaimReasonVerifyError
	if errors.Is(verifyErr, jpverify.ErrVerifyTimeout) {
		reason = models.ClaimReasonVerifyTimeout
	}
	config.LogError(logger, "claimTrigger.go", "ProcessOnchainTrigger", "verification failed", map[string]interface{}{
		"purchase_order_id": req.PurchaseOrderId,
		"event_id":          eventId,
		"reason":            reason,
	}, verifyErr)

	return failClaimTerminally(ctx, db, logger, req, eventId, reason)
}

// runVerificationTx is steps 5-8 of the pipeline inside one transaction. The
// oracle call is the only network call permitted inside the transaction
// boundary; that keeps the upsert, the evidence write, and the transition
// atomic at the cost of holding one connection per in-flight trigger.
func runVerificationTx(ctx context.Context, db *gorm.DB, logger *logrus.Logger, oracle Oracle, order *models.PurchaseOrder, req TriggerRequest, eventId string) (result *TriggerResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("verification panicked: %v", r)
		}
	}()

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim, created, err := models.UpsertClaimForEvent(tx, req.PurchaseOrderId, eventId, req.Claimant, req.SubmitTxHash)
		if err != nil {
			return err
		}

		// Re-delivery for an already-resolved claim: touch updated_at only and
		// echo the recorded outcome. Verification is never re-run.
		if !created && claim.Status != models.ClaimStatusVerifying {
			result = echoClaim(claim)
			return nil
		}

		evidence, err := oracle.Verify(ctx, *order.OkxOrderId, *order.OkxInstrumentId)
		if err != nil {
			return err
		}

		if evidence.LiquidationTimeMs == nil {
			reason := models.ClaimReasonMissingLiquidationTime
			err := models.TransitionClaim(tx, claim.ID, models.ClaimStatusVerifying, models.ClaimStatusFailed, map[string]interface{}{
				"rejected_reason": reason,
				"evidence_root":   evidence.EvidenceRoot,
				"evidence_blob":   evidence.EvidenceBlob,
			})
			if err != nil {
				return err
			}
			logTransition(ctx, logger, claim, models.ClaimStatusFailed, reason)
			result = &TriggerResult{Ok: true, ClaimId: &claim.ID, Status: models.ClaimStatusFailed, RejectedReason: &reason}
			return nil
		}

		liqTime := *evidence.LiquidationTimeMs
		if !order.CoversLiquidationTime(liqTime) {
			// Rejected claims keep the evidence for audit.
			reason := models.ClaimReasonOutOfCoverageWindow
			err := models.TransitionClaim(tx, claim.ID, models.ClaimStatusVerifying, models.ClaimStatusRejected, map[string]interface{}{
				"rejected_reason":          reason,
				"evidence_root":            evidence.EvidenceRoot,
				"evidence_blob":            evidence.EvidenceBlob,
				"liquidation_time_ms":      liqTime,
				"coverage_window_start_ms": order.CoverageStartMs,
				"coverage_window_end_ms":   order.CoverageEndMs,
			})
			if err != nil {
				return err
			}
			logTransition(ctx, logger, claim, models.ClaimStatusRejected, reason)
			result = &TriggerResult{Ok: true, ClaimId: &claim.ID, Status: models.ClaimStatusRejected, RejectedReason: &reason}
			return nil
		}

		payout := models.ComputeClaimPayout(order.PayoutFixedAmount, order.PayoutCapAmount)
		err = models.TransitionClaim(tx, claim.ID, models.ClaimStatusVerifying, models.ClaimStatusVerifiedPendingReview, map[string]interface{}{
			"rejected_reason":          nil,
			"evidence_root":            evidence.EvidenceRoot,
			"evidence_blob":            evidence.EvidenceBlob,
			"liquidation_time_ms":      liqTime,
			"coverage_window_start_ms": order.CoverageStartMs,
			"coverage_window_end_ms":   order.CoverageEndMs,
			"payout_amount":            payout,
			"payout_cap":               order.PayoutCapAmount,
		})
		if err != nil {
			return err
		}
		logTransition(ctx, logger, claim, models.ClaimStatusVerifiedPendingReview, "")
		result = &TriggerResult{Ok: true, ClaimId: &claim.ID, Status: models.ClaimStatusVerifiedPendingReview}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// failClaimTerminally is the out-of-band FAILED write: a fresh transaction that
// (a) ensures the claim row exists for the natural key and (b) moves it to
// FAILED. If the claim already resolved to another terminal status the
// conditional update no-ops and the recorded outcome is echoed instead.
func failClaimTerminally(ctx context.Context, db *gorm.DB, logger *logrus.Logger, req TriggerRequest, eventId, reason string) (*TriggerResult, error) {
	// The FAILED write must land regardless of what happened to the caller.
	ctx = context.WithoutCancel(ctx)

	var result *TriggerResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim, _, err := models.UpsertClaimForEvent(tx, req.PurchaseOrderId, eventId, req.Claimant, req.SubmitTxHash)
		if err != nil {
			return err
		}
		if claim.Status != models.ClaimStatusVerifying {
			result = echoClaim(claim)
			return nil
		}
		err = models.TransitionClaim(tx, claim.ID, models.ClaimStatusVerifying, models.ClaimStatusFailed, map[string]interface{}{
			"rejected_reason": reason,
		})
		if errors.Is(err, utils.ErrTransitionConflict) {
			// Someone else resolved it between the read and the CAS.
			resolved, rerr := models.GetClaimByEvent(tx, req.PurchaseOrderId, eventId)
			if rerr != nil {
				return rerr
			}
			result = echoClaim(resolved)
			return nil
		}
		if err != nil {
			return err
		}
		logTransition(ctx, logger, claim, models.ClaimStatusFailed, reason)
		result = &TriggerResult{Ok: true, ClaimId: &claim.ID, Status: models.ClaimStatusFailed, RejectedReason: &reason}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func echoClaim(claim *models.Claim) *TriggerResult {
	return &TriggerResult{
		Ok:             true,
		ClaimId:        &claim.ID,
		Status:         claim.Status,
		RejectedReason: claim.RejectedReason,
	}
}

func logTransition(ctx context.Context, logger *logrus.Logger, claim *models.Claim, to models.ClaimStatus, reason string) {
	if logger == nil {
		return
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	logger.WithFields(logrus.Fields{
		"field":             "ClaimTransition",
		"claim_id":          claim.ID,
		"purchase_order_id": claim.PurchaseOrderId,
		"event_id":          claim.EventId,
		"from":              claim.Status,
		"to":                to,
		"reason":            reason,
		"correlation_id":    correlationId,
	}).Info("claim status transition")
}
