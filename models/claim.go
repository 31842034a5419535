package models

import (
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/utils"
)

// Claim tracks verification and settlement of one liquidation event against one
// purchase order. Rows are created by the trigger orchestrator and never deleted;
// every status change goes through a named transition function below, never a raw
// field update.
//
// Natural key: (purchase_order_id, event_id). Re-delivery of the same trigger for
// the same venue event must collapse into this single row.
type Claim struct {
	ID              int     `gorm:"primary_key" json:"id"`
	PurchaseOrderId string  `gorm:"size:64;not null;index:uniq_claim_event,unique" json:"purchase_order_id"`
	EventId         string  `gorm:"size:160;not null;index:uniq_claim_event,unique" json:"event_id"`
	Claimant        string  `gorm:"size:128;not null" json:"claimant"`
	SubmitTxHash    *string `gorm:"size:128;default:null" json:"submit_tx_hash"`

	Status         ClaimStatus `gorm:"size:32;not null;index" json:"status"`
	RejectedReason *string     `gorm:"size:64;default:null" json:"rejected_reason"`

	// Evidence fields written during verification.
	EvidenceRoot      *string `gorm:"size:128;default:null" json:"evidence_root"`
	EvidenceBlob      *string `gorm:"type:mediumtext;default:null" json:"evidence_blob"`
	LiquidationTimeMs *int64  `gorm:"default:null" json:"liquidation_time_ms"`

	// Coverage window snapshotted at verification time; never re-read later.
	CoverageWindowStartMs *int64 `gorm:"default:null" json:"coverage_window_start_ms"`
	CoverageWindowEndMs   *int64 `gorm:"default:null" json:"coverage_window_end_ms"`

	PayoutAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"payout_amount"`
	PayoutCap    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"payout_cap"`

	ApprovedBy     *string    `gorm:"size:128;default:null" json:"approved_by"`
	ApprovedAt     *time.Time `gorm:"default:null" json:"approved_at"`
	MultisigTxHash *string    `gorm:"size:128;default:null" json:"multisig_tx_hash"`
	PaidAt         *time.Time `gorm:"default:null" json:"paid_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// EventIdMissing is the sentinel event id used when a purchase order carries no
// exchange metadata; the placeholder claim keyed by it goes straight to FAILED.
const EventIdMissing = "ordId:missing"

// EventIdForOrder derives the idempotency key from the venue order id.
func EventIdForOrder(okxOrderId string) string {
	if okxOrderId == "" {
		return EventIdMissing
	}
	return "ordId:" + okxOrderId
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// UpsertClaimForEvent inserts the claim row for (purchaseOrderId, eventId) with
// status VERIFYING, or, if it already exists, touches updated_at only. The
// duplicate-key path is what collapses concurrent first deliveries of the same
// trigger into a single row.
func UpsertClaimForEvent(tx *gorm.DB, purchaseOrderId, eventId, claimant string, submitTxHash *string) (claim *Claim, created bool, err error) {
	fresh := Claim{
		PurchaseOrderId: purchaseOrderId,
		EventId:         eventId,
		Claimant:        claimant,
		SubmitTxHash:    submitTxHash,
		Status:          ClaimStatusVerifying,
	}
	if err := tx.Create(&fresh).Error; err == nil {
		return &fresh, true, nil
	} else if !isDuplicateKeyErr(err) {
		return nil, false, err
	}

	var existing Claim
	if err := tx.Where("purchase_order_id = ? AND event_id = ?", purchaseOrderId, eventId).
		First(&existing).Error; err != nil {
		return nil, false, err
	}
	if err := tx.Model(&Claim{}).
		Where("id = ?", existing.ID).
		Update("updated_at", time.Now().UTC()).Error; err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

// TransitionClaim performs one compare-and-swap status transition:
// UPDATE ... SET status = to, <updates> WHERE id = ? AND status = from.
// Zero affected rows means the claim already moved; that lost race is surfaced
// as utils.ErrTransitionConflict and must never be ignored.
func TransitionClaim(tx *gorm.DB, claimId int, from, to ClaimStatus, updates map[string]interface{}) error {
	if !CanTransitionClaim(from, to) {
		return errors.New("illegal claim transition " + string(from) + " -> " + string(to))
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to

	res := tx.Model(&Claim{}).
		Where("id = ? AND status = ?", claimId, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrTransitionConflict
	}
	return nil
}

func GetClaimById(tx *gorm.DB, id int) (*Claim, error) {
	var claim Claim
	if err := tx.Where("id = ?", id).First(&claim).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &claim, nil
}

func GetClaimByEvent(tx *gorm.DB, purchaseOrderId, eventId string) (*Claim, error) {
	var claim Claim
	if err := tx.Where("purchase_order_id = ? AND event_id = ?", purchaseOrderId, eventId).
		First(&claim).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &claim, nil
}

// ListClaimsByStatus returns claims in a status ordered newest first. Limit and
// offset are expected pre-clamped (see ClampListLimit / ClampListOffset).
func ListClaimsByStatus(tx *gorm.DB, status ClaimStatus, limit, offset int) ([]Claim, error) {
	var claims []Claim
	err := tx.Where("status = ?", status).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&claims).Error
	return claims, err
}

// ComputeClaimPayout is the exact-decimal payout rule: min(fixed, cap).
func ComputeClaimPayout(payoutFixed, payoutCap decimal.Decimal) decimal.Decimal {
	return decimal.Min(payoutFixed, payoutCap)
}
