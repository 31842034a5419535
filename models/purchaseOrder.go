package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/utils"
)

// PurchaseOrder is a paid coverage order. The checkout subsystem owns these rows;
// the claims pipeline only reads them.
type PurchaseOrder struct {
	ID                string          `gorm:"primary_key;size:64" json:"id"`
	Claimant          string          `gorm:"size:128;index" json:"claimant"`
	PaidAt            *time.Time      `gorm:"default:null" json:"paid_at"`
	CoverageStartMs   *int64          `gorm:"default:null" json:"coverage_start_ms"`
	CoverageEndMs     *int64          `gorm:"default:null" json:"coverage_end_ms"`
	PayoutFixedAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"payout_fixed_amount"`
	PayoutCapAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"payout_cap_amount"`
	OkxOrderId        *string         `gorm:"size:128;default:null" json:"okx_order_id"`
	OkxInstrumentId   *string         `gorm:"size:64;default:null" json:"okx_instrument_id"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetPurchaseOrderById(tx *gorm.DB, id string) (*PurchaseOrder, error) {
	var order PurchaseOrder
	if err := tx.Where("id = ?", id).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &order, nil
}

// IsClaimable reports whether a claim may be processed against this order:
// payment confirmed and both coverage-window bounds present.
func (o *PurchaseOrder) IsClaimable() bool {
	return o.PaidAt != nil && o.CoverageStartMs != nil && o.CoverageEndMs != nil
}

// HasExchangeMeta reports whether the venue order metadata needed for
// verification was bound at checkout.
func (o *PurchaseOrder) HasExchangeMeta() bool {
	return o.OkxOrderId != nil && *o.OkxOrderId != "" &&
		o.OkxInstrumentId != nil && *o.OkxInstrumentId != ""
}

// CoversLiquidationTime reports whether t falls inside the coverage window.
// Both bounds are inclusive: a liquidation exactly at coverage start or end is
// insured.
func (o *PurchaseOrder) CoversLiquidationTime(t int64) bool {
	if o.CoverageStartMs == nil || o.CoverageEndMs == nil {
		return false
	}
	return *o.CoverageStartMs <= t && t <= *o.CoverageEndMs
}
