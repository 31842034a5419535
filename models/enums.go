package models

// ClaimStatus is a closed enumeration; no other value is ever persisted.
type ClaimStatus string

const (
	ClaimStatusVerifying               ClaimStatus = "VERIFYING"
	ClaimStatusVerifiedPendingReview   ClaimStatus = "VERIFIED_PENDING_REVIEW"
	ClaimStatusRejected                ClaimStatus = "REJECTED"
	ClaimStatusApprovedPendingMultisig ClaimStatus = "APPROVED_PENDING_MULTISIG"
	ClaimStatusPaid                    ClaimStatus = "PAID"
	ClaimStatusFailed                  ClaimStatus = "FAILED"
)

// ParseClaimStatus validates an incoming status string (admin list filter).
func ParseClaimStatus(s string) (ClaimStatus, bool) {
	switch ClaimStatus(s) {
	case ClaimStatusVerifying,
		ClaimStatusVerifiedPendingReview,
		ClaimStatusRejected,
		ClaimStatusApprovedPendingMultisig,
		ClaimStatusPaid,
		ClaimStatusFailed:
		return ClaimStatus(s), true
	}
	return "", false
}

// IsTerminalClaimStatus reports whether the automated pipeline takes no further
// action from this status. REJECTED stays reachable via admin action.
func IsTerminalClaimStatus(s ClaimStatus) bool {
	switch s {
	case ClaimStatusRejected, ClaimStatusPaid, ClaimStatusFailed:
		return true
	}
	return false
}

// CanTransitionClaim is the authoritative legal-transition table. Every
// persisted status change goes through a conditional UPDATE whose (from, to)
// pair must be legal here.
func CanTransitionClaim(from, to ClaimStatus) bool {
	switch from {
	case ClaimStatusVerifying:
		return to == ClaimStatusVerifiedPendingReview ||
			to == ClaimStatusRejected ||
			to == ClaimStatusFailed
	case ClaimStatusVerifiedPendingReview:
		return to == ClaimStatusApprovedPendingMultisig ||
			to == ClaimStatusRejected
	case ClaimStatusApprovedPendingMultisig:
		return to == ClaimStatusPaid ||
			to == ClaimStatusRejected
	}
	return false
}

// Machine-readable rejected_reason codes recorded on REJECTED/FAILED claims.
const (
	ClaimReasonOutOfCoverageWindow    = "OUT_OF_COVERAGE_WINDOW"
	ClaimReasonMissingLiquidationTime = "MISSING_LIQUIDATION_TIME"
	ClaimReasonMissingOkxMeta         = "MISSING_OKX_META"
	ClaimReasonVerifyTimeout          = "JP_VERIFY_TIMEOUT"
	ClaimReasonVerifyError            = "JP_VERIFY_ERROR"
)
