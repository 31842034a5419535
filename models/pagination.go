package models

const (
	ClaimListDefaultLimit = 50
	ClaimListMaxLimit     = 200
)

// ClampListLimit clamps an admin list limit to [1, ClaimListMaxLimit],
// defaulting when unset or non-positive.
func ClampListLimit(limit int) int {
	if limit <= 0 {
		return ClaimListDefaultLimit
	}
	if limit > ClaimListMaxLimit {
		return ClaimListMaxLimit
	}
	return limit
}

// ClampListOffset clamps an admin list offset to >= 0.
func ClampListOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
