package jpverify

import (
	"errors"
	"fmt"
)

// Result is the liquidation evidence returned by the verification oracle.
// LiquidationTimeMs is nil when the evidence carried no usable timestamp; that
// is not an error at this layer (the pipeline routes it to FAILED itself).
type Result struct {
	// EvidenceBlob is the raw verification payload, kept opaque for audit.
	EvidenceBlob string
	// EvidenceRoot is the content hash of the evidence.
	EvidenceRoot      string
	LiquidationTimeMs *int64
}

// ErrVerifyTimeout is returned after every attempt timed out.
var ErrVerifyTimeout = errors.New("jp verify timeout")

// UpstreamError is a non-timeout oracle failure (non-2xx response, unreachable
// host, malformed payload). It is never retried.
type UpstreamError struct {
	StatusCode int
	Detail     string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("jp verify upstream error %d: %s", e.StatusCode, e.Detail)
	}
	return "jp verify upstream error: " + e.Detail
}
