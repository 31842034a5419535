package jpverify

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/config"
)

// Client calls the external verification oracle. It owns the full retry /
// backoff / timeout policy; callers see either a Result or a typed error
// (ErrVerifyTimeout or *UpstreamError).
type Client struct {
	baseURL string
	http    *http.Client
	policy  RetryPolicy
	timeout time.Duration
	logger  *logrus.Logger
}

func NewClient(cfg config.ClaimsConfig, logger *logrus.Logger) *Client {
	backoffStep := cfg.VerifyBackoffStep
	return &Client{
		baseURL: strings.TrimRight(cfg.VerifyBaseURL, "/"),
		// No client-level timeout: each attempt is bounded by its own context.
		http:    &http.Client{},
		timeout: cfg.VerifyAttemptTimeout,
		policy: RetryPolicy{
			MaxAttempts: cfg.VerifyMaxAttempts,
			Backoff: func(attemptIndex int) time.Duration {
				return backoffStep * time.Duration(attemptIndex+1)
			},
		},
		logger: logger,
	}
}

type verifyRequest struct {
	OrdId  string `json:"ordId"`
	InstId string `json:"instId"`
}

// Verify confirms a liquidation for (orderId, instrumentId) against the oracle.
// Timeout-class failures are retried per the policy; any other upstream failure
// surfaces immediately.
func (c *Client) Verify(ctx context.Context, orderId, instrumentId string) (*Result, error) {
	result, err := doWithRetry(ctx, c.policy, isTimeoutClass, func(ctx context.Context) (*Result, error) {
		return c.verifyOnce(ctx, orderId, instrumentId)
	})
	if err != nil {
		if isTimeoutClass(err) {
			return nil, ErrVerifyTimeout
		}
		return nil, err
	}
	return result, nil
}

func (c *Client) verifyOnce(ctx context.Context, orderId, instrumentId string) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(verifyRequest{OrdId: orderId, InstId: instrumentId})
	if err != nil {
		return nil, &UpstreamError{Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.baseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return nil, &UpstreamError{Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeoutClass(err) {
			return nil, err
		}
		return nil, &UpstreamError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeoutClass(err) {
			return nil, err
		}
		return nil, &UpstreamError{Detail: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(raw))}
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Detail: "malformed evidence payload: " + err.Error()}
	}

	result := &Result{
		EvidenceBlob:      string(raw),
		EvidenceRoot:      evidenceRoot(payload, raw),
		LiquidationTimeMs: ExtractLiquidationTimeMs(payload),
	}

	if c.logger != nil {
		c.logger.WithFields(logrus.Fields{
			"field":         "JpVerify",
			"ord_id":        orderId,
			"inst_id":       instrumentId,
			"evidence_root": result.EvidenceRoot,
			"has_liq_time":  result.LiquidationTimeMs != nil,
		}).Info("verification evidence received")
	}
	return result, nil
}

// evidenceRoot prefers the hash the oracle signed; when the payload omits it,
// hash the blob locally so the claim always records a stable content address.
func evidenceRoot(payload map[string]any, raw []byte) string {
	if root, ok := payload["evidenceRoot"].(string); ok && root != "" {
		return root
	}
	if root, ok := payload["root"].(string); ok && root != "" {
		return root
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// isTimeoutClass classifies an attempt failure for the retry policy: only
// deadline/timeout errors are retried.
func isTimeoutClass(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrVerifyTimeout) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
