package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/config"
	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/jpverify"
	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/models"
	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/utils"
	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/workflow"
)

// stubOracle returns a canned liquidation time (or error) and records calls
// plus the state of the context it was handed.
type stubOracle struct {
	liqTimeMs  *int64
	err        error
	calls      int
	lastCtxErr error
}

func (o *stubOracle) Verify(ctx context.Context, orderId, instrumentId string) (*jpverify.Result, error) {
	o.calls++
	o.lastCtxErr = ctx.Err()
	if o.err != nil {
		return nil, o.err
	}
	return &jpverify.Result{
		EvidenceBlob:      fmt.Sprintf(`{"ordId":%q,"instId":%q}`, orderId, instrumentId),
		EvidenceRoot:      "root-" + orderId,
		LiquidationTimeMs: o.liqTimeMs,
	}, nil
}

func seedOrder(t *testing.T, id string, paid bool, startMs, endMs *int64, okxOrderId, instrumentId *string) {
	t.Helper()
	db := config.GetDB()
	order := models.PurchaseOrder{
		ID:                id,
		Claimant:          "0xclaimant",
		CoverageStartMs:   startMs,
		CoverageEndMs:     endMs,
		PayoutFixedAmount: decimal.RequireFromString("1.00"),
		PayoutCapAmount:   decimal.RequireFromString("1.00"),
		OkxOrderId:        okxOrderId,
		OkxInstrumentId:   instrumentId,
	}
	if paid {
		now := time.Now().UTC()
		order.PaidAt = &now
	}
	if err := db.Save(&order).Error; err != nil {
		t.Fatalf("seed order %s: %v", id, err)
	}
}

func TestClaimsSettlementPipeline(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()
	logger := config.GetLogger()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "liqpass_test")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
	db := config.GetDB()
	if err := models.ApplySQLMigrations(db); err != nil {
		t.Fatalf("ApplySQLMigrations: %v", err)
	}
	// Second run must be a no-op thanks to the ledger.
	if err := models.ApplySQLMigrations(db); err != nil {
		t.Fatalf("ApplySQLMigrations (rerun): %v", err)
	}

	now := time.Now().UTC().UnixMilli()
	start := now - time.Hour.Milliseconds()
	end := now + time.Hour.Milliseconds()
	okxId := "okx-100"
	inst := "BTC-USDT-SWAP"

	// --- Happy path: liquidation inside the window.
	seedOrder(t, "po-happy", true, &start, &end, &okxId, &inst)
	inWindow := now
	oracle := &stubOracle{liqTimeMs: &inWindow}

	res, err := workflow.ProcessOnchainTrigger(ctx, db, logger, oracle, workflow.TriggerRequest{
		PurchaseOrderId: "po-happy", Claimant: "0xclaimant",
	})
	if err != nil {
		t.Fatalf("happy trigger: %v", err)
	}
	if res.Status != models.ClaimStatusVerifiedPendingReview {
		t.Fatalf("expected VERIFIED_PENDING_REVIEW, got %s", res.Status)
	}
	claim, err := models.GetClaimByEvent(db, "po-happy", "ordId:okx-100")
	if err != nil {
		t.Fatalf("fetch claim: %v", err)
	}
	if claim.PayoutAmount.Cmp(decimal.RequireFromString("1.00")) != 0 {
		t.Fatalf("expected payout 1.00, got %s", claim.PayoutAmount.String())
	}
	if claim.EvidenceRoot == nil || *claim.EvidenceRoot != "root-okx-100" {
		t.Fatalf("expected evidence root recorded, got %v", claim.EvidenceRoot)
	}
	if claim.LiquidationTimeMs == nil || *claim.LiquidationTimeMs != inWindow {
		t.Fatalf("expected liquidation time snapshot, got %v", claim.LiquidationTimeMs)
	}

	// --- Re-delivery echoes the recorded outcome without calling the oracle.
	failingOracle := &stubOracle{err: errors.New("must not be called")}
	res2, err := workflow.ProcessOnchainTrigger(ctx, db, logger, failingOracle, workflow.TriggerRequest{
		PurchaseOrderId: "po-happy", Claimant: "0xclaimant",
	})
	if err != nil {
		t.Fatalf("re-delivery: %v", err)
	}
	if res2.Status != models.ClaimStatusVerifiedPendingReview {
		t.Fatalf("re-delivery expected echo of VERIFIED_PENDING_REVIEW, got %s", res2.Status)
	}
	if failingOracle.calls != 0 {
		t.Fatalf("re-delivery must not re-run verification; oracle called %d times", failingOracle.calls)
	}
	if res2.ClaimId == nil || *res2.ClaimId != claim.ID {
		t.Fatalf("re-delivery must resolve to the same claim row")
	}

	// --- Admin review: approve, conflicting double-approve, mark paid.
	approved, err := workflow.ApproveClaim(ctx, db, logger, claim.ID, "reviewer@ops")
	if err != nil {
		t.Fatalf("ApproveClaim: %v", err)
	}
	if approved.Status != models.ClaimStatusApprovedPendingMultisig {
		t.Fatalf("expected APPROVED_PENDING_MULTISIG, got %s", approved.Status)
	}
	if approved.ApprovedBy == nil || *approved.ApprovedBy != "reviewer@ops" {
		t.Fatalf("expected approver recorded, got %v", approved.ApprovedBy)
	}
	if _, err := workflow.ApproveClaim(ctx, db, logger, claim.ID, "reviewer@ops"); !errors.Is(err, utils.ErrTransitionConflict) {
		t.Fatalf("double approve expected ErrTransitionConflict, got %v", err)
	}

	paidClaim, err := workflow.MarkClaimPaid(ctx, db, logger, claim.ID, "0xmultisig123", time.Now())
	if err != nil {
		t.Fatalf("MarkClaimPaid: %v", err)
	}
	if paidClaim.Status != models.ClaimStatusPaid || paidClaim.MultisigTxHash == nil {
		t.Fatalf("expected PAID with tx hash, got %s %v", paidClaim.Status, paidClaim.MultisigTxHash)
	}

	// --- Liquidation outside the window is rejected but keeps the evidence.
	okx2 := "okx-200"
	seedOrder(t, "po-outside", true, &start, &end, &okx2, &inst)
	outside := end + 1
	res3, err := workflow.ProcessOnchainTrigger(ctx, db, logger, &stubOracle{liqTimeMs: &outside}, workflow.TriggerRequest{
		PurchaseOrderId: "po-outside", Claimant: "0xclaimant",
	})
	if err != nil {
		t.Fatalf("outside-window trigger: %v", err)
	}
	if res3.Status != models.ClaimStatusRejected {
		t.Fatalf("expected REJECTED, got %s", res3.Status)
	}
	if res3.RejectedReason == nil || *res3.RejectedReason != models.ClaimReasonOutOfCoverageWindow {
		t.Fatalf("expected OUT_OF_COVERAGE_WINDOW, got %v", res3.RejectedReason)
	}
	rejected, err := models.GetClaimByEvent(db, "po-outside", "ordId:okx-200")
	if err != nil {
		t.Fatalf("fetch rejected claim: %v", err)
	}
	if rejected.EvidenceRoot == nil || rejected.CoverageWindowEndMs == nil {
		t.Fatal("rejected claim must retain evidence and the window snapshot")
	}

	// --- Oracle timeout: the claim must land in FAILED, never stay VERIFYING.
	okx3 := "okx-300"
	seedOrder(t, "po-timeout", true, &start, &end, &okx3, &inst)
	res4, err := workflow.ProcessOnchainTrigger(ctx, db, logger, &stubOracle{err: jpverify.ErrVerifyTimeout}, workflow.TriggerRequest{
		PurchaseOrderId: "po-timeout", Claimant: "0xclaimant",
	})
	if err != nil {
		t.Fatalf("timeout trigger: %v", err)
	}
	if res4.Status != models.ClaimStatusFailed {
		t.Fatalf("expected FAILED, got %s", res4.Status)
	}
	if res4.RejectedReason == nil || *res4.RejectedReason != models.ClaimReasonVerifyTimeout {
		t.Fatalf("expected JP_VERIFY_TIMEOUT, got %v", res4.RejectedReason)
	}
	failed, err := models.GetClaimByEvent(db, "po-timeout", "ordId:okx-300")
	if err != nil {
		t.Fatalf("fetch failed claim: %v", err)
	}
	if failed.EvidenceRoot != nil {
		t.Fatal("rolled-back verification must not leave partial evidence behind")
	}

	// --- Non-timeout oracle failure (5xx) also lands in FAILED, never VERIFYING.
	okx5 := "okx-500"
	seedOrder(t, "po-upstream", true, &start, &end, &okx5, &inst)
	res4b, err := workflow.ProcessOnchainTrigger(ctx, db, logger, &stubOracle{err: &jpverify.UpstreamError{StatusCode: 502, Detail: "bad gateway"}}, workflow.TriggerRequest{
		PurchaseOrderId: "po-upstream", Claimant: "0xclaimant",
	})
	if err != nil {
		t.Fatalf("upstream-error trigger: %v", err)
	}
	if res4b.Status != models.ClaimStatusFailed {
		t.Fatalf("expected FAILED, got %s", res4b.Status)
	}
	if res4b.RejectedReason == nil || *res4b.RejectedReason != models.ClaimReasonVerifyError {
		t.Fatalf("expected JP_VERIFY_ERROR, got %v", res4b.RejectedReason)
	}

	// --- An abandoned request must not abort verification or the FAILED write.
	okx6 := "okx-600"
	seedOrder(t, "po-abandoned", true, &start, &end, &okx6, &inst)
	canceledCtx, cancelNow := context.WithCancel(ctx)
	cancelNow()
	abandonOracle := &stubOracle{liqTimeMs: &inWindow}
	res4c, err := workflow.ProcessOnchainTrigger(canceledCtx, db, logger, abandonOracle, workflow.TriggerRequest{
		PurchaseOrderId: "po-abandoned", Claimant: "0xclaimant",
	})
	if err != nil {
		t.Fatalf("abandoned-caller trigger: %v", err)
	}
	if res4c.Status != models.ClaimStatusVerifiedPendingReview {
		t.Fatalf("abandoned caller: expected VERIFIED_PENDING_REVIEW, got %s", res4c.Status)
	}
	if abandonOracle.calls != 1 || abandonOracle.lastCtxErr != nil {
		t.Fatalf("verification must run detached from the caller's context (calls=%d ctxErr=%v)",
			abandonOracle.calls, abandonOracle.lastCtxErr)
	}

	// --- Order without venue metadata fails terminally under the sentinel key.
	seedOrder(t, "po-nometa", true, &start, &end, nil, nil)
	res5, err := workflow.ProcessOnchainTrigger(ctx, db, logger, &stubOracle{}, workflow.TriggerRequest{
		PurchaseOrderId: "po-nometa", Claimant: "0xclaimant",
	})
	if err != nil {
		t.Fatalf("no-meta trigger: %v", err)
	}
	if res5.Status != models.ClaimStatusFailed || res5.RejectedReason == nil || *res5.RejectedReason != models.ClaimReasonMissingOkxMeta {
		t.Fatalf("expected FAILED/MISSING_OKX_META, got %s %v", res5.Status, res5.RejectedReason)
	}
	if _, err := models.GetClaimByEvent(db, "po-nometa", models.EventIdMissing); err != nil {
		t.Fatalf("expected sentinel-key claim row: %v", err)
	}

	// --- Guard rails: unknown order and unpaid order.
	if _, err := workflow.ProcessOnchainTrigger(ctx, db, logger, &stubOracle{}, workflow.TriggerRequest{
		PurchaseOrderId: "po-missing", Claimant: "0xclaimant",
	}); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("unknown order expected ErrorRecordNotFound, got %v", err)
	}
	okx4 := "okx-400"
	seedOrder(t, "po-unpaid", false, &start, &end, &okx4, &inst)
	if _, err := workflow.ProcessOnchainTrigger(ctx, db, logger, &stubOracle{}, workflow.TriggerRequest{
		PurchaseOrderId: "po-unpaid", Claimant: "0xclaimant",
	}); !errors.Is(err, workflow.ErrOrderNotClaimable) {
		t.Fatalf("unpaid order expected ErrOrderNotClaimable, got %v", err)
	}
	if _, err := models.GetClaimByEvent(db, "po-unpaid", "ordId:okx-400"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatal("unclaimable order must not get a claim row")
	}

	// --- Review queue paging.
	queue, err := workflow.ListClaims(ctx, db, models.ClaimStatusRejected, 10, 0)
	if err != nil {
		t.Fatalf("ListClaims: %v", err)
	}
	if len(queue) != 1 || queue[0].PurchaseOrderId != "po-outside" {
		t.Fatalf("expected one rejected claim for po-outside, got %d", len(queue))
	}
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("liqpass-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=liqpass_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
