// claims-requeue flips a FAILED claim back to VERIFYING so the next trigger
// re-delivery re-runs verification. For ops use after a verification outage;
// the flip is a conditional update, so a claim that already moved on is left
// untouched.
//
// Usage:
//
//	DB_USER=... DB_HOST=... go run ./cmd/claims-requeue --claim-id 42
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/config"
	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/models"
)

func main() {
	claimId := flag.Int("claim-id", 0, "Required: id of the FAILED claim to requeue")
	flag.Parse()

	if *claimId <= 0 {
		fmt.Fprintln(os.Stderr, "--claim-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	res := db.Model(&models.Claim{}).
		Where("id = ? AND status = ?", *claimId, models.ClaimStatusFailed).
		Updates(map[string]interface{}{
			"status":          models.ClaimStatusVerifying,
			"rejected_reason": nil,
		})
	if res.Error != nil {
		fmt.Fprintf(os.Stderr, "requeue failed: %v\n", res.Error)
		os.Exit(1)
	}
	if res.RowsAffected == 0 {
		fmt.Fprintf(os.Stderr, "claim %d is not in FAILED; nothing done\n", *claimId)
		os.Exit(2)
	}

	fmt.Printf("claim %d requeued to VERIFYING\n", *claimId)
}
