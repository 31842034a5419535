// seed-dev inserts a paid purchase order with an open coverage window and
// OKX order metadata so the trigger pipeline can be exercised locally.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-dev
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/config"
	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/models"
)

func main() {
	orderId := flag.String("order-id", "po-dev-1", "purchase order id to seed")
	okxOrderId := flag.String("okx-order-id", "okx-dev-1", "venue order id")
	instrumentId := flag.String("instrument-id", "BTC-USDT-SWAP", "venue instrument id")
	payoutFixed := flag.String("payout-fixed", "1.00", "fixed payout amount")
	payoutCap := flag.String("payout-cap", "1.00", "payout cap amount")
	windowHours := flag.Int("window-hours", 24, "coverage window length from now")
	flag.Parse()

	fixed, err := decimal.NewFromString(*payoutFixed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid payout-fixed: %v\n", err)
		os.Exit(1)
	}
	capAmt, err := decimal.NewFromString(*payoutCap)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid payout-cap: %v\n", err)
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	now := time.Now().UTC()
	start := now.UnixMilli()
	end := now.Add(time.Duration(*windowHours) * time.Hour).UnixMilli()

	order := models.PurchaseOrder{
		ID:                *orderId,
		Claimant:          "0xdev",
		PaidAt:            &now,
		CoverageStartMs:   &start,
		CoverageEndMs:     &end,
		PayoutFixedAmount: fixed,
		PayoutCapAmount:   capAmt,
		OkxOrderId:        okxOrderId,
		OkxInstrumentId:   instrumentId,
	}
	if err := db.Save(&order).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed purchase order: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("seeded purchase order %s (coverage %d..%d)\n", order.ID, start, end)
}
