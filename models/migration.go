package models

import (
	"log"

	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&PurchaseOrder{},
		&Claim{},
		&SchemaMigration{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
