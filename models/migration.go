package models

import (
	"log"

	"github.com/pedalhouse/bikestock_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Product{},
		&Invoice{}, &InvoiceLineItem{},
		&Bike{},
		&SerialCounter{},
		&WebhookLogEntry{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
