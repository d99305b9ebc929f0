package models

import (
	"log"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Supplier{}, &SupplierTemplate{},
		&Customer{}, &Branch{}, &VehicleType{}, &Agent{},
		&MonthlyHeader{}, &MonthlyDeal{},
		&Reservation{},
		&ImportRun{}, &ImportRunEntry{},
		&PriceList{}, &PriceListItem{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
