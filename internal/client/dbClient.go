package client

import (
	"log"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"satellite-pos/internal/model"
)

// InitLocalDB opens the terminal's own sqlite file: shift buffer, customer
// working copy, terminal state.
func InitLocalDB(path string) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to open local terminal db:", err)
	}

	if err := db.AutoMigrate(
		&model.Customer{},
		&model.Order{},
		&model.OrderItem{},
		&model.TerminalState{},
	); err != nil {
		log.Fatal(err)
	}

	return db
}

// InitRemoteDB opens the canonical shared store.
func InitRemoteDB(dsn string) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to remote store:", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal(err)
	}

	// modest pool; every sync is one transaction and terminals are few
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&model.Customer{},
		&model.Order{},
		&model.OrderItem{},
	); err != nil {
		log.Fatal(err)
	}

	return db
}
