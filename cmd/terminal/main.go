package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"satellite-pos/internal/client"
	"satellite-pos/internal/config"
	"satellite-pos/internal/ledger"
	"satellite-pos/internal/model"
	"satellite-pos/internal/repository"
	"satellite-pos/internal/server"
	"satellite-pos/internal/service"
	"satellite-pos/internal/shift"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	mode := model.TerminalMode(cfg.Terminal.Mode)
	if mode != model.ModeMaster && mode != model.ModeSatellite {
		log.Fatalf("unknown terminal mode %q", cfg.Terminal.Mode)
	}

	pol := ledger.DefaultPolicy()
	if cfg.Loyalty.PolicyPath != "" {
		var err error
		pol, err = ledger.LoadPolicy(cfg.Loyalty.PolicyPath)
		if err != nil {
			log.Fatal("load loyalty policy:", err)
		}
	}

	localDB := client.InitLocalDB(cfg.Terminal.LocalDBPath)
	remoteDB := client.InitRemoteDB(cfg.Terminal.RemoteDSN)

	buffer := shift.NewBuffer(localDB)
	if prev, err := buffer.Mode(context.Background()); err == nil && prev != mode {
		log.Printf("terminal mode changed: %s -> %s", prev, mode)
	}
	if err := buffer.SetMode(context.Background(), mode); err != nil {
		log.Fatal("persist terminal mode:", err)
	}

	localCustomerRepo := repository.NewCustomerRepository(localDB)
	remoteCustomerRepo := repository.NewCustomerRepository(remoteDB)
	remoteOrderRepo := repository.NewOrderRepository(remoteDB)

	// a satellite writes orders and ledger effects against its local copy
	// and settles through sync; the master writes the canonical store
	// directly
	var authorityDB *gorm.DB
	var orderRepo repository.OrderRepository
	var customerRepo repository.CustomerRepository
	if mode == model.ModeSatellite {
		authorityDB = localDB
		orderRepo = repository.NewOrderRepository(localDB)
		customerRepo = localCustomerRepo
	} else {
		authorityDB = remoteDB
		orderRepo = remoteOrderRepo
		customerRepo = remoteCustomerRepo
	}

	orderService := service.NewOrderService(authorityDB, orderRepo, customerRepo, pol)
	customerService := service.NewCustomerService(authorityDB, customerRepo, pol)
	syncService := service.NewSyncService(
		remoteDB,
		remoteOrderRepo,
		remoteCustomerRepo,
		buffer,
		localCustomerRepo,
		pol,
		cfg.Terminal.SyncTimeout,
	)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	srv := server.NewServer(cfg.Terminal.ID, orderService, customerService, syncService)

	log.Printf("starting %s terminal %s on %s", mode, cfg.Terminal.ID, serverAddr)
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Println("Signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("HTTP server shutdown error")
	}
}
