package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudedbasement/control-panel/internal/client"
	"github.com/cloudedbasement/control-panel/internal/config"
	"github.com/cloudedbasement/control-panel/internal/db"
	"github.com/cloudedbasement/control-panel/internal/http"
	"github.com/cloudedbasement/control-panel/internal/repository"
	"github.com/cloudedbasement/control-panel/internal/scheduler"
	"github.com/cloudedbasement/control-panel/internal/service"
)

func main() {
	log.Println("Starting Clouded Basement control panel...")

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize database
	database, err := db.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	pool := database.Pool

	// Initialize repositories
	serverRepo := repository.NewServerRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	domainRepo := repository.NewDomainRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	deploymentRepo := repository.NewDeploymentRepository(pool)
	eventRepo := repository.NewEventRepository(pool)

	// Initialize clients
	computeClient := client.NewComputeClient(cfg.Compute.APIBaseURL, cfg.Compute.Token)
	sshExecutor := client.NewSSHExecutor(cfg.Monitor.SSHTimeout)
	dnsResolver := client.NewDNSResolver(cfg.Monitor.DNSTimeout)
	mailer := client.NewMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)

	// Initialize services
	provisionService := service.NewProvisionService(cfg, serverRepo, userRepo, paymentRepo, eventRepo, computeClient, mailer)
	domainService := service.NewDomainService(domainRepo, serverRepo)
	paymentService := service.NewPaymentService(paymentRepo, serverRepo, provisionService)
	deployService := service.NewDeployService(cfg, deploymentRepo, serverRepo, eventRepo, sshExecutor)
	lifecycleService := service.NewLifecycleService(cfg, serverRepo, eventRepo, computeClient, mailer)
	sslService := service.NewSSLService(cfg, domainRepo, dnsResolver, sshExecutor)

	// Register periodic jobs
	jobs := scheduler.New()
	if err := jobs.Register("lifecycle-monitor", cfg.Monitor.LifecycleEvery, lifecycleService.RunOnce); err != nil {
		log.Fatalf("Failed to register lifecycle job: %v", err)
	}
	if err := jobs.Register("auto-ssl", cfg.Monitor.SSLCheckEvery, sslService.RunOnce); err != nil {
		log.Fatalf("Failed to register SSL job: %v", err)
	}
	jobs.Start()
	defer jobs.Stop()

	// Initial sweep so a restart doesn't wait a full interval
	jobs.RunNow("lifecycle-monitor")

	// Initialize HTTP server
	server := http.NewServer(cfg, pool, provisionService, domainService, paymentService, deployService)

	// Start server in goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Printf("Server starting on %s", addr)
		if err := server.Run(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_ = ctx // Used for graceful shutdown if needed

	log.Println("Server exited")
}
