package main

import (
	"context"
	"fmt"
	"log"

	"gym-membership-api/core"
)

func main() {
	cfg := core.Load()
	ctx := context.Background()

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	if cfg.JWTSecret == "" {
		log.Fatalf("JWT_SECRET is required")
	}

	if err := core.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	redisClient, err := core.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	plans := core.DefaultPlanCatalog()
	if cfg.PlanCatalogPath != "" {
		plans, err = core.LoadPlanCatalog(cfg.PlanCatalogPath)
		if err != nil {
			log.Fatalf("failed to load plan catalog: %v", err)
		}
	}

	ownerRepo := core.NewPgOwnerRepository(db)
	memberRepo := core.NewPgMemberRepository(db)
	hasher := core.NewPasswordHasher(cfg.BcryptCost)
	tokens := core.NewTokenService(cfg.JWTSecret, cfg.JWTExpiration)
	authService := core.NewAuthService(ownerRepo, memberRepo, hasher, tokens)

	// Bootstrap must finish before the listener starts but is never fatal.
	if err := core.BootstrapDefaultOwner(ctx, ownerRepo, hasher, cfg); err != nil {
		log.Printf("bootstrap default owner failed: %v", err)
	}

	router := core.NewRouter(cfg, authService, tokens, core.RouterDeps{
		Owners:     ownerRepo,
		Members:    memberRepo,
		Attendance: core.NewPgAttendanceRepository(db),
		Orders:     core.NewPgOrderRepository(db),
		Stats:      core.NewStatsService(redisClient),
		Plans:      plans,
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("starting api server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
