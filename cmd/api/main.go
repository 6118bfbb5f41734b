package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"voltmesh.io/internal/auth"
	"voltmesh.io/internal/config"
	"voltmesh.io/internal/httpapi"
	"voltmesh.io/internal/obs"
	"voltmesh.io/internal/session"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	codec, err := auth.NewCodec(cfg.AccessSecret, cfg.RefreshSecret,
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
		auth.WithIssuer("voltmesh"),
	)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	// Credential store: PostgreSQL when a DSN is configured, otherwise the
	// in-memory store for local development.
	var (
		db    *sql.DB
		users auth.UserStore
	)
	if cfg.PGDSN != "" {
		db, err = sql.Open("pgx", cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		users = auth.NewPGStore(db)
	} else {
		log.Printf("no %s set, using in-memory user store", config.EnvPGDSN)
		users = auth.NewMemoryStore()
	}

	// Session registry: shared Redis when configured, otherwise in-process.
	var sessions session.Registry
	if cfg.RedisURL != "" {
		redisReg, err := session.NewRedis(cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			log.Fatalf("session registry: %v", err)
		}
		defer redisReg.Close()
		sessions = redisReg
	} else {
		memReg := session.NewMemory(cfg.SessionTTL)
		defer memReg.Close()
		sessions = memReg
	}

	authSvc, err := auth.NewService(codec, users, sessions)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	devices := httpapi.NewDeviceInventory()
	api := httpapi.New(authSvc, devices, httpapi.ReadyProbe{DB: db}, version)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting voltmesh-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
