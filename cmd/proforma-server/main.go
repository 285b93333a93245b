package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/matthewbaird/proforma/internal/server"
	"github.com/matthewbaird/proforma/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "file:proforma.db"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()

	repo := storage.NewRepo(db)
	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("running schema migration: %v", err)
	}
	if err := repo.Seed(ctx); err != nil {
		log.Fatalf("seeding demo property: %v", err)
	}
	log.Println("database migrated and seeded")

	port := 8080
	if p := os.Getenv("PORT"); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	if err := server.Run(ctx, server.Config{Port: port, Repo: repo}); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
