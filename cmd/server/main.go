package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warung-pos/api/internal/config"
	"github.com/warung-pos/api/internal/router"
	"github.com/warung-pos/api/internal/store"
	"github.com/warung-pos/api/internal/ws"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	hub := ws.NewHub()
	go hub.Run()

	st := store.New(pool)
	r := router.New(cfg, st, hub)

	log.Printf("Starting server on :%s", cfg.Port)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.Port), r); err != nil {
		log.Fatal(err)
	}
}
