package main

import (
	"context"
	"flag"
	"log"

	"game-reviews/internal/config"
	"game-reviews/internal/db"
)

func main() {
	filePath := flag.String("file", "fixtures.csv", "path to fixtures csv")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	conn, err := db.Open(cfg)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer func() {
		if err := db.Close(conn); err != nil {
			log.Printf("failed to close database: %v", err)
		}
	}()

	if err := db.Migrate(conn); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	games, reviews, err := db.LoadFixtures(context.Background(), conn, *filePath)
	if err != nil {
		log.Fatalf("failed to load fixtures: %v", err)
	}
	log.Printf("loaded %d games and %d reviews", games, reviews)
}
