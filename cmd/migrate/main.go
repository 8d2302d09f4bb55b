package main

import (
	"context"
	"time"

	mongoMigration "roomsaga/internal/migrations/mongo"
	"roomsaga/pkg/config"
	"roomsaga/pkg/db/postgres"
)

const JobName = "migrate"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.SetMongo()
	cfg.SetPostgres()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting migration job")

	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	if err := mongoMigration.RunMigration(ctx, db, cfg.Log); err != nil {
		cfg.Log.Fatal("Mongo migration failed", "error", err)
	}

	if err := postgres.Migrate(cfg.Client.DB.WithContext(ctx)); err != nil {
		cfg.Log.Fatal("Lock store migration failed", "error", err)
	}

	cfg.Log.Info("Migration completed successfully")
}
