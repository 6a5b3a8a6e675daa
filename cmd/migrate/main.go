package main

import (
	"context"
	"flag"
	"time"

	"laundry/internal/machines/repository"
	mongoMigration "laundry/internal/migrations/mongo"
	"laundry/pkg/config"
)

const JobName = "mongo-migration"

func main() {
	seed := flag.Bool("seed", true, "insert the default machines when the Machines collection is empty")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()
	cfg.Log.Info("Starting Mongo migration job", "seed", *seed)

	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	if err := mongoMigration.RunMigration(ctx, db, cfg.Log); err != nil {
		cfg.Log.Fatal("Migration failed", "error", err)
	}

	if *seed {
		machines := repository.NewMongoMachineRepository(cfg)
		if _, err := mongoMigration.SeedMachines(ctx, machines, mongoMigration.DefaultMachines(), cfg.Log); err != nil {
			cfg.Log.Fatal("Seeding machines failed", "error", err)
		}
	}

	cfg.Log.Info("Migration completed successfully")
}
