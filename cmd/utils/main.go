package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/appetiteclub/comanda/cmd/utils/internal/commands"
	"github.com/aquamarinepk/aqm"
)

const (
	appName    = "comanda-utils"
	appVersion = "0.1.0"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	config, err := aqm.LoadConfig("UTILS", os.Args[2:])
	if err != nil {
		log.Fatalf("Cannot load config: %v", err)
	}

	logLevel, _ := config.GetString("log.level")
	if logLevel == "" {
		logLevel = "info"
	}
	logger := aqm.NewLogger(logLevel)

	ctx := context.Background()
	command := os.Args[1]

	switch command {
	case "seed-demo":
		if err := commands.SeedDemo(ctx, config, logger); err != nil {
			log.Fatalf("❌ Demo seeding failed: %v", err)
		}
		logger.Info("✅ Demo seeding completed successfully")

	case "clear-demo":
		if err := commands.ClearDemo(ctx, config, logger); err != nil {
			log.Fatalf("❌ Clear demo data failed: %v", err)
		}
		logger.Info("✅ Demo data cleared successfully")

	case "pending":
		if err := commands.ListPending(ctx, config, logger, os.Stdout); err != nil {
			log.Fatalf("❌ Listing pending orders failed: %v", err)
		}

	case "terminated":
		if err := commands.ListTerminated(ctx, config, logger, os.Stdout); err != nil {
			log.Fatalf("❌ Listing terminated orders failed: %v", err)
		}

	case "reset-db":
		if err := commands.ResetDB(ctx, config, logger); err != nil {
			log.Fatalf("❌ Database reset failed: %v", err)
		}
		logger.Info("✅ Database reset completed successfully")

	case "version":
		fmt.Printf("%s version %s\n", appName, appVersion)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - Comanda utility commands

Usage:
  %s <command> [options]

Commands:
  seed-demo    Submit the demo orders to the pending collection
  clear-demo   Empty the pending collection and the local terminated log
  pending      List pending orders
  terminated   List locally terminated orders for a day (--date=YYYY-MM-DD, default today)
  reset-db     Drop the MongoDB and PostgreSQL completion logs (USE WITH CAUTION)
  version      Print version information
  help         Show this help message

Environment Variables:
  UTILS_STORE_BACKEND     memory, file or nats (default: file)
  UTILS_STORE_FILE_DIR    Directory of the file backend (default: data)
  UTILS_NATS_URL          NATS server for the nats backend
  UTILS_DB_MONGO_URL      MongoDB connection URL (default: mongodb://localhost:27017)
  UTILS_DB_POSTGRES_URL   PostgreSQL connection URL
  UTILS_LOG_LEVEL         Log level: debug, info, warn, error (default: info)

Examples:
  %s seed-demo
  %s terminated --date=2024-06-10
  UTILS_DB_MONGO_URL=mongodb://localhost:27017 %s reset-db

`, appName, appName, appName, appName, appName)
}
