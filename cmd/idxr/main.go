package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"khoomi-api-io/checkout/config"
	"khoomi-api-io/checkout/internal/indexer"
	"khoomi-api-io/checkout/pkg/util"
)

func main() {
	var (
		action      = flag.String("action", "create", "Action: create, drop, list")
		collection  = flag.String("collection", "", "Collection name (for list)")
		timeout     = flag.Duration("timeout", 60*time.Second, "Operation timeout")
		continueErr = flag.Bool("continue-on-error", true, "Continue on error")
		skipExists  = flag.Bool("skip-if-exists", true, "Skip existing indexes")
		jsonOutput  = flag.Bool("json", false, "Output in JSON format")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if _, err := util.InitLogger(cfg.GinMode, cfg.LogLevel); err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := util.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Print("Failed to disconnect:", err)
		}
	}()

	manager := indexer.NewManager(client.Database(cfg.DBName), &indexer.Options{
		Timeout:         *timeout,
		ContinueOnError: *continueErr,
		SkipIfExists:    *skipExists,
	}).LoadFromDefinitions(indexer.CheckoutIndexes())

	switch *action {
	case "create":
		if !*jsonOutput {
			fmt.Printf("Creating indexes in database: %s\n", cfg.DBName)
		}

		result, err := manager.Create(context.Background())
		if *jsonOutput {
			outputJSON(map[string]any{
				"success": err == nil,
				"result":  result,
				"error":   errorString(err),
			})
			return
		}
		if err != nil {
			log.Printf("Index creation completed with errors: %v", err)
		}
		fmt.Printf("\nResults:\n")
		fmt.Printf("  Success: %d\n", result.SuccessCount)
		fmt.Printf("  Failed: %d\n", result.FailedCount)
		fmt.Printf("  Duration: %v\n", result.Duration)
		for _, f := range result.Failures {
			fmt.Printf("  - %s.%s: %v\n", f.Collection, f.IndexName, f.Error)
		}

	case "drop":
		err := manager.Drop(context.Background(), flag.Args()...)
		if *jsonOutput {
			outputJSON(map[string]any{
				"success": err == nil,
				"error":   errorString(err),
			})
			return
		}
		if err != nil {
			log.Fatal("Failed to drop indexes:", err)
		}
		fmt.Println("Indexes dropped successfully")

	case "list":
		if *collection == "" {
			log.Fatal("Collection name required for list action (-collection flag)")
		}

		indexes, err := manager.List(context.Background(), *collection)
		if err != nil {
			log.Fatal("Failed to list indexes:", err)
		}

		if *jsonOutput {
			outputJSON(indexes)
			return
		}
		fmt.Printf("Indexes for collection %s:\n", *collection)
		for _, idx := range indexes {
			if name, ok := idx["name"].(string); ok {
				fmt.Printf("  - %s\n", name)
				if key, ok := idx["key"]; ok {
					fmt.Printf("    Keys: %v\n", key)
				}
			}
		}

	default:
		fmt.Printf("Unknown action: %s\n", *action)
		fmt.Println("Available actions: create, drop, list")
		os.Exit(1)
	}
}

func outputJSON(data any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		log.Fatal("Failed to encode JSON:", err)
	}
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
