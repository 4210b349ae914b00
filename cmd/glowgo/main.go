package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"glowgo/internal/app"
	"glowgo/internal/config"
	"glowgo/internal/matching"
	"glowgo/internal/preference"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer application.Close()

	switch os.Args[1] {
	case "seed":
		seedCmd := flag.NewFlagSet("seed", flag.ExitOnError)
		file := seedCmd.String("file", "", "JSON seed file (default: embedded demo catalog)")
		seedCmd.Parse(os.Args[2:])

		if err := application.Seed(ctx, *file); err != nil {
			log.Fatalf("Seed failed: %v", err)
		}
	case "match":
		if len(os.Args) < 3 {
			fmt.Println("Usage: glowgo match \"<request>\"")
			os.Exit(1)
		}
		query := strings.Join(os.Args[2:], " ")
		if err := runMatch(ctx, application, cfg, query); err != nil {
			log.Fatalf("Match failed: %v", err)
		}
	case "serve":
		if err := application.Seed(ctx, ""); err != nil {
			log.Fatalf("Seed failed: %v", err)
		}
		runServe(application)
	case "ingest-yelp":
		yelpCmd := flag.NewFlagSet("ingest-yelp", flag.ExitOnError)
		term := yelpCmd.String("term", "hair salon", "Yelp search term")
		location := yelpCmd.String("location", "Boston, MA", "Search location")
		limit := yelpCmd.Int("limit", 20, "Maximum businesses to fetch")
		yelpCmd.Parse(os.Args[2:])

		n, err := application.RefreshFromYelp(ctx, *term, *location, *limit)
		if err != nil {
			log.Fatalf("Yelp ingest failed: %v", err)
		}
		fmt.Printf("Imported %d providers from Yelp.\n", n)
	case "import-url":
		if len(os.Args) < 3 {
			fmt.Println("Usage: glowgo import-url <url>")
			os.Exit(1)
		}
		n, err := application.ImportFromURL(ctx, os.Args[2])
		if err != nil {
			log.Fatalf("Import failed: %v", err)
		}
		fmt.Printf("Imported %d providers from %s.\n", n, os.Args[2])
	case "metrics-cleanup":
		cleanupCmd := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := cleanupCmd.Int("days", 30, "Keep records for the last N days")
		cleanupCmd.Parse(os.Args[2:])

		affected, err := application.CleanupMetrics(ctx, *days)
		if err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		sessions, err := application.CleanupSessions(ctx, *days)
		if err != nil {
			log.Fatalf("Session cleanup failed: %v", err)
		}
		fmt.Printf("Successfully removed %d old metric records and %d stale sessions.\n", affected, sessions)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// runMatch runs a one-shot search from a natural-language request, without
// the multi-turn conversation loop.
func runMatch(ctx context.Context, application *app.App, cfg *config.Config, query string) error {
	if err := application.Seed(ctx, ""); err != nil {
		return err
	}

	pref := preference.ExtractTurn(query, time.Now())
	if pref.ServiceType == nil {
		return fmt.Errorf("could not recognize a service type in %q", query)
	}

	result, err := application.Pipeline.Match(ctx, matching.Request{
		Pref:        pref,
		RadiusMiles: cfg.DefaultRadiusMiles,
		Now:         time.Now(),
	})
	if err != nil {
		return err
	}

	fmt.Println(result.Summary)
	for i, c := range result.Ranked {
		fmt.Printf("%d. %s (score %.1f, rating %.1f, $%.0f, %d open slots)\n",
			i+1, c.Name, c.Overall, c.Rating, c.Price, c.AvailableSlots)
	}
	for _, s := range result.Suggestions {
		fmt.Printf("- %s\n", s.Message)
	}
	if result.Availability != nil {
		for _, s := range result.Availability.Suggestions {
			fmt.Printf("- %s\n", s)
		}
	}
	return nil
}

// runServe runs the HTTP API until SIGINT or SIGTERM.
func runServe(application *app.App) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.ListenAndServe(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func printUsage() {
	fmt.Println("Usage: glowgo <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  seed               Load the provider catalog (embedded demo data or -file)")
	fmt.Println("  match \"<request>\"  One-shot provider search from a natural-language request")
	fmt.Println("  serve              Run the HTTP API")
	fmt.Println("  ingest-yelp        Import providers from the Yelp Fusion API")
	fmt.Println("  import-url <url>   Scrape a salon booking page into the catalog")
	fmt.Println("  metrics-cleanup    Remove old metric records")
}
