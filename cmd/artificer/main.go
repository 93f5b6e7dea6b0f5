package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"artificer/internal/budget"
	"artificer/internal/config"
	"artificer/internal/llm"
	"artificer/internal/runner"
	t "artificer/internal/types"
)

func main() {
	prompt := flag.String("prompt", "", "natural-language build request")
	outDir := flag.String("out", "out", "output directory")
	cfgPath := flag.String("config", "artificer.yaml", "optional config file")
	model := flag.String("model", "", "override the configured model id")
	budgetFlag := flag.Int("budget", 0, "override the configured AI call budget")
	recallPath := flag.String("recall", "", "optional file with context from previous builds")
	flag.Parse()
	if *prompt == "" {
		log.Fatal("--prompt is required")
	}

	_ = godotenv.Load()
	if os.Getenv("GEMINI_API_KEY") == "" {
		log.Fatal("GEMINI_API_KEY is not set")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	if *model != "" {
		cfg.Model = *model
	}
	if *budgetFlag > 0 {
		cfg.Budget = *budgetFlag
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	gem, err := llm.NewGeminiClient(ctx, cfg.Model)
	if err != nil {
		log.Fatal(err)
	}
	defer gem.Close()

	meter := budget.NewMeter(cfg.Budget)
	cli := llm.Wrap(gem,
		llm.WithMeter(meter),
		llm.Retry(2, 500*time.Millisecond),
		llm.RateLimit(cfg.RateRPS, cfg.RateBurst),
		llm.Cache(cfg.CacheSize),
		llm.WithUsageLedger(cfg.LedgerPath),
		llm.Logging(cfg.Model),
	)

	s := runner.New(cli, meter, cfg, *outDir)
	if *recallPath != "" {
		b, err := os.ReadFile(*recallPath)
		if err != nil {
			log.Fatalf("failed to read %s: %v", *recallPath, err)
		}
		s.Recall = string(b)
	}

	state, err := s.Run(ctx, *prompt)
	if state != nil && state.Blueprint != nil {
		log.Printf("package: %s", filepath.Join(*outDir, state.Blueprint.ProjectName))
	}
	log.Printf("AI calls used: %d of %d", meter.Used(), cfg.Budget)
	if err != nil {
		log.Printf("run failed: %v", err)
		os.Exit(2)
	}
	if state.Report != nil && state.Report.Status == t.AuditRejected {
		fmt.Fprintln(os.Stderr, "audit REJECTED: package shipped with deterministic fixes applied, review SECURITY_SUMMARY.md")
		os.Exit(1)
	}
}
