package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiaot623/dailymission/internal/adapter/blob"
	"github.com/xiaot623/dailymission/internal/adapter/generator"
	"github.com/xiaot623/dailymission/internal/assignment"
	"github.com/xiaot623/dailymission/internal/config"
	"github.com/xiaot623/dailymission/internal/domain"
	"github.com/xiaot623/dailymission/internal/feedback"
	"github.com/xiaot623/dailymission/internal/flow"
	"github.com/xiaot623/dailymission/internal/logger"
	"github.com/xiaot623/dailymission/internal/policy"
	"github.com/xiaot623/dailymission/internal/repository"
	"github.com/xiaot623/dailymission/internal/safety"
	"github.com/xiaot623/dailymission/internal/service"
	handler "github.com/xiaot623/dailymission/internal/transport/http"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "dailymission",
		Short:         "Daily mission service: assignment, record flow and safety screening",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(classifyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogMode,
		logger.WithRedaction(cfg.LogRedaction),
		logger.WithHashSalt(cfg.LogHashSalt),
	)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting daily mission service",
		"http_port", cfg.HTTPPort,
		"timezone", cfg.Timezone,
		"feedback_mode", cfg.FeedbackMode,
		"blob_backend", cfg.BlobBackend,
	)

	ctx := context.Background()

	// Initialize store
	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer db.Close()

	if cfg.SeedDefaultContent {
		f, err := repository.DemoSeed()
		if err != nil {
			return err
		}
		res, err := repository.Seed(ctx, db, f)
		if err != nil {
			return fmt.Errorf("seed demo content: %w", err)
		}
		log.Info("demo content seeded", "missions", res.Missions, "questions", res.Questions)
	}

	// Safety rules
	rules, err := safety.LoadRules(cfg.SafetyRulesPath)
	if err != nil {
		return err
	}
	classifier := safety.NewClassifier(rules)

	// Feedback generator
	supportive := func(text string) bool {
		return classifier.Classify(text).Level == domain.CrisisLevelElevated
	}
	gen, err := generator.New(ctx, cfg, supportive, log)
	if err != nil {
		return fmt.Errorf("init feedback generator: %w", err)
	}

	// Photo storage
	photos, err := blob.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init photo storage: %w", err)
	}
	if c, ok := photos.(io.Closer); ok {
		defer c.Close()
	}
	photoDir := ""
	if local, ok := photos.(*blob.LocalStore); ok {
		photoDir = local.Dir()
	}

	// Initialize policy engine
	policyContent, err := policy.LoadPolicy(cfg.FlowPolicyPath)
	if err != nil {
		return err
	}
	guard, err := policy.NewEngine(ctx, policyContent)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	// Initialize service
	engine := assignment.NewEngine(db, assignment.Policy{
		FirstType:            domain.MissionTypeObserve,
		RecentCategoryWindow: cfg.CategoryWindow,
	}, log)
	deps := &flow.Deps{
		Assigner: engine,
		Store:    db,
		Uploader: photos,
		Feedback: feedback.NewOrchestrator(classifier, gen, db, log),
		Guard:    guard,
		Log:      log,
	}
	svc := service.New(db, engine, classifier, deps, loc, log)

	server := handler.NewServer(svc, log, photoDir)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", "error", err)
		}
	}()
	log.Info("http api started", "port", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("failed to shutdown server gracefully", "error", err)
	}

	log.Info("stopped")
	return nil
}

func seedCmd() *cobra.Command {
	var file string
	var demo bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load missions and reflection questions into the catalog",
		Long: `Load a validated content document into the catalog. Entries are
upserted by their catalog key, so the command can be rerun.

Examples:
  dailymission seed --file validated_content.json
  dailymission seed --demo`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" && !demo {
				return fmt.Errorf("specify --file or --demo")
			}
			var (
				f   *repository.SeedFile
				err error
			)
			if demo {
				f, err = repository.DemoSeed()
			} else {
				f, err = repository.LoadSeedFile(file)
			}
			if err != nil {
				return err
			}

			cfg := config.Load()
			db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}
			defer db.Close()

			res, err := repository.Seed(cmd.Context(), db, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d missions and %d questions\n", res.Missions, res.Questions)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "validated content JSON file")
	cmd.Flags().BoolVar(&demo, "demo", false, "load the built-in demo content")

	return cmd
}

func classifyCmd() *cobra.Command {
	var rulesPath string

	cmd := &cobra.Command{
		Use:   "classify [text]",
		Short: "Run the crisis classifier on text (reads stdin when no argument is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := ""
			if len(args) == 1 {
				text = args[0]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = strings.TrimSpace(string(data))
			}

			rules, err := safety.LoadRules(rulesPath)
			if err != nil {
				return err
			}
			res := safety.NewClassifier(rules).Classify(text)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVar(&rulesPath, "rules", os.Getenv("SAFETY_RULES_PATH"), "safety rules YAML (default: built-in rules)")

	return cmd
}
