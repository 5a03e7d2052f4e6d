package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tailor/internal/applier"
	"tailor/internal/behavior"
	"tailor/internal/config"
	"tailor/internal/deploy"
	"tailor/internal/engine"
	"tailor/internal/gitvc"
	"tailor/internal/logging"
	"tailor/internal/planner"
	"tailor/internal/store"
	"tailor/internal/types"
	"tailor/internal/workflow"
)

var (
	// Global flags
	verbose    bool
	configPath string
	userID     string

	// Logger
	logger *zap.Logger

	cfg *config.UserConfig
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tailor",
	Short: "tailor - per-user web UI personalization and deployment",
	Long: `tailor personalizes a web frontend per user: it reads the user's
behavior signals, asks a planning model for structured edit intents,
merges them with a fast-apply model, and commits real changes. The
deploy workflow puts each user's variant on its own branch, deployment,
and routing rule.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if configPath == "" {
			configPath = config.DefaultUserConfigPath()
		}
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := logging.Initialize("."); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// runCmd executes one personalization run against the configured tree
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the personalization pipeline for one user",
	Long: `Runs the full per-file pipeline: behavior context, change planning,
fast-apply merge, atomic writes, and a commit scoped to the app
directory. "No changes needed" is a success, not an error.

Example:
  tailor run --user u_123`,
	RunE: runPersonalization,
}

// deployCmd runs the pipeline and then the branch deployment workflow
var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Personalize and deploy a per-user branch",
	Long: `Runs the personalization pipeline, then the branch deployment
workflow: base commit, user branch, branch commit, deployment, and a
cookie-keyed routing rule. If the deployment provider fails, the
committed tree from the pipeline remains the non-branched fallback.

Example:
  tailor deploy --user u_123`,
	RunE: runDeploy,
}

var maxAge time.Duration

// cleanupCmd removes a user's deployment, branch, rule, and record
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove a user's branch deployment",
	Long: `Deletes the routing rule, deployment, branch, and registry entry
for a user. Safe to repeat: a missing record is a no-op success.

Example:
  tailor cleanup --user u_123 --max-age 24h`,
	RunE: runCleanup,
}

// statusCmd prints the registry record for one user
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a user's deployment record",
	RunE:  runStatus,
}

// deploymentsCmd lists all registry records
var deploymentsCmd = &cobra.Command{
	Use:   "deployments",
	Short: "List all recorded branch deployments",
	RunE:  runDeployments,
}

// behaviorCmd prints the parsed behavior summary for debugging
var behaviorCmd = &cobra.Command{
	Use:   "behavior",
	Short: "Show the behavior summary the planner would see",
	RunE:  runBehavior,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default .tailor/config.json)")

	for _, cmd := range []*cobra.Command{runCmd, deployCmd, cleanupCmd, statusCmd, behaviorCmd} {
		cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID")
		_ = cmd.MarkFlagRequired("user")
	}
	cleanupCmd.Flags().DurationVar(&maxAge, "max-age", 0, "Only clean deployments older than this (0 = always)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(deploymentsCmd)
	rootCmd.AddCommand(behaviorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func buildEngine(ctx context.Context) (*engine.Engine, error) {
	llm, err := planner.NewClientFromConfig(ctx, cfg.Planner)
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	morph := applier.NewMorphClientWithConfig(applier.MorphConfig{
		APIKey:  cfg.Applier.APIKey,
		BaseURL: cfg.Applier.BaseURL,
		Model:   cfg.Applier.Model,
		Timeout: cfg.Applier.Timeout(),
	})
	return engine.New(engine.Config{
		Planner:       planner.New(llm),
		Applier:       applier.New(morph),
		Behavior:      buildBehaviorSource(),
		VC:            gitvc.New(cfg.Workspace.FrontendRoot, cfg.Engine.GitTimeout()),
		Workspace:     *cfg.Workspace,
		MaxConcurrent: cfg.Engine.MaxConcurrent,
	}), nil
}

func buildBehaviorSource() types.BehaviorSource {
	var opts []behavior.SourceOption
	if cfg.Behavior.SampleFile != "" {
		opts = append(opts, behavior.WithSampleFile(cfg.Behavior.SampleFile))
	}
	var client *behavior.Client
	if cfg.Behavior.APIKey != "" {
		client = behavior.NewClientWithConfig(behavior.ClientConfig{
			APIKey:    cfg.Behavior.APIKey,
			BaseURL:   cfg.Behavior.BaseURL,
			ProjectID: cfg.Behavior.ProjectID,
			Timeout:   cfg.Behavior.Timeout(),
		})
	}
	return behavior.NewSource(client, opts...)
}

func buildWorkflow(registry types.DeploymentRegistry) *workflow.Workflow {
	client := deploy.NewWithConfig(deploy.Config{
		APIKey:  cfg.Deploy.APIKey,
		BaseURL: cfg.Deploy.BaseURL,
		Domain:  cfg.Deploy.Domain,
		RuleTTL: cfg.Deploy.RoutingTTL(),
		Timeout: cfg.Deploy.Timeout(),
	})
	return workflow.New(workflow.Config{
		VC:          gitvc.New(cfg.Workspace.FrontendRoot, cfg.Engine.GitTimeout()),
		Deployer:    client,
		Router:      client,
		Registry:    registry,
		FallbackURL: "https://" + cfg.Deploy.Domain,
		RuleTTL:     cfg.Deploy.RoutingTTL(),
	})
}

func openRegistry() (types.DeploymentRegistry, error) {
	return store.NewFromConfig(*cfg.Registry)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runPersonalization(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	eng, err := buildEngine(ctx)
	if err != nil {
		return err
	}

	logger.Info("starting personalization run", zap.String("user", userID))
	result, err := eng.Run(ctx, userID, nil)
	if err != nil {
		return err
	}

	if result.CommitHash == "" {
		fmt.Printf("No changes needed for %s (cohort=%s)\n", userID, result.Cohort)
	} else {
		fmt.Printf("Personalized %d file(s) for %s (cohort=%s, commit=%s)\n",
			len(result.ModifiedFiles), userID, result.Cohort, result.CommitHash)
	}
	return printJSON(result)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	eng, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	registry, err := openRegistry()
	if err != nil {
		return err
	}
	defer registry.Close()
	wf := buildWorkflow(registry)

	logger.Info("starting branch deployment", zap.String("user", userID))
	runResult, err := eng.Run(ctx, userID, nil)
	if err != nil {
		return err
	}

	data := workflow.PersonalizationData{Cohort: runResult.Cohort}
	if len(runResult.ModifiedFiles) > 0 {
		data.UserFiles = make(map[string]string, len(runResult.ModifiedFiles))
		for _, rel := range runResult.ModifiedFiles {
			content, err := os.ReadFile(filepath.Join(cfg.Workspace.FrontendRoot, rel))
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", rel, err)
			}
			data.UserFiles[rel] = string(content)
		}
	}

	result, err := wf.HandlePersonalization(ctx, userID, data)
	var de *types.DeployError
	if errors.As(err, &de) {
		// The pipeline already committed to the working branch; that tree
		// is the non-branched fallback experience.
		logger.Warn("deployment provider failed, serving non-branched variant",
			zap.String("user", userID), zap.Error(de))
		fmt.Printf("Deployment failed; personalized commit %s remains on the working branch\n", runResult.CommitHash)
		return printJSON(runResult)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Deployed %s at %s (status=%s)\n", result.Branch, result.URL, result.Status)
	return printJSON(result)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	registry, err := openRegistry()
	if err != nil {
		return err
	}
	defer registry.Close()

	if err := buildWorkflow(registry).Cleanup(ctx, userID, maxAge); err != nil {
		return err
	}
	fmt.Printf("Cleanup complete for %s\n", userID)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	registry, err := openRegistry()
	if err != nil {
		return err
	}
	defer registry.Close()

	record, err := buildWorkflow(registry).Status(userID)
	if errors.Is(err, types.ErrNotFound) {
		fmt.Printf("No deployment recorded for %s\n", userID)
		return nil
	}
	if err != nil {
		return err
	}
	return printJSON(record)
}

func runDeployments(cmd *cobra.Command, args []string) error {
	registry, err := openRegistry()
	if err != nil {
		return err
	}
	defer registry.Close()

	all, err := buildWorkflow(registry).List()
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Println("No deployments recorded")
		return nil
	}
	return printJSON(all)
}

func runBehavior(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	summary, err := buildBehaviorSource().Summary(ctx, userID)
	if err != nil {
		return err
	}
	if summary.IsEmpty() {
		fmt.Printf("No behavior data for %s\n", userID)
	}
	return printJSON(summary)
}
