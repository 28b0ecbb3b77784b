// Package cli implements the oasis command line on top of the driving ports.
//
// Services are injected: cmd/oasis supplies a Wiring that the root command
// uses to resolve settings and build the engine on demand. Tests assign the
// package service variables directly.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driven"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driving"
	"github.com/custodia-labs/oasis-cli/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=v1.2.3".
var version = "dev"

// annotationEngine marks commands that need the engine built before they run.
const annotationEngine = "oasis/engine"

// DatasetReloader reloads the facility dataset into the store and index.
type DatasetReloader interface {
	Path() string
	Reload(ctx context.Context) (int, error)
}

// Services is the engine as seen by the command line.
type Services struct {
	Answer    driving.AnswerService
	Sessions  driving.SessionService
	Query     driving.QueryService
	Analysis  driving.AnalysisService
	Planning  driving.PlanningService
	Telemetry driving.TelemetryService
	Index     driving.IndexService

	// Dataset is nil when no dataset file is configured.
	Dataset DatasetReloader

	// Watch blocks, reloading the dataset on change. Nil without a dataset.
	Watch func(ctx context.Context) error

	// AutoWatch asks long-running commands to watch without --watch.
	AutoWatch bool

	// LLMModel names the generation model, empty when none is configured.
	LLMModel string

	// ServerAddr is the configured HTTP listen address.
	ServerAddr string

	// Close releases stores and background writers.
	Close func()
}

// Wiring builds settings and services for the root command.
type Wiring struct {
	// Settings opens the settings service for the config file at path.
	// An empty path means the default location; noConfig selects an
	// in-memory store.
	Settings func(path string, noConfig bool) (driving.SettingsService, error)

	// Services builds the engine from resolved settings.
	Services func(ctx context.Context, settings *domain.AppSettings) (*Services, error)

	// Validator checks provider connectivity for "settings check".
	Validator driven.AIConfigValidator
}

var wiring *Wiring

// Services in use; populated by the root command or by tests.
var (
	settingsService  driving.SettingsService
	answerService    driving.AnswerService
	sessionService   driving.SessionService
	queryService     driving.QueryService
	analysisService  driving.AnalysisService
	planningService  driving.PlanningService
	telemetryService driving.TelemetryService
	indexService     driving.IndexService
	datasetReloader  DatasetReloader
	watchDataset     func(ctx context.Context) error
	autoWatch        bool
	llmModel         string
	serverAddr       string
	closeServices    func()
)

// Persistent flags.
var (
	configPath string
	dataPath   string
	noConfig   bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "oasis",
	Short: "Facility intelligence for healthcare planners",
	Long: `Oasis answers questions about a corpus of healthcare facilities.

It retrieves facilities semantically, translates questions into structured
queries, scores regions for medical desert severity and drafts resource
allocation plans. Every pipeline run is recorded.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default ~/.oasis/config.toml)")
	flags.StringVar(&dataPath, "data", "", "facility dataset file (JSON or YAML)")
	flags.BoolVar(&noConfig, "no-config", false, "ignore the config file and use defaults")
	flags.BoolVarP(&verbose, "verbose", "v", false, "print pipeline trace to stderr")
}

// SetWiring installs the builders used to resolve settings and services.
func SetWiring(w *Wiring) {
	wiring = w
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer shutdown()
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if settingsService == nil && wiring != nil && wiring.Settings != nil {
		svc, err := wiring.Settings(configPath, noConfig)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
		settingsService = svc
	}

	if !needsEngine(cmd) || analysisService != nil {
		return nil
	}
	if wiring == nil || wiring.Services == nil || settingsService == nil {
		return errors.New("services not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("resolve settings: %w", err)
	}
	if dataPath != "" {
		settings.Data.FacilitiesPath = dataPath
	}

	svc, err := wiring.Services(cmd.Context(), settings)
	if err != nil {
		return err
	}
	useServices(svc)
	return nil
}

func needsEngine(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if _, ok := c.Annotations[annotationEngine]; ok {
			return true
		}
	}
	return false
}

func engineCommand() map[string]string {
	return map[string]string{annotationEngine: "true"}
}

func useServices(s *Services) {
	answerService = s.Answer
	sessionService = s.Sessions
	queryService = s.Query
	analysisService = s.Analysis
	planningService = s.Planning
	telemetryService = s.Telemetry
	indexService = s.Index
	datasetReloader = s.Dataset
	watchDataset = s.Watch
	autoWatch = s.AutoWatch
	llmModel = s.LLMModel
	serverAddr = s.ServerAddr
	closeServices = s.Close
}

func shutdown() {
	if closeServices != nil {
		closeServices()
		closeServices = nil
	}
}

// ensureIndex publishes a first generation when none exists yet. An empty
// facility store is not an error here; retrieval reports it per request.
func ensureIndex(ctx context.Context) error {
	if indexService == nil || indexService.Stats().Generation > 0 {
		return nil
	}
	stats, err := indexService.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	logger.Info("Index ready: %d facilities, %d dims (%s)", stats.Size, stats.Dimensions, stats.Model)
	return nil
}
