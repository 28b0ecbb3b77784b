package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure AI providers and other options.

Settings live in ~/.oasis/config.toml. OPENAI_API_KEY, ANTHROPIC_API_KEY and
OLLAMA_HOST fill in values the file leaves empty.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long: `Configure the embedding provider used for semantic retrieval.

Without --provider the command prompts interactively.`,
	RunE: runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long: `Configure the language model used for answers, query translation and
planning.

Without --provider the command prompts interactively.`,
	RunE: runSettingsLLM,
}

var settingsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Test connectivity to the configured providers",
	RunE:  runSettingsCheck,
}

func init() {
	for _, c := range []*cobra.Command{settingsEmbeddingCmd, settingsLLMCmd} {
		c.Flags().String("provider", "", "provider name")
		c.Flags().String("model", "", "model name (default per provider)")
		c.Flags().String("api-key", "", "API key for cloud providers")
	}
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	settingsCmd.AddCommand(settingsCheckCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	if settings.Embedding.Provider == domain.AIProviderHashing {
		cmd.Printf("  Dimensions: %d\n", settings.Embedding.Dimensions)
	}
	printEndpoint(cmd, settings.Embedding.Provider, settings.Embedding.BaseURL, settings.Embedding.APIKey)
	cmd.Printf("  Status: %s\n", configuredLabel(settings.Embedding.IsConfigured()))
	cmd.Println()

	cmd.Println("[LLM]")
	if settings.LLM.Provider == "" {
		cmd.Println("  Provider: (none; answers fall back to retrieved facilities)")
	} else {
		cmd.Printf("  Provider: %s\n", settings.LLM.Provider.Description())
		cmd.Printf("  Model: %s\n", settings.LLM.Model)
		printEndpoint(cmd, settings.LLM.Provider, settings.LLM.BaseURL, settings.LLM.APIKey)
		if settings.LLM.RequestsPerMinute > 0 {
			cmd.Printf("  Rate limit: %d/min\n", settings.LLM.RequestsPerMinute)
		}
		cmd.Printf("  Status: %s\n", configuredLabel(settings.LLM.IsConfigured()))
	}
	cmd.Println()

	cmd.Println("[Calls]")
	cmd.Printf("  Timeout: %s, retries: %d, backoff: %s\n",
		settings.Calls.Timeout, settings.Calls.Retries, settings.Calls.Backoff)
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Backend: %s\n", settings.Storage.Backend)
	if settings.Storage.Path != "" {
		cmd.Printf("  Path: %s\n", settings.Storage.Path)
	}
	if settings.Data.FacilitiesPath != "" {
		cmd.Printf("  Dataset: %s (watch: %t)\n", settings.Data.FacilitiesPath, settings.Data.Watch)
	}
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'oasis settings embedding' or 'oasis settings llm' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}
	return nil
}

func printEndpoint(cmd *cobra.Command, provider domain.AIProvider, baseURL, apiKey string) {
	if baseURL != "" {
		cmd.Printf("  Base URL: %s\n", baseURL)
	}
	if provider.RequiresAPIKey() {
		if apiKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(apiKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
}

func configuredLabel(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	choice, err := providerChoice(cmd, "Embedding", domain.AllEmbeddingProviders(), domain.DefaultEmbeddingModels())
	if err != nil {
		return err
	}
	if err := settingsService.SetEmbeddingProvider(choice.provider, choice.model, choice.apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}
	cmd.Printf("Embedding provider configured: %s (%s)\n", choice.provider.Description(), choice.model)
	cmd.Println("Run 'oasis index rebuild' to re-embed the facilities.")
	return nil
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	choice, err := providerChoice(cmd, "LLM", domain.AllLLMProviders(), domain.DefaultLLMModels())
	if err != nil {
		return err
	}
	if err := settingsService.SetLLMProvider(choice.provider, choice.model, choice.apiKey); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}
	cmd.Printf("LLM provider configured: %s (%s)\n", choice.provider.Description(), choice.model)
	return nil
}

func runSettingsCheck(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	if wiring == nil || wiring.Validator == nil {
		return errors.New("provider validator not configured")
	}
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	ctx := cmd.Context()
	var failed bool

	cmd.Printf("Embedding (%s)... ", settings.Embedding.Provider)
	if err := wiring.Validator.ValidateEmbedding(ctx, &settings.Embedding); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		failed = true
	} else {
		cmd.Println("OK")
	}

	if settings.LLM.Provider == "" {
		cmd.Println("LLM... not configured")
	} else {
		cmd.Printf("LLM (%s)... ", settings.LLM.Provider)
		if err := wiring.Validator.ValidateLLM(ctx, &settings.LLM); err != nil {
			cmd.Printf("FAILED: %v\n", err)
			failed = true
		} else {
			cmd.Println("OK")
		}
	}

	if failed {
		return errors.New("provider check failed")
	}
	return nil
}

type providerSelection struct {
	provider domain.AIProvider
	model    string
	apiKey   string
}

// providerChoice reads the selection from flags, or prompts for it when
// --provider is absent.
func providerChoice(
	cmd *cobra.Command,
	label string,
	providers []domain.AIProvider,
	defaults map[domain.AIProvider]string,
) (providerSelection, error) {
	name, _ := cmd.Flags().GetString("provider")  //nolint:errcheck // flag registered in init
	model, _ := cmd.Flags().GetString("model")    //nolint:errcheck // flag registered in init
	apiKey, _ := cmd.Flags().GetString("api-key") //nolint:errcheck // flag registered in init

	if name != "" {
		p := domain.AIProvider(strings.ToLower(name))
		if !contains(providers, p) {
			return providerSelection{}, fmt.Errorf("%w: %s provider must be one of %v", domain.ErrValidation, label, providers)
		}
		if model == "" {
			model = defaults[p]
		}
		return providerSelection{provider: p, model: model, apiKey: apiKey}, nil
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	cmd.Printf("Select %s Provider\n", label)
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selected := providers[idx-1]

	defaultModel := defaults[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model = readLine(reader)
	if model == "" {
		model = defaultModel
	}

	if selected.RequiresAPIKey() {
		cmd.Print("Enter API key (blank to use the environment): ")
		apiKey = readPassword(cmd.InOrStdin(), reader)
		cmd.Println()
	}
	return providerSelection{provider: selected, model: model, apiKey: apiKey}, nil
}

func contains(providers []domain.AIProvider, p domain.AIProvider) bool {
	for _, candidate := range providers {
		if candidate == p {
			return true
		}
	}
	return false
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo when in is a terminal.
func readPassword(in io.Reader, fallback *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(fallback)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
