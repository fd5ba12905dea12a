// transdoc — AI translation for office documents that keeps formatting intact.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/transdoc-io/transdoc/config"
	"github.com/transdoc-io/transdoc/document"
	"github.com/transdoc-io/transdoc/extract"
	"github.com/transdoc-io/transdoc/i18n"
	"github.com/transdoc-io/transdoc/langmeta"
	"github.com/transdoc-io/transdoc/policy"
	"github.com/transdoc-io/transdoc/report"
	"github.com/transdoc-io/transdoc/runner"
	"github.com/transdoc-io/transdoc/segment"
	"github.com/transdoc-io/transdoc/settings"
	"github.com/transdoc-io/transdoc/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "transdoc",
		Short: "Translate Word and PowerPoint documents with AI",
		Long: `transdoc — translate .docx and .pptx documents while preserving
all formatting, styles, images, and layout byte for byte.

Text is extracted run by run, batched under a character budget, translated
through an AI provider, and spliced back into an exact copy of the
original file.

Commands:
  translate   Translate a document into a target language
  inspect     Show the translatable text a document contains
  auth        Manage provider API keys
  version     Show version information

Providers:
  openai   OpenAI chat API (or any endpoint the official client accepts)
  compat   OpenAI-compatible endpoint: Ollama, LM Studio, vLLM, gateways
  echo     Copies text through unchanged (pipeline dry run)`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newTranslateCmd(),
		newInspectCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("transdoc version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var (
		targetLang     string
		sourceLang     string
		output         string
		providerID     string
		model          string
		baseURL        string
		apiKey         string
		proxy          string
		budget         int
		retries        uint
		maxConsecutive int
		maxTotal       int
		force          bool
		nonInteractive bool
		verbose        bool
		debugProvider  bool
	)

	cmd := &cobra.Command{
		Use:   "translate INPUT",
		Short: "Translate a document into a target language",
		Long: `Translate a .docx or .pptx document into a target language.

The output is written next to the input as "name_lang.ext" unless
--output is given. The original file is never modified. A run that is
interrupted or halted by repeated provider errors still saves every
translation received so far; untranslated passages keep the source text.

Examples:
  transdoc translate report.docx -t de
  transdoc translate slides.pptx -t ja -s en -o slides_japanese.pptx
  transdoc translate report.docx -t fr -p compat --base-url http://localhost:11434/v1 -m llama3.2
  transdoc translate report.docx -t uk --non-interactive -v`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]

			cfg, err := config.LoadNear(input)
			if err != nil {
				return err
			}
			cfg.ApplyEnv()
			if !cmd.Flags().Changed("provider") && cfg.Provider != "" {
				providerID = cfg.Provider
			}
			if !cmd.Flags().Changed("model") && cfg.Model != "" {
				model = cfg.Model
			}
			if !cmd.Flags().Changed("base-url") && cfg.BaseURL != "" {
				baseURL = cfg.BaseURL
			}
			if !cmd.Flags().Changed("proxy") && cfg.Proxy != "" {
				proxy = cfg.Proxy
			}
			if !cmd.Flags().Changed("budget") && cfg.Budget > 0 {
				budget = cfg.Budget
			}
			if !cmd.Flags().Changed("max-consecutive") && cfg.MaxConsecutive > 0 {
				maxConsecutive = cfg.MaxConsecutive
			}
			if !cmd.Flags().Changed("max-total") && cfg.MaxTotal > 0 {
				maxTotal = cfg.MaxTotal
			}
			if targetLang == "" {
				targetLang = cfg.TargetLang
			}
			if sourceLang == "" {
				sourceLang = cfg.SourceLang
			}
			if targetLang == "" {
				return fmt.Errorf("no target language: use --to or set target_lang in %s", config.FileName)
			}
			if os.Getenv("TRANSDOC_DEBUG") != "" {
				debugProvider = true
			}
			if !langmeta.Known(targetLang) {
				logWarning("Unrecognized language code %q; passing it to the provider as-is", targetLang)
			}

			provider, err := buildProvider(providerID, model, baseURL, apiKey, proxy, retries, debugProvider, verbose)
			if err != nil {
				return err
			}

			var decider policy.Decider
			if nonInteractive || !stdinIsTerminal() {
				decider = &policy.AutoDecider{
					OnDecision: func(d policy.Decision, rec policy.ErrorRecord) {
						if d == policy.Abort {
							logError("Error threshold hit again ([%s] %s); halting", rec.Category, rec.Message)
						} else {
							logWarning("Error threshold hit ([%s] %s); continuing without a terminal", rec.Category, rec.Message)
						}
					},
				}
			} else {
				decider = &policy.PromptDecider{In: os.Stdin, Out: os.Stderr}
			}

			// Graceful cancellation: first interrupt saves progress.
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt)
			go func() {
				<-sigCh
				logWarning(i18n.T("Canceled; saving what was translated so far"))
				cancel()
			}()

			logInfo(i18n.T("Translating %s to %s..."), input, langmeta.Resolve(targetLang).Native)

			opts := runner.Options{
				Input:      input,
				Output:     output,
				SourceLang: sourceLang,
				TargetLang: targetLang,
				Provider:   provider,
				Budget:     budget,
				Thresholds: policy.Thresholds{Consecutive: maxConsecutive, Total: maxTotal},
				Decider:    decider,
				Force:      force,
				OnLog: func(format string, args ...any) {
					if verbose {
						logInfo(format, args...)
					}
				},
				OnError: logWarning,
				OnProgress: func(done, total int) {
					logInfo("Batch %d/%d done", done, total)
				},
			}

			summary, err := runner.Run(ctx, opts)
			if err != nil {
				return err
			}

			report.Render(os.Stderr, *summary, verbose)
			if report.ExitCode(*summary) != 0 {
				logError(i18n.T("Translation halted; partial results were saved"))
				os.Exit(2)
			}
			if summary.Retained > 0 {
				logWarning(i18n.T("Saved %s with %d untranslated passages"), summary.Output, summary.Retained)
			} else {
				logSuccess(i18n.T("Saved %s"), summary.Output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetLang, "to", "t", "", "Target language code (required)")
	cmd.Flags().StringVarP(&sourceLang, "from", "s", "", "Source language code (default: auto-detect)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default: INPUT_lang.ext)")
	cmd.Flags().StringVarP(&providerID, "provider", "p", "openai", "Provider: openai, compat, echo")
	cmd.Flags().StringVarP(&model, "model", "m", "gpt-4o-mini", "Model identifier")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Override the provider endpoint URL")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (overrides env and stored credentials)")
	cmd.Flags().StringVar(&proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	cmd.Flags().IntVarP(&budget, "budget", "b", runner.DefaultBudget, "Per-batch character budget")
	cmd.Flags().UintVar(&retries, "retries", 3, "Retries per batch after the first attempt")
	cmd.Flags().IntVar(&maxConsecutive, "max-consecutive", 3, "Consecutive failed batches before the error prompt")
	cmd.Flags().IntVar(&maxTotal, "max-total", 10, "Total errors before the error prompt")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing output file")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Never prompt; continue once, halt on the second threshold")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Detailed progress and error output")
	cmd.Flags().BoolVar(&debugProvider, "debug-provider", false, "Dump provider request/response payloads")

	return cmd
}

// buildProvider assembles the provider chain for a run.
func buildProvider(id, model, baseURL, apiKey, proxy string, retries uint, debug, verbose bool) (translate.Provider, error) {
	var inner translate.Provider
	switch id {
	case "echo":
		inner = translate.Echo{}
	case "compat":
		if baseURL == "" {
			baseURL = settings.GetBaseURL(id)
		}
		if baseURL == "" {
			return nil, fmt.Errorf("provider compat needs --base-url (e.g. http://localhost:11434/v1)")
		}
		if apiKey == "" {
			apiKey = resolveAPIKey(id)
		}
		inner = translate.NewCompat(translate.CompatConfig{
			BaseURL: baseURL,
			APIKey:  apiKey,
			Model:   model,
			Proxy:   proxy,
			Debug:   debug,
		})
	case "openai":
		if apiKey == "" {
			apiKey = resolveAPIKey(id)
		}
		if apiKey == "" && baseURL == "" {
			return nil, fmt.Errorf("no API key: use --api-key, set TRANSDOC_API_KEY, or run 'transdoc auth login'")
		}
		inner = translate.NewOpenAI(translate.OpenAIConfig{
			APIKey:  apiKey,
			BaseURL: baseURL,
			Model:   model,
			Debug:   debug,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q (valid: openai, compat, echo)", id)
	}

	return translate.WithRetry(inner, translate.RetryOptions{
		Retries: retries,
		OnRetry: func(n uint, err error) {
			if verbose {
				logWarning(i18n.T("Retrying batch (retry %d): %v"), n, err)
			}
		},
	}), nil
}

// resolveAPIKey checks the environment, then the credential store.
func resolveAPIKey(providerID string) string {
	if key := config.APIKeyFromEnv(); key != "" {
		return key
	}
	return settings.GetAPIKey(providerID)
}

func stdinIsTerminal() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// ---------------------------------------------------------------------------
// inspect (read-only: list translatable text)
// ---------------------------------------------------------------------------

func newInspectCmd() *cobra.Command {
	var (
		budget   int
		showPlan bool
	)

	cmd := &cobra.Command{
		Use:   "inspect INPUT",
		Short: "Show the translatable text a document contains",
		Long: `List every translatable text unit in a document with its stable ID,
without calling any provider. With --plan, also show how the units would
be segmented and batched under the character budget.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := document.Open(args[0], runner.Openers())
			if err != nil {
				return err
			}
			units, err := extract.Units(tree)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "\n%s%s%s (%s)\n", colorBlue, args[0], colorReset, tree.Kind())
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
			for _, u := range units {
				marker := " "
				if u.Atomic {
					marker = "*"
				}
				fmt.Fprintf(os.Stderr, "  %s %-40s %s\n", marker, u.ID, preview(u.Text, 50))
			}
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
			fmt.Fprintf(os.Stderr, "  %d units (* = multi-run paragraph, translated as one)\n\n", len(units))

			if showPlan {
				batches, stats := segment.Plan(units, budget)
				fmt.Fprintf(os.Stderr, "  Plan at budget %d: %d batches, %d fragments, %d forced cuts\n",
					budget, len(batches), stats.Fragments, stats.ForcedCuts)
				for _, b := range batches {
					fmt.Fprintf(os.Stderr, "    batch %d: %d fragments, %d chars\n",
						b.Index, len(b.Fragments), b.Chars)
				}
				fmt.Fprintln(os.Stderr)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showPlan, "plan", false, "Show the segmentation and batch plan")
	cmd.Flags().IntVarP(&budget, "budget", "b", runner.DefaultBudget, "Per-batch character budget for --plan")

	return cmd
}

func preview(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", "⏎")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

// ---------------------------------------------------------------------------
// auth (manage provider API keys)
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider API keys",
		Long: `Manage stored API keys for translation providers.

Keys are stored in ` + settings.FilePath() + ` with 0600 permissions.
Environment variables (TRANSDOC_API_KEY, OPENAI_API_KEY) take priority
over stored keys.

Examples:
  transdoc auth login --provider openai     Store an OpenAI API key
  transdoc auth login --provider compat     Store a key + endpoint URL
  transdoc auth logout --provider openai    Remove one key
  transdoc auth logout                      Remove all credentials
  transdoc auth list                        Show stored credentials`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthListCmd(),
	)

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API key for a provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider != "openai" && provider != "compat" {
				return fmt.Errorf("unknown provider %q (valid: openai, compat)", provider)
			}

			reader := bufio.NewReader(os.Stdin)
			fmt.Fprintf(os.Stderr, "API key for %s: ", provider)
			key, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("reading key: %w", err)
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return fmt.Errorf("empty API key")
			}

			baseURL := ""
			if provider == "compat" {
				fmt.Fprint(os.Stderr, "Endpoint URL (e.g. http://localhost:11434/v1): ")
				baseURL, err = reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("reading URL: %w", err)
				}
				baseURL = strings.TrimSpace(baseURL)
			}

			if err := settings.SetAPIKey(provider, key, baseURL); err != nil {
				return err
			}
			logSuccess("Stored credentials for %s (%s)", provider, settings.MaskKey(key))
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "openai", "Provider: openai, compat")
	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider == "" {
				if err := settings.RemoveAll(); err != nil {
					return err
				}
				logSuccess("Removed all stored credentials")
				return nil
			}
			if err := settings.Remove(provider); err != nil {
				return err
			}
			logSuccess("Removed credentials for %s", provider)
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Provider to log out (default: all)")
	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show stored credentials",
		Run: func(cmd *cobra.Command, args []string) {
			store := settings.Load()
			if len(store) == 0 {
				logInfo("No stored credentials (%s)", settings.FilePath())
				return
			}
			fmt.Fprintln(os.Stderr)
			for id, info := range store {
				line := fmt.Sprintf("  %-8s %s", id, settings.MaskKey(info.Key))
				if info.BaseURL != "" {
					line += "  " + info.BaseURL
				}
				fmt.Fprintln(os.Stderr, line)
			}
			fmt.Fprintln(os.Stderr)
		},
	}
}
