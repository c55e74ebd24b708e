package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apresai/summit/internal/config"
	"github.com/apresai/summit/internal/observability"
	"github.com/apresai/summit/internal/persona"
	"github.com/apresai/summit/internal/tts"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:          "summit",
	Short:        "Leadership persona kiosk: chat with leaders, earn XP and badges",
	SilenceUsage: true,
	RunE:         runChat,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("summit %s\n", Version)
	},
}

var leadersCmd = &cobra.Command{
	Use:   "leaders",
	Short: "List the leader personas and validate their files",
	RunE:  runLeaders,
}

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List available voices for every TTS provider",
	RunE:  runVoices,
}

var (
	flagVerbose    bool
	flagLeadersDir string
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagLeadersDir, "leaders", "", "Leader persona directory (overrides SUMMIT_LEADERS_DIR)")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(leadersCmd)
	rootCmd.AddCommand(voicesCmd)
}

// Execute runs the root command; ctx is cancelled on interrupt.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// bootstrap loads and validates configuration and builds the logger. Logs go
// to stderr so they never interleave with chat output on stdout.
func bootstrap(ctx context.Context) (*config.Config, *slog.Logger, error) {
	level := "info"
	if flagVerbose {
		level = "debug"
	}
	logger := observability.InitLogger(level)

	cfg, err := config.Bootstrap(ctx, logger)
	if err != nil {
		return nil, nil, err
	}
	if flagLeadersDir != "" {
		cfg.LeadersDir = flagLeadersDir
	}
	if !flagVerbose {
		logger = observability.InitLogger(cfg.LogLevel)
	}
	if missing := cfg.MissingKeys(); len(missing) > 0 {
		logger.Warn("Some providers have no credentials and will be skipped", "missing", missing)
	}
	return cfg, logger, nil
}

func loadLeaders() (*persona.Registry, error) {
	dir := flagLeadersDir
	if dir == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		dir = cfg.LeadersDir
	}
	return persona.LoadDir(dir)
}

func runLeaders(cmd *cobra.Command, args []string) error {
	reg, err := loadLeaders()
	if err != nil {
		return err
	}
	if reg.Len() == 0 {
		return fmt.Errorf("no leader files found")
	}

	fmt.Printf("\n  %-10s %-22s %-30s %s\n", "ID", "NAME", "ROLE", "VOICE")
	fmt.Printf("  %s\n", strings.Repeat("─", 76))
	for _, p := range reg.All() {
		voice := p.VoiceID
		switch {
		case p.ElevenVoiceID != "":
			voice = "cloned (provisioned)"
		case p.VoiceSample != "":
			voice += " + sample"
		}
		fmt.Printf("  %-10s %-22s %-30s %s\n", p.ID, p.Name, p.Role, voice)
	}
	fmt.Println()
	return nil
}

func runVoices(cmd *cobra.Command, args []string) error {
	labels := map[string]string{
		"elevenlabs": "ELEVENLABS (cloned tier)",
		"google":     "GOOGLE CLOUD TTS",
		"polly":      "AMAZON POLLY",
		"gemini":     "GEMINI (AI Studio)",
		"vertex":     "GEMINI (Vertex AI)",
	}

	fmt.Println("\nAvailable voices:")
	for _, name := range tts.Providers {
		voices, err := tts.AvailableVoices(name)
		if err != nil {
			return err
		}

		fmt.Printf("\n  %s\n", labels[name])
		fmt.Printf("  %s\n", strings.Repeat("─", 50))
		fmt.Printf("  %-28s %-12s %-8s %s\n", "ID", "NAME", "GENDER", "DESCRIPTION")
		for _, v := range voices {
			fb := ""
			if v.Fallback {
				fb = " (fallback)"
			}
			fmt.Printf("  %-28s %-12s %-8s %s%s\n", v.ID, v.Name, v.Gender, v.Description, fb)
		}
	}
	fmt.Println()
	return nil
}
