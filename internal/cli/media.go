package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/apresai/summit/internal/avatar"
	"github.com/apresai/summit/internal/persona"
	"github.com/apresai/summit/internal/tts"
)

var cloneVoiceCmd = &cobra.Command{
	Use:   "clone-voice <leader>",
	Short: "Clone a leader's voice from their sample and cache the voice id",
	Args:  cobra.ExactArgs(1),
	RunE:  runCloneVoice,
}

var avatarCmd = &cobra.Command{
	Use:   "avatar <photo>",
	Short: "Create a stylised visitor avatar from a photo",
	Args:  cobra.ExactArgs(1),
	RunE:  runAvatar,
}

var (
	flagForce      bool
	flagAvatarName string
)

func init() {
	cloneVoiceCmd.Flags().BoolVar(&flagForce, "force", false, "Clone again even if a voice id is cached")
	avatarCmd.Flags().StringVarP(&flagAvatarName, "name", "n", "guest", "Visitor name used for the file name")
	rootCmd.AddCommand(cloneVoiceCmd)
	rootCmd.AddCommand(avatarCmd)
}

func runCloneVoice(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	if cfg.ElevenLabsAPIKey == "" {
		return fmt.Errorf("ELEVENLABS_API_KEY is required to clone voices")
	}
	reg, err := persona.LoadDir(cfg.LeadersDir)
	if err != nil {
		return err
	}
	p, ok := reg.Get(args[0])
	if !ok {
		return fmt.Errorf("unknown leader %q", args[0])
	}
	if p.VoiceSample == "" {
		return fmt.Errorf("leader %q has no voice_sample", p.ID)
	}

	cache, err := tts.LoadVoiceCache(cfg.VoiceCache)
	if err != nil {
		return err
	}
	if id, ok := cache.Get(p.ID); ok && !flagForce {
		fmt.Printf("%s already has voice %s (use --force to clone again)\n", p.Name, id)
		return nil
	}

	id, err := tts.NewElevenLabs(cfg.ElevenLabsAPIKey).CloneVoice(ctx, p.Name,
		fmt.Sprintf("Cloned voice of %s, %s", p.Name, p.Role), p.VoiceSample)
	if err != nil {
		return err
	}
	if err := cache.Put(p.ID, id); err != nil {
		return fmt.Errorf("save voice cache: %w", err)
	}
	logger.Info("Voice cloned", "persona", p.ID, "voice_id", id)
	fmt.Printf("%s %s -> %s\n", p.Emoji, p.Name, id)
	return nil
}

func runAvatar(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	photo, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read photo: %w", err)
	}

	var model avatar.ImageModel
	if g, err := avatar.NewGemini(ctx, cfg.GeminiKey()); err != nil {
		logger.Warn("Image model unavailable, using local filter", "error", err)
	} else if g != nil {
		model = g
	}

	img, method, err := avatar.NewGenerator(model, logger).Generate(ctx, photo)
	if err != nil {
		return err
	}
	path, err := avatar.NewLocalStore(cfg.MediaDir).Save(ctx, flagAvatarName, img)
	if err != nil {
		return err
	}
	fmt.Printf("Avatar saved to %s (%s)\n", path, method)
	return nil
}
