package kiosk

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/apresai/summit/internal/archive"
	"github.com/apresai/summit/internal/avatar"
	"github.com/apresai/summit/internal/config"
	"github.com/apresai/summit/internal/lipsync"
	"github.com/apresai/summit/internal/live"
	"github.com/apresai/summit/internal/persona"
	"github.com/apresai/summit/internal/reply"
	"github.com/apresai/summit/internal/session"
	"github.com/apresai/summit/internal/tts"
)

// Runtime is a fully wired kiosk plus the concrete clients the CLI needs
// directly.
type Runtime struct {
	Service     *Service
	Chain       *tts.Chain
	ElevenLabs  *tts.ElevenLabs
	Leaderboard *archive.Store // nil when no archive table is configured
	Provider    string
}

// Build wires every collaborator from cfg. Optional media backends without
// credentials are left out rather than failing the build.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	reg, err := persona.LoadDir(cfg.LeadersDir)
	if err != nil {
		return nil, err
	}
	if reg.Len() == 0 {
		logger.Warn("No leader files found", "dir", cfg.LeadersDir)
	}

	gen, err := reply.New(ctx, reply.OptionsFromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("create chat backend: %w", err)
	}

	chain, el, err := tts.NewChainFromConfig(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create voice chain: %w", err)
	}

	d := Deps{
		Registry:      reg,
		Sessions:      session.NewManager(cfg.SessionTTL),
		Replies:       reply.NewOrchestrator(gen, logger),
		Voice:         chain,
		Venue:         persona.Venue{Organization: cfg.Organization, Event: cfg.Event},
		XPPerQuestion: cfg.XPPerQuestion,
		Logger:        logger,
	}
	rt := &Runtime{Chain: chain, ElevenLabs: el, Provider: gen.Name()}

	if cfg.Lipsync {
		d.Lipsync = lipsync.New(cfg.DIDAPIKey, logger)
	}

	lg, err := live.NewGemini(ctx, cfg.GeminiKey())
	if err != nil {
		logger.Warn("Live voice unavailable", "error", err)
	}
	if lg != nil {
		d.Live = live.NewResponder(lg, cfg.LiveTimeout, cfg.LiveVoice, logger)
		d.Transcriber = lg
	}

	ag, err := avatar.NewGemini(ctx, cfg.GeminiKey())
	if err != nil {
		logger.Warn("Avatar image model unavailable, using local filter", "error", err)
	}
	var model avatar.ImageModel
	if ag != nil {
		model = ag
	}
	d.Avatars = avatar.NewGenerator(model, logger)
	d.AvatarStore = avatar.NewLocalStore(cfg.MediaDir)

	if cfg.ArchiveTable != "" || cfg.MediaBucket != "" {
		awsCfg, err := config.AWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		if cfg.ArchiveTable != "" {
			rt.Leaderboard = archive.NewStoreFromConfig(awsCfg, cfg.ArchiveTable)
			d.Archive = rt.Leaderboard
		}
		if cfg.MediaBucket != "" {
			d.AvatarStore = avatar.NewS3Store(s3.NewFromConfig(awsCfg), cfg.MediaBucket, cfg.MediaBaseURL)
		}
	}

	rt.Service = New(d)
	logger.Info("Kiosk ready",
		"leaders", reg.Len(),
		"chat", gen.Name(),
		"lipsync", d.Lipsync != nil && d.Lipsync.Available(),
		"live", d.Live.Available(),
		"archive", d.Archive != nil,
	)
	return rt, nil
}
