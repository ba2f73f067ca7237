package main

import (
	"fmt"
	"log/slog"

	"rsoreplay/internal/config"
	"rsoreplay/internal/encode"
	"rsoreplay/internal/render"
	"rsoreplay/internal/replay"
)

func newRenderer(cfg *config.ProjectConfig) (*render.Renderer, error) {
	background, err := render.ParseColor(cfg.Render.Background)
	if err != nil {
		return nil, fmt.Errorf("background: %w", err)
	}
	static, err := render.ParseColor(cfg.Render.StaticColor)
	if err != nil {
		return nil, fmt.Errorf("static color: %w", err)
	}
	palette, err := render.ParsePalette(cfg.Render.Palette)
	if err != nil {
		return nil, err
	}

	opts := render.Options{
		Width:         cfg.Video.Width,
		Height:        cfg.Video.Height,
		GameWidth:     cfg.Game.Width,
		GameHeight:    cfg.Game.Height,
		Background:    background,
		StaticColor:   static,
		Palette:       palette,
		IdentityCache: cfg.Render.Skins.IdentityCache,
		ResizeCache:   cfg.Render.Skins.ResizeCache,
	}
	if cfg.Render.Skins.Enabled {
		skins, err := render.LoadSkins(cfg.Render.Skins.Dir)
		if err != nil {
			return nil, err
		}
		opts.Skins = skins
	}
	return render.New(opts)
}

func newReplayService(cfg *config.ProjectConfig, db replay.Store, logger *slog.Logger) (*replay.Service, error) {
	renderer, err := newRenderer(cfg)
	if err != nil {
		return nil, err
	}
	encoder := encode.New(cfg.Video.FFmpeg, logger.With("component", "encode"))
	return replay.NewService(db, renderer, encoder, replay.Settings{
		SourceFPS:  cfg.Game.SourceFPS,
		DefaultFPS: cfg.Video.DefaultFPS,
		Width:      cfg.Video.Width,
		Height:     cfg.Video.Height,
		TempDir:    cfg.Video.TempDir,
	}, logger), nil
}
