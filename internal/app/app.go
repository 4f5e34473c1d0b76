package app

import (
	"context"
	"errors"

	"svg2img/internal/cache"
	"svg2img/internal/chrome"
	"svg2img/internal/cleanup"
	u "svg2img/internal/utils"
)

// SetupConverter builds a Converter with real Chrome, cache, history and
// cleanup backends. Optional backends that cannot be reached are disabled
// with a warning. The returned func releases them.
func SetupConverter(ctx context.Context, cfg u.Config) (*Converter, func()) {
	conv := &Converter{
		Config:   cfg,
		Exporter: chrome.NewExporter(chrome.OptionsFromConfig(cfg.Browser)),
		Cache:    cache.New(cfg.Cache),
		Cleaner:  cleanup.Default(cfg.Cleanup.UseTrash),
	}
	if cfg.Cache.Enabled {
		u.Info("Using Redis for raster cache", "addr", cfg.Cache.RedisHost, "db", cfg.Cache.RedisDB)
	}

	history, err := u.OpenHistory(ctx, cfg.History.Postgres)
	switch {
	case err == nil:
		conv.History = history
	case errors.Is(err, u.ErrHistoryDisabled):
	default:
		u.Warn("Conversion history unavailable", "error", err)
	}

	return conv, func() {
		if err := conv.Cache.Close(); err != nil {
			u.Warn("Closing raster cache failed", "error", err)
		}
		if err := history.Close(); err != nil {
			u.Warn("Closing conversion history failed", "error", err)
		}
	}
}
