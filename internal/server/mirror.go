package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/teemow/meetsched/internal/config"
	"github.com/teemow/meetsched/internal/mirror"
)

// newMirror builds the mirror backend named by cfg.
func newMirror(cfg config.MirrorConfig, loc *time.Location, logger *slog.Logger) (mirror.Calendar, error) {
	switch cfg.Backend {
	case "", mirror.BackendNone:
		return mirror.Disabled{}, nil
	case mirror.BackendAppleScript:
		return mirror.NewAppleScript(cfg.Calendar, loc, nil)
	case mirror.BackendCalDAV:
		return mirror.NewCalDAV(mirror.CalDAVConfig{
			URL:      cfg.CalDAV.URL,
			Username: cfg.CalDAV.Username,
			Password: cfg.CalDAV.Password,
			Calendar: cfg.Calendar,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown mirror backend %q", cfg.Backend)
	}
}
