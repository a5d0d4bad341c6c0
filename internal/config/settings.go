package config

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/sakif/roster-search/internal/apperror"
	"github.com/sakif/roster-search/internal/repository"
	"github.com/sakif/roster-search/internal/search"
)

// Settings holds the process-wide search switches.
//
// Reads happen on every search and writes almost never, so each switch is an
// atomic.Bool: Flags() takes no lock. A search calls Flags() once and works
// from that copy.
//
// Settings satisfies search.FlagSource.
type Settings struct {
	fullComplexity atomic.Bool
	gist           atomic.Bool

	store  repository.SettingRepository // may be nil: changes are then not persisted
	logger *slog.Logger
}

var _ search.FlagSource = (*Settings)(nil)

// NewSettings seeds the switches from cfg. store persists later changes.
func NewSettings(cfg *Config, store repository.SettingRepository, logger *slog.Logger) *Settings {
	s := &Settings{store: store, logger: logger}
	s.fullComplexity.Store(cfg.FullComplexity)
	s.gist.Store(cfg.Gist)
	return s
}

// Flags returns a snapshot of both switches.
func (s *Settings) Flags() search.Flags {
	return search.Flags{
		FullComplexity: s.fullComplexity.Load(),
		Substring:      s.gist.Load(),
	}
}

// Load overlays values previously persisted in the store. Unparseable stored
// values are logged and skipped rather than failing startup.
func (s *Settings) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	for _, name := range []string{search.SettingFullComplexity, search.SettingGist} {
		raw, ok, err := s.store.GetSetting(ctx, name)
		if err != nil {
			return fmt.Errorf("loading setting %s: %w", name, err)
		}
		if !ok {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.logger.Warn("ignoring unparseable setting",
				slog.String("name", name),
				slog.String("value", raw),
			)
			continue
		}
		s.switchFor(name).Store(v)
	}
	return nil
}

// Get returns the current value of a named switch.
func (s *Settings) Get(name string) (bool, error) {
	sw := s.switchFor(name)
	if sw == nil {
		return false, apperror.ValidationFailed("name", fmt.Sprintf("unknown setting %q", name))
	}
	return sw.Load(), nil
}

// Set changes a named switch and persists it. The in-memory value only changes
// once the store accepted the write.
func (s *Settings) Set(ctx context.Context, name string, value bool) error {
	sw := s.switchFor(name)
	if sw == nil {
		return apperror.ValidationFailed("name", fmt.Sprintf("unknown setting %q", name))
	}
	if s.store != nil {
		if err := s.store.SetSetting(ctx, name, strconv.FormatBool(value)); err != nil {
			return fmt.Errorf("saving setting %s: %w", name, err)
		}
	}
	sw.Store(value)

	s.logger.Info("setting changed",
		slog.String("name", name),
		slog.Bool("value", value),
	)
	return nil
}

func (s *Settings) switchFor(name string) *atomic.Bool {
	switch name {
	case search.SettingFullComplexity:
		return &s.fullComplexity
	case search.SettingGist:
		return &s.gist
	}
	return nil
}
