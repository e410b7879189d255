package config

import (
	"context"
	"fmt"
	"os"

	"github.com/gauthierbraillon/subfeed/internal/store"
)

// Settings are the user-editable values persisted in settings.json.
type Settings struct {
	DaysFilter     int    `json:"days_filter"`
	MinVideoLength int    `json:"min_video_length"` // minutes
	APIKey         string `json:"api_key"`          // #nosec G117 -- opaque key held for the Data API
}

// DefaultSettings returns the settings used before anything is saved.
func DefaultSettings() Settings {
	return Settings{DaysFilter: 7, MinVideoLength: 2}
}

// Validate rejects values no filter pass could use.
func (s Settings) Validate() error {
	if s.DaysFilter < 1 {
		return fmt.Errorf("days_filter must be at least 1, got %d", s.DaysFilter)
	}
	if s.MinVideoLength < 0 {
		return fmt.Errorf("min_video_length must be non-negative, got %d", s.MinVideoLength)
	}
	return nil
}

// FilterConfig is the filter applied by every aggregation pass.
type FilterConfig struct {
	MinDurationSeconds int
	MaxDurationSeconds int
	RecencyWindowDays  int
}

// Filter derives the aggregation filter, with maxSeconds as the fixed ceiling.
func (s Settings) Filter(maxSeconds int) FilterConfig {
	return FilterConfig{
		MinDurationSeconds: s.MinVideoLength * 60,
		MaxDurationSeconds: maxSeconds,
		RecencyWindowDays:  s.DaysFilter,
	}
}

// SettingsStore persists Settings. Keys stored on disk are merged over
// DefaultSettings.
type SettingsStore struct {
	doc *store.Document[Settings]
}

func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{
		doc: store.NewDocument[Settings](path, store.JSONCodec[Settings]{New: DefaultSettings}),
	}
}

// Load returns the saved settings. SUBFEED_API_KEY, when set, replaces the
// stored key for this process only.
func (s *SettingsStore) Load(ctx context.Context) (Settings, error) {
	settings, err := s.doc.Load(ctx)
	if err != nil {
		return DefaultSettings(), fmt.Errorf("failed to load settings: %w", err)
	}
	if key := os.Getenv(envPrefix + "API_KEY"); key != "" {
		settings.APIKey = key
	}
	return settings, nil
}

// Update applies fn to the stored settings and saves the result if it
// validates.
func (s *SettingsStore) Update(ctx context.Context, fn func(*Settings) error) (Settings, error) {
	updated, err := s.doc.Update(ctx, func(current Settings) (Settings, error) {
		if err := fn(&current); err != nil {
			return current, err
		}
		if err := current.Validate(); err != nil {
			return current, err
		}
		return current, nil
	})
	if err != nil {
		return updated, fmt.Errorf("failed to update settings: %w", err)
	}
	return updated, nil
}

// Save validates and replaces the stored settings.
func (s *SettingsStore) Save(ctx context.Context, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := s.doc.Save(ctx, settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
