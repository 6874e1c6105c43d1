package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	app_errors "servimatt/chat/internal/errors"
	"servimatt/chat/internal/model"
	"servimatt/chat/internal/repository"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// SettingsService owns the generation settings stored next to the history.
type SettingsService struct {
	repo     repository.Repository
	defaults model.Settings
}

// NewSettingsService takes the configured defaults used until settings are saved.
func NewSettingsService(repo repository.Repository, defaults model.Settings) *SettingsService {
	return &SettingsService{repo: repo, defaults: defaults}
}

// InitAndGet returns the stored settings, seeding the backend with the
// configured defaults on first boot.
func (s *SettingsService) InitAndGet(ctx context.Context) (*model.Settings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err == nil {
		slog.Info("Found existing settings", "model", settings.Model)
		return settings, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: failed to load settings: %w", app_errors.ErrPersistence, err)
	}

	slog.Info("No settings found, saving configured defaults", "model", s.defaults.Model)
	initial := s.defaults
	if err := s.repo.SaveSettings(ctx, &initial); err != nil {
		return nil, fmt.Errorf("%w: failed to save initial settings: %w", app_errors.ErrPersistence, err)
	}
	return &initial, nil
}

// Get returns the stored settings, or the defaults if none were saved yet.
func (s *SettingsService) Get(ctx context.Context) (*model.Settings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		d := s.defaults
		return &d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load settings: %w", app_errors.ErrPersistence, err)
	}
	return settings, nil
}

// Current never fails: a read error falls back to the defaults.
func (s *SettingsService) Current(ctx context.Context) model.Settings {
	settings, err := s.Get(ctx)
	if err != nil {
		slog.Warn("Using default settings", "error", err)
		return s.defaults
	}
	return *settings
}

// Save validates and stores settings.
func (s *SettingsService) Save(ctx context.Context, settings *model.Settings) error {
	if err := validate.Struct(settings); err != nil {
		return fmt.Errorf("%w: %w", app_errors.ErrValidation, err)
	}
	if err := s.repo.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("%w: failed to save settings: %w", app_errors.ErrPersistence, err)
	}
	return nil
}
