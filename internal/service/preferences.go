package service

import (
	"context"
	"strconv"

	"github.com/arenahub/playground-client/internal/model"
	"github.com/arenahub/playground-client/internal/storage"
)

const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// PreferencesAPI keeps UI preferences in the key-value store. Reads never
// fail; a missing or unreadable value falls back to the default.
type PreferencesAPI struct {
	kv            *storage.KeyValueStore
	defaultLocale string
}

func NewPreferencesAPI(kv *storage.KeyValueStore, defaultLocale string) *PreferencesAPI {
	if defaultLocale == "" {
		defaultLocale = "en"
	}
	return &PreferencesAPI{kv: kv, defaultLocale: defaultLocale}
}

func (p *PreferencesAPI) Locale(ctx context.Context) string {
	if locale, ok, _ := p.kv.Get(ctx, storage.KeyLocale); ok && locale != "" {
		return locale
	}
	return p.defaultLocale
}

func (p *PreferencesAPI) SetLocale(ctx context.Context, locale string) error {
	return p.kv.Set(ctx, storage.KeyLocale, locale)
}

func (p *PreferencesAPI) Theme(ctx context.Context) string {
	if theme, ok, _ := p.kv.Get(ctx, storage.KeyTheme); ok {
		switch theme {
		case ThemeLight, ThemeDark, ThemeSystem:
			return theme
		}
	}
	return ThemeSystem
}

func (p *PreferencesAPI) SetTheme(ctx context.Context, theme string) error {
	return p.kv.Set(ctx, storage.KeyTheme, theme)
}

func (p *PreferencesAPI) WelcomeSeen(ctx context.Context) bool {
	raw, ok, _ := p.kv.Get(ctx, storage.KeyWelcomeSeen)
	if !ok {
		return false
	}
	seen, err := strconv.ParseBool(raw)
	return err == nil && seen
}

func (p *PreferencesAPI) MarkWelcomeSeen(ctx context.Context) error {
	return p.kv.Set(ctx, storage.KeyWelcomeSeen, strconv.FormatBool(true))
}

func (p *PreferencesAPI) DiscoveryFilters(ctx context.Context) (model.DiscoveryFilters, bool) {
	var filters model.DiscoveryFilters
	ok, _ := p.kv.GetJSON(ctx, storage.KeyDiscoveryFilters, &filters)
	return filters, ok
}

func (p *PreferencesAPI) SaveDiscoveryFilters(ctx context.Context, filters model.DiscoveryFilters) error {
	return p.kv.SetJSON(ctx, storage.KeyDiscoveryFilters, filters)
}

func (p *PreferencesAPI) ClearDiscoveryFilters(ctx context.Context) error {
	return p.kv.Remove(ctx, storage.KeyDiscoveryFilters)
}
