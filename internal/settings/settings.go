// Package settings validates and serves the user settings kept in the
// shared settings database.
package settings

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/kalambet/partsbin/internal/apperror"
	"github.com/kalambet/partsbin/internal/storage"
)

const (
	KeyAPIKey           = "api_key"
	KeyModel            = "model"
	KeyProvider         = "provider"
	KeyTheme            = "theme"
	KeyStartupInventory = "startup_inventory"
)

type keyDef struct {
	def     string
	secret  bool
	allowed []string
}

var keys = map[string]keyDef{
	KeyAPIKey:           {secret: true},
	KeyModel:            {},
	KeyProvider:         {allowed: []string{"openrouter", "gemini"}},
	KeyTheme:            {def: "system", allowed: []string{"system", "light", "dark"}},
	KeyStartupInventory: {},
}

// Store is the persistence used by Service. *storage.SettingsStore implements it.
type Store interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Keys returns the known setting names in sorted order.
func Keys() []string {
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// IsSecret reports whether key holds a credential that should be masked on display.
func IsSecret(key string) bool {
	return keys[key].secret
}

// Get returns the stored value of key or its default.
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	def, ok := keys[key]
	if !ok {
		return "", apperror.NewInvalidInput("unknown setting %q (known: %s)", key, strings.Join(Keys(), ", "))
	}
	v, err := s.store.GetSetting(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return def.def, nil
	}
	if err != nil {
		return "", apperror.Wrap(err)
	}
	return v, nil
}

// Set validates and stores value. An empty value resets key to its default.
func (s *Service) Set(ctx context.Context, key, value string) error {
	def, ok := keys[key]
	if !ok {
		return apperror.NewInvalidInput("unknown setting %q (known: %s)", key, strings.Join(Keys(), ", "))
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return apperror.Wrap(s.store.DeleteSetting(ctx, key))
	}
	if len(def.allowed) > 0 && !contains(def.allowed, value) {
		return apperror.NewInvalidInput("invalid value %q for %s (allowed: %s)", value, key, strings.Join(def.allowed, ", "))
	}
	return apperror.Wrap(s.store.SetSetting(ctx, key, value))
}

// All returns every known setting with secrets masked.
func (s *Service) All(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, k := range Keys() {
		v, err := s.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if IsSecret(k) {
			v = Mask(v)
		}
		out[k] = v
	}
	return out, nil
}

// Mask hides all but the last four characters of a secret.
func Mask(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
