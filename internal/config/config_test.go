package config

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/roster-search/internal/apperror"
	"github.com/sakif/roster-search/internal/search"
)

// unsetEnv removes keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		if old, ok := os.LookupEnv(k); ok {
			t.Cleanup(func() { os.Setenv(k, old) })
		}
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	unsetEnv(t, "PORT", "USER_SEARCH_WITH_FULL_COMPLEXITY", "USER_SEARCH_WITH_GIST", "ACCOUNT_ADMIN_IDS")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.FullComplexity)
	assert.False(t, cfg.Gist)
	assert.Empty(t, cfg.AccountAdminIDs)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("USER_SEARCH_WITH_FULL_COMPLEXITY", "true")
	t.Setenv("USER_SEARCH_WITH_GIST", "true")
	t.Setenv("ACCOUNT_ADMIN_IDS", "1,42")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.FullComplexity)
	assert.True(t, cfg.Gist)
	assert.Equal(t, []int64{1, 42}, cfg.AccountAdminIDs)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_BadPort(t *testing.T) {
	t.Setenv("PORT", "70000")
	_, err := Load()
	assert.Error(t, err)
}

// memStore is an in-memory SettingRepository.
type memStore struct {
	values  map[string]string
	failSet bool
}

func (m *memStore) GetSetting(_ context.Context, name string) (string, bool, error) {
	v, ok := m.values[name]
	return v, ok, nil
}

func (m *memStore) SetSetting(_ context.Context, name, value string) error {
	if m.failSet {
		return errors.New("disk full")
	}
	m.values[name] = value
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSettings_SeededFromConfig(t *testing.T) {
	s := NewSettings(&Config{FullComplexity: true}, nil, discardLogger())
	assert.Equal(t, search.Flags{FullComplexity: true, Substring: false}, s.Flags())
}

func TestSettings_LoadOverlaysStore(t *testing.T) {
	store := &memStore{values: map[string]string{
		search.SettingGist:           "true",
		search.SettingFullComplexity: "not-a-bool",
	}}
	s := NewSettings(&Config{FullComplexity: true}, store, discardLogger())

	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, search.Flags{FullComplexity: true, Substring: true}, s.Flags())
}

func TestSettings_SetPersists(t *testing.T) {
	store := &memStore{values: map[string]string{}}
	s := NewSettings(&Config{}, store, discardLogger())

	require.NoError(t, s.Set(context.Background(), search.SettingFullComplexity, true))
	assert.True(t, s.Flags().FullComplexity)
	assert.Equal(t, "true", store.values[search.SettingFullComplexity])

	got, err := s.Get(search.SettingFullComplexity)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestSettings_SetFailureKeepsOldValue(t *testing.T) {
	store := &memStore{values: map[string]string{}, failSet: true}
	s := NewSettings(&Config{}, store, discardLogger())

	err := s.Set(context.Background(), search.SettingGist, true)
	require.Error(t, err)
	assert.False(t, s.Flags().Substring)
}

func TestSettings_UnknownName(t *testing.T) {
	s := NewSettings(&Config{}, nil, discardLogger())

	err := s.Set(context.Background(), "user_search_with_magic", true)
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	_, err = s.Get("user_search_with_magic")
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}
