package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/viper"

	"loragate/core"
)

var _ core.SettingsStore = (*Store)(nil)

// Store persists radio settings into the configuration file. Other keys in
// the file are preserved.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store writing to path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the file the store writes
func (s *Store) Path() string {
	return s.path
}

// SaveSettings writes the radio section of the configuration file
func (s *Store) SaveSettings(settings core.Settings) error {
	if s.path == "" {
		return errors.New("no configuration file to save settings to")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v := viper.New()
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read %s: %w", s.path, err)
	}

	v.Set("radio.region", settings.Region)
	v.Set("radio.channel", settings.Channel)
	v.Set("radio.data_rate", int(settings.DataRate))

	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}
