// Package config loads application settings from a yaml file with
// environment overrides. The download engine only ever reads these values
// at task-start time.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/AlikanakelaKarwowski/emularr/utils"
)

const (
	KeyDownloadDir  = "download_dir"
	KeyChunkThreads = "chunk_threads"
	KeyDatabasePath = "database_path"
	KeyListenAddr   = "listen_addr"
	KeyUserAgent    = "user_agent"
)

const (
	DefaultChunkThreads = 8
	DefaultListenAddr   = ":7575"
)

type Settings struct {
	v *viper.Viper
}

// Load reads settings from configPath, or from the standard locations when
// it is empty. A missing config file is fine, defaults apply.
func Load(configPath string) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("$HOME/.emularr")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("EMULARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	v.SetDefault(KeyDownloadDir, filepath.Join(home, "Downloads", "emularr"))
	v.SetDefault(KeyChunkThreads, DefaultChunkThreads)
	v.SetDefault(KeyDatabasePath, filepath.Join(home, ".emularr", "library.db"))
	v.SetDefault(KeyListenAddr, DefaultListenAddr)
	v.SetDefault(KeyUserAgent, utils.DefaultUserAgent)

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// no config file, defaults apply
	}
	return &Settings{v: v}, nil
}

func (s *Settings) DownloadDir() string {
	return os.ExpandEnv(s.v.GetString(KeyDownloadDir))
}

func (s *Settings) SetDownloadDir(dir string) {
	s.v.Set(KeyDownloadDir, dir)
}

func (s *Settings) ChunkThreads() int {
	threads := s.v.GetInt(KeyChunkThreads)
	if threads < 1 {
		return 1
	}
	return threads
}

func (s *Settings) SetChunkThreads(n int) {
	s.v.Set(KeyChunkThreads, n)
}

func (s *Settings) DatabasePath() string {
	return os.ExpandEnv(s.v.GetString(KeyDatabasePath))
}

func (s *Settings) ListenAddr() string {
	return s.v.GetString(KeyListenAddr)
}

func (s *Settings) UserAgent() string {
	return s.v.GetString(KeyUserAgent)
}
