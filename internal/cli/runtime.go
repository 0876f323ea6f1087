// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jeranaias/storyrun-tui/internal/config"
	"github.com/jeranaias/storyrun-tui/internal/logging"
	"github.com/jeranaias/storyrun-tui/internal/offline"
	"github.com/jeranaias/storyrun-tui/internal/storage"
)

// environment is what every command needs: config, logger and story store.
type environment struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   storage.Store
	logFile *os.File
}

// loadEnvironment reads the config, starts file logging and opens the store.
// Logs go to a file so they never draw over the TUI.
func loadEnvironment(o *options) (*environment, error) {
	var (
		cfg     *config.Config
		err     error
		created bool
	)
	if o.configPath != "" {
		cfg, err = config.LoadFrom(o.configPath)
	} else {
		// First run leaves an editable config behind; failure to write it is not fatal.
		created, _ = config.WriteDefault()
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if o.debug {
		cfg.Logging.Level = "debug"
	}
	if o.offline && !cfg.General.Offline {
		cfg.General.Offline = true
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}
	offline.SetOfflineMode(cfg.General.Offline)

	env := &environment{cfg: cfg}

	logPath, err := cfg.ResolveLogFile()
	if err != nil {
		return nil, err
	}
	env.logFile, err = logging.OpenFile(logPath)
	if err != nil {
		// Logging is best effort; the story still works without it.
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: "+err.Error()))
		env.logger = logging.Init(cfg.Logging.Level, cfg.Logging.Format, nil)
	} else {
		env.logger = logging.Init(cfg.Logging.Level, cfg.Logging.Format, env.logFile)
	}
	if created {
		path, _ := config.ConfigPathTOML()
		env.logger.Info("default config written", "path", path)
	}

	dataDir, err := cfg.ResolveDataDir()
	if err != nil {
		env.Close()
		return nil, err
	}
	env.store, err = storage.Open(cfg.General.StorageBackend, dataDir)
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("open story store: %w", err)
	}
	env.logger.Debug("environment loaded",
		"backend", cfg.General.StorageBackend, "data_dir", dataDir, "offline", cfg.General.Offline)
	return env, nil
}

// loadSecrets reads API keys, writing a placeholder secrets file on first run.
// SECURITY: keys stay in the Secrets value; they are never logged or saved
// with a story.
func (e *environment) loadSecrets() (*config.Secrets, error) {
	path, err := config.SecretsPath()
	if err != nil {
		return nil, err
	}
	created, err := config.WriteSecretsTemplate(path)
	if err != nil {
		e.logger.Warn("secrets template not written", "error", err)
	} else if created {
		e.logger.Info("secrets template written", "path", path)
	}
	secrets, err := config.LoadSecretsFrom(path)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("secrets loaded", "providers", secrets.Configured())
	return secrets, nil
}

// Close releases the store and the log file.
func (e *environment) Close() error {
	var errs []error
	if e.store != nil {
		errs = append(errs, e.store.Close())
	}
	if e.logFile != nil {
		errs = append(errs, e.logFile.Close())
	}
	return errors.Join(errs...)
}
