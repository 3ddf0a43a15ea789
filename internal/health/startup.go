// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ManuGH/timeshift/internal/config"
	"github.com/ManuGH/timeshift/internal/log"
)

// PerformStartupChecks validates the environment before the server starts.
func PerformStartupChecks(cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")

	if _, port, err := net.SplitHostPort(cfg.ListenAddr); err != nil {
		return fmt.Errorf("listen address %q: %w", cfg.ListenAddr, err)
	} else if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("listen address %q: invalid port", cfg.ListenAddr)
	}

	if cfg.Resume.Backend != "memory" && cfg.Resume.Dir != "" {
		if err := checkDataDir(logger, cfg.Resume.Dir); err != nil {
			return fmt.Errorf("resume directory check failed: %w", err)
		}
	}

	if path := cfg.Simulator.CatalogPath; path != "" {
		f, err := os.Open(path) // #nosec G304 -- operator supplied catalog path
		if err != nil {
			return fmt.Errorf("catalog not readable: %w", err)
		}
		_ = f.Close()
	}

	logger.Info().Str("event", "startup.checks_passed").Msg("startup checks passed")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Debug().Str("path", path).Msg("data directory is writable")
	return nil
}
