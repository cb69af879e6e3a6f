package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved, absolute application directories
type Paths struct {
	BaseDir    string
	UploadsDir string
	ChartsDir  string
	ReportsDir string
	LogsDir    string
}

// resolvePaths fills BaseDir from the executable location when unset
func (c *Config) resolvePaths() error {
	if c.Paths.BaseDir != "" {
		abs, err := filepath.Abs(c.Paths.BaseDir)
		if err != nil {
			return fmt.Errorf("failed to resolve base dir: %w", err)
		}
		c.Paths.BaseDir = abs
		return nil
	}

	exeDir, err := ExecutableDir()
	if err != nil {
		return err
	}
	c.Paths.BaseDir = exeDir
	return nil
}

// ExecutableDir returns the directory holding the running binary, with
// symlinks resolved.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}
	return filepath.Dir(exe), nil
}

// Resolve returns the absolute directory layout for c
func (c PathsConfig) Resolve() *Paths {
	abs := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(c.BaseDir, p)
	}
	return &Paths{
		BaseDir:    c.BaseDir,
		UploadsDir: abs(c.UploadsDir),
		ChartsDir:  abs(c.ChartsDir),
		ReportsDir: abs(c.ReportsDir),
		LogsDir:    abs(c.LogsDir),
	}
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.UploadsDir, p.ChartsDir, p.ReportsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// LogPathResolution writes the resolved layout to logger at debug level
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	logger.Debug("resolved application paths",
		slog.String("base_dir", p.BaseDir),
		slog.String("uploads_dir", p.UploadsDir),
		slog.String("charts_dir", p.ChartsDir),
		slog.String("reports_dir", p.ReportsDir),
		slog.String("logs_dir", p.LogsDir))
}

// FileExists reports whether path exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
