package main

import (
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/dictation-buddy/internal/config"
	gap "github.com/muesli/go-app-paths"
)

func getLogFilePath() (string, error) {
	dir, err := gap.NewScope(gap.User, config.AppName).CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, config.AppName+".log"), nil
}

func setupLog() (func() error, error) {
	// Log to file, if set
	logFile, err := getLogFilePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil { //nolint:gosec
		// log disabled
		return func() error { return nil }, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec
	if err != nil {
		// log disabled
		return func() error { return nil }, nil
	}
	log.SetOutput(f)
	log.SetLevel(log.InfoLevel)

	if e, err := env.ParseAs[config.Env](); err == nil && e.Debug {
		log.SetLevel(log.DebugLevel)
		log.SetReportCaller(true)
	}
	return f.Close, nil
}
