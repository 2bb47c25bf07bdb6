package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bodgit/pngpal"
	"github.com/bodgit/pngpal/internal/config"
	"github.com/bodgit/pngpal/internal/logger"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Printf("usage: %s FILE\n", filepath.Base(os.Args[0]))
		return
	}

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.LogFile)
	defer log.Sync()

	e, err := pngpal.Open(os.Args[1], log)
	if err != nil {
		log.Error("could not load image", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}

	if err := pngpal.NewSession(e, os.Stdout).Run(os.Stdin); err != nil {
		log.Error("session aborted", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}
