// Package main implements the mockingjay command, which checks stub files and
// replays stubbed requests without touching the network.
//
// Validate stub files:
//
//	mockingjay validate stubs/*.yaml
//
// Replay a request and watch the chunks arrive:
//
//	mockingjay replay stubs/chatkit.yaml --method SUBSCRIBE \
//	    --url https://us1.pusherplatform.io/services/chatkit/v1/ham/users
//
// Settings are read from MOCKINGJAY_LOG_LEVEL and MOCKINGJAY_JOURNAL.
package main

import (
	"fmt"
	"os"

	"github.com/hamchapman/mockingjay/internal/config"
	"github.com/spf13/afero"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mockingjay: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.Logger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mockingjay: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	app := newApp(env{
		cfg:    cfg,
		fs:     afero.NewOsFs(),
		logger: logger,
		stdout: os.Stdout,
	})

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "mockingjay: %v\n", err)
		logger.Sync()
		os.Exit(1)
	}
}
