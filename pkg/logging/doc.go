// Package logging provides structured logging setup for grove components.
//
// All grove packages accept a *slog.Logger and default to a no-op logger
// when none is supplied, so embedding applications stay in control of log
// routing. This package only provides construction helpers:
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelDebug,
//	    Format: logging.FormatJSON,
//	})
//	st, err := store.New(cfg, store.WithLogger(logger))
package logging
