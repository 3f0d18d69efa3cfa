// Package logger wraps zerolog behind a small structured logging interface.
//
// Console output goes to stderr, pretty-printed when LoggingConfig.Pretty is
// set and as JSON lines otherwise. When LoggingConfig.File is set every event
// is also appended to that file as JSON.
//
//	log, err := logger.New(&cfg.Logging)
//	if err != nil {
//	    return err
//	}
//	log.WithField("chain", cfg.Collection.Chain).Info("Starting collection")
//
// Tests can use NewTestLogger to capture messages or NewNopLogger to discard
// them.
package logger
