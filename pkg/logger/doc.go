// Package logger provides structured logging for dscraper.
//
// It wraps zerolog behind a small Logger interface so components can be
// handed a scoped logger and tests can swap in a TestLogger that records
// every entry.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("component", "scraper")
//	log.InfoWithFields("Target resolved", map[string]interface{}{
//	    "server":  "1234_General",
//	    "channel": "5678_memes",
//	})
//
// Console output is colourised. Setting logging.file additionally appends
// every entry to that file.
package logger
