// Package scraper runs a scan: for every configured server channel and
// direct message it walks the calendar backwards day by day, searches the
// day's messages, and downloads the attachments the classifier keeps.
//
// A target moves through Idle, ResolvingTargets and Scanning to Done. When
// its folder cannot be created it ends in Failed and the run moves on.
// Within a target days are scanned one after another; a failed search only
// costs that day. Downloads from every target share one worker pool and one
// set of folder stores, so a filename is fetched at most once per folder.
//
// Usage:
//
//	s, err := scraper.New(cfg, scraper.WithReporter(ui.NewProgressDisplay(len(cfg.Targets()), false)))
//	if err != nil {
//		return err
//	}
//	summary, err := s.Run(ctx)
//
// Cancelling ctx stops the scan between days, aborts in-flight downloads
// and returns the partial summary with ctx.Err().
package scraper
