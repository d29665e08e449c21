/*
Package log configures the process-wide zerolog logger for erpbus.

Call Init once at startup, then derive component loggers:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	logger := log.WithComponent("eventbus")
	logger.Info().Msg("bus ready")

Libraries (pkg/eventbus, pkg/aggregator) accept an injected zerolog.Logger
and never touch the global, so embedding applications keep full control.
*/
package log
