// Package logging provides structured logging with OpenTelemetry integration.
//
// The package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Dual output (stdout + OpenTelemetry log bridge)
//   - Automatic context field injection (trace_id, session.id, run.id)
//
// Create a logger from config:
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
// Log with context:
//
//	ctx = logging.WithSessionID(ctx, "sess_123")
//	logger.Info(ctx, "retrieval complete", zap.Int("chunks", n))
//
// Output includes automatic correlation:
//
//	{
//	  "ts": "2026-08-28T10:15:30Z",
//	  "level": "info",
//	  "msg": "retrieval complete",
//	  "trace_id": "abc123",
//	  "session.id": "sess_123",
//	  "chunks": 12
//	}
package logging
