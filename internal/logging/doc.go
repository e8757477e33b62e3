// Package logging provides structured logging for colony processes.
//
// It wraps log/slog with a JSON handler. Every CLI invocation is a separate
// short-lived process, so all of them append to one shared file under the
// coordination root ({root}/logs/colony.log) and the [RotatingWriter] keeps
// that file bounded.
//
// Child loggers created with [Logger.WithAgent], [Logger.WithTask],
// [Logger.WithComponent], or [Logger.With] share the parent's destination and
// add persistent attributes:
//
//	logger, err := logging.NewLoggerWithRotation(filepath.Join(root, "logs"), "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.WithAgent("agent-a").WithTask("T1").Info("task claimed", "attempts", 1)
//
// Components that accept a logger default to [NopLogger] so tests stay quiet.
package logging
