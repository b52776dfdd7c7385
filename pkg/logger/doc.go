// Package logger standardises structured logging across the persistence core.
//
// New builds a *slog.Logger from functional options (format, level, output,
// static attributes). The rest of the package is attribute constructors that
// keep log keys consistent between the operation queue, the save coordinator,
// and the stores: Component, Operation, OperationID, Priority, RetryCount,
// Duration, RecordKey, and the error helpers Error and Errors.
//
//	log := logger.New(
//	    logger.WithFormat(logger.FormatText),
//	    logger.WithLevel(slog.LevelDebug),
//	    logger.WithAttr(logger.Component("opqueue")),
//	)
package logger
