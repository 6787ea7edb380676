// Package logging builds the server's zap loggers.
//
// Production loggers write JSON lines (timestamp, level, logger, caller,
// message, fields; durations in milliseconds). Development loggers write
// colored console lines at debug level. Components take a Named child:
//
//	logger, err := logging.New(logging.DefaultConfig())
//	c, err := sandbox.New(cfg, nil, sandbox.WithLogger(logger.Named("sandbox").Logger))
package logging
