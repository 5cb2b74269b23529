// Package logger provides structured logging for the data pipeline engine
// using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers. The engine logs under the component names
// "pipeline", "prefetch", "source" and "checkpoint".
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("pipeline")
//	log.Warn("record skipped", logger.Fields(logger.FieldStage, "map", logger.FieldPosition, 7))
package logger
