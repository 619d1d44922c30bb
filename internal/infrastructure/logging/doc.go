// Package logging provides structured logging for Sugarline Core.
//
// It wraps log/slog with service-wide default fields and config-driven
// format and level selection.
package logging
