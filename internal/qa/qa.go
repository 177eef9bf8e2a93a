// Package qa holds the Q&A services: the vote ledger, the accepted-answer
// controller, the notification emitter with its outbox, and the board that
// serves questions, answers and comments.
//
// Every operation takes the caller's identity explicitly; a nil identity is
// an anonymous caller.
package qa

import "log/slog"

const module = "qa"

// ResolveLogger returns logger, or slog.Default when it is nil.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
