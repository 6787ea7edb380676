// Package session provides long-lived sandbox sessions.
//
// A session owns one sandbox Context for its whole life, so globals defined
// by one evaluation are visible to the next. Sessions are keyed by prefixed
// ULIDs (sess_*) and are closed on Delete, by the idle TTL sweep, or when the
// manager closes.
//
// Concurrency:
//   - Evaluations within one session are serialized
//   - Different sessions evaluate concurrently
//   - MaxSessions caps live sessions; Create fails with ErrTooManySessions
//
// Example Usage:
//
//	manager := session.NewManager(build, session.Config{MaxSessions: 64, TTL: 30 * time.Minute})
//	go manager.Run(ctx)
//
//	info, err := manager.Create(map[string]interface{}{"limit": 10})
//	result, err := manager.Eval(ctx, info.ID, "limit * 2")
package session
