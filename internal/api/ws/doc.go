// Package ws provides a JavaScript REPL over WebSocket.
//
// Each connection is bound to one sandbox session, so bindings and globals
// defined by earlier frames stay visible to later ones.
//
// Message Types (Client → Server):
//   - eval: Evaluate code in the session's realm
//   - ping: Keep-alive ping
//
// Message Types (Server → Client):
//   - system: Connection established
//   - result: Evaluation outcome, including code that threw
//   - pong: Ping reply
//   - error: Malformed frame or a failed evaluation request
//
// Example Usage:
//
//	handler := ws.NewHandler(sessions, metrics, logger)
//	router.GET("/v1/sessions/:id/repl", handler.HandleConnection)
package ws
