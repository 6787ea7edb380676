/*
Package http implements the JSON API over sandboxes.

# Endpoints

	GET    /                      service banner
	GET    /health                pool and session statistics
	POST   /v1/eval               {code, bindings} on a pooled context
	GET    /v1/metrics            JSON metrics summary
	POST   /v1/sessions           {bindings} creates a session
	GET    /v1/sessions           lists sessions
	GET    /v1/sessions/:id       describes a session
	POST   /v1/sessions/:id/eval  {code} evaluates in the session's realm
	DELETE /v1/sessions/:id       closes a session

Exceptions thrown by evaluated code are reported in a 200 response with
status "error" (or "interrupted" after a timeout). Malformed input is a 400,
an unknown session a 404 and a full session table a 429.

Responses are encoded with sonic.
*/
package http
