package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/securevm/internal/domain/session"
	"github.com/GriffinCanCode/securevm/internal/sandbox"
	"github.com/GriffinCanCode/securevm/internal/shared/id"
)

var (
	// errBadRequest marks client input the handlers refused.
	errBadRequest = errors.New("bad request")

	errBindingsOnCreate = errors.New("bindings can only be set when the session is created")
)

// respond writes v as JSON encoded with sonic.
func respond(c *gin.Context, status int, v interface{}) {
	data, err := sonic.Marshal(v)
	if err != nil {
		c.Error(err)
		c.Data(http.StatusInternalServerError, "application/json; charset=utf-8",
			[]byte(`{"error":"failed to encode response"}`))
		return
	}
	c.Data(status, "application/json; charset=utf-8", data)
}

// decode reads the request body into v. An empty body leaves v untouched.
func decode(c *gin.Context, v interface{}) error {
	if c.Request.Body == nil {
		return nil
	}
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

// invalid wraps a validation failure as a client error.
func invalid(err error) error {
	return fmt.Errorf("%w: %v", errBadRequest, err)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, id.ErrInvalidID):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrTooManySessions):
		return http.StatusTooManyRequests
	case errors.Is(err, sandbox.ErrPoolClosed), errors.Is(err, sandbox.ErrTimeout),
		errors.Is(err, session.ErrManagerClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status statusFor picks.
func fail(c *gin.Context, err error) {
	c.Error(err)
	respond(c, statusFor(err), gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

// EvalResponse is the wire form of one evaluation.
type EvalResponse struct {
	Status     string             `json:"status"`
	Value      interface{}        `json:"value,omitempty"`
	JSON       string             `json:"json,omitempty"`
	Error      string             `json:"error,omitempty"`
	Console    []sandbox.LogEntry `json:"console"`
	Pending    int                `json:"pending"`
	DurationMs float64            `json:"duration_ms"`
	TraceID    string             `json:"trace_id,omitempty"`
}

// NewEvalResponse converts a sandbox result. Errors thrown by evaluated code
// are part of the response, not a failed request.
func NewEvalResponse(result *sandbox.Result) EvalResponse {
	resp := EvalResponse{
		Status:     sandbox.StatusOK,
		Value:      result.Value,
		JSON:       result.JSON,
		Console:    result.Console,
		Pending:    result.Pending,
		DurationMs: float64(result.Duration.Microseconds()) / 1000,
	}
	if resp.Console == nil {
		resp.Console = []sandbox.LogEntry{}
	}
	if result.Error != nil {
		resp.Status = sandbox.StatusError
		resp.Value = nil
		resp.JSON = ""
		resp.Error = result.Error.Error()

		var rerr *sandbox.RuntimeError
		if errors.As(result.Error, &rerr) && rerr.Interrupted() {
			resp.Status = sandbox.StatusInterrupted
		}
	}
	return resp
}

// evaluated reports whether err came from the evaluated code itself, in which
// case result describes it.
func evaluated(result *sandbox.Result, err error) bool {
	return result != nil && errors.Is(err, sandbox.ErrEvaluation)
}
