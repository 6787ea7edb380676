package sandbox

import (
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/securevm/internal/membrane"
	"github.com/GriffinCanCode/securevm/internal/realm"
)

// Config defines sandbox configuration
type Config struct {
	Timeout          time.Duration // Wall-clock limit for one evaluation, zero disables
	TimerBudget      int           // Timer callbacks drained after each evaluation
	EnableConsole    bool          // Inject a console collected into Result.Console
	Location         string        // href exposed as location
	MaxCallStackSize int           // Sandbox call stack limit, zero keeps the engine default
}

// Result holds execution result
type Result struct {
	Value    interface{}   `json:"value"`       // Exported completion value
	JSON     string        `json:"json"`        // Completion value as JSON, empty when not serializable
	Console  []LogEntry    `json:"console"`     // Console output
	Pending  int           `json:"pending"`     // Timer callbacks still queued
	Duration time.Duration `json:"duration_ns"` // Execution time
	Error    error         `json:"-"`           // Execution error
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    `json:"level"`   // log, info, warn, error, debug
	Message string    `json:"message"` // Log message
	Time    time.Time `json:"time"`    // Timestamp
}

// Evaluation statuses reported to observers.
const (
	StatusOK          = "ok"
	StatusError       = "error"
	StatusInterrupted = "interrupted"
)

// Observer receives context lifecycle events.
type Observer interface {
	ContextCreated(warnings int)
	EvaluationFinished(status string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ContextCreated(int)                       {}
func (nopObserver) EvaluationFinished(string, time.Duration) {}

// Option configures a Context.
type Option func(*options)

type options struct {
	host             *goja.Runtime
	factory          realm.Factory
	whitelist        *realm.Whitelist
	logger           *zap.Logger
	observer         Observer
	membraneObserver membrane.Observer
}

// WithHost uses vm as the host realm instead of a fresh runtime. vm must not
// be shared with another goroutine while the Context is in use.
func WithHost(vm *goja.Runtime) Option {
	return func(o *options) {
		o.host = vm
	}
}

// WithFactory overrides the realm factory.
func WithFactory(f realm.Factory) Option {
	return func(o *options) {
		o.factory = f
	}
}

// WithWhitelist overrides the default whitelist.
func WithWhitelist(wl realm.Whitelist) Option {
	return func(o *options) {
		o.whitelist = &wl
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver reports context events to obs.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithMembraneObserver reports bridging events to obs.
func WithMembraneObserver(obs membrane.Observer) Option {
	return func(o *options) {
		o.membraneObserver = obs
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Timeout:       5 * time.Second,
		TimerBudget:   1000,
		EnableConsole: true,
		Location:      realm.DefaultLocation,
	}
}
