package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/TheElectricFursuits/tef-synth-animation/internal/infrastructure/mqtt"
)

// Publisher is the subset of the MQTT client the batcher needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger is the logging interface used by the batcher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// setMessage is the wire format of one module update.
type setMessage struct {
	Parameters map[string]any `json:"parameters"`
}

// Batcher collects parameter writes between flushes.
//
// Thread Safety: all methods are safe for concurrent use.
type Batcher struct {
	pub    Publisher
	qos    byte
	logger Logger

	mu      sync.Mutex
	pending map[string]map[string]any
	last    map[string]map[string]any
}

// NewBatcher creates a batcher publishing through pub at the given QoS.
// A nil publisher makes Flush discard staged values, which is how the
// player runs with MQTT disabled.
func NewBatcher(pub Publisher, qos byte) *Batcher {
	return &Batcher{
		pub:     pub,
		qos:     qos,
		logger:  noopLogger{},
		pending: make(map[string]map[string]any),
		last:    make(map[string]map[string]any),
	}
}

// SetLogger sets the logger for publish failures.
func (b *Batcher) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	b.mu.Lock()
	b.logger = logger
	b.mu.Unlock()
}

// Set stages value for module/parameter. A later Set of the same pair before
// the next Flush replaces it.
func (b *Batcher) Set(module, parameter string, value any) error {
	module = strings.TrimSpace(module)
	if module == "" {
		return ErrInvalidModule
	}
	if parameter == "" {
		return ErrInvalidParameter
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	params, ok := b.pending[module]
	if !ok {
		params = make(map[string]any)
		b.pending[module] = params
	}
	params[parameter] = value
	return nil
}

// Pending returns the number of modules with staged values.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush publishes every staged module update and clears the stage.
//
// Every module is attempted even if an earlier one fails; the returned error
// joins all failures.
func (b *Batcher) Flush() error {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return nil
	}
	batch := b.pending
	b.pending = make(map[string]map[string]any)
	for module, params := range batch {
		last, ok := b.last[module]
		if !ok {
			last = make(map[string]any)
			b.last[module] = last
		}
		for k, v := range params {
			last[k] = v
		}
	}
	pub := b.pub
	logger := b.logger
	b.mu.Unlock()

	if pub == nil {
		return nil
	}

	modules := make([]string, 0, len(batch))
	for module := range batch {
		modules = append(modules, module)
	}
	sort.Strings(modules)

	var errs []error
	for _, module := range modules {
		payload, err := json.Marshal(setMessage{Parameters: batch[module]})
		if err != nil {
			errs = append(errs, fmt.Errorf("marshalling %s: %w", module, err))
			continue
		}

		topic := mqtt.Topics{}.AnimationSet(module)
		if err := pub.Publish(topic, payload, b.qos, false); err != nil {
			logger.Warn("publishing animation parameters failed",
				"module", module,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("publishing to %q: %w", topic, err))
			continue
		}

		logger.Debug("animation parameters published",
			"module", module,
			"count", len(batch[module]),
		)
	}

	return errors.Join(errs...)
}

// Last returns a copy of the most recently flushed values for module.
func (b *Batcher) Last(module string) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()

	params, ok := b.last[module]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

// Modules returns the names of every module flushed so far, sorted.
func (b *Batcher) Modules() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, 0, len(b.last))
	for module := range b.last {
		out = append(out, module)
	}
	sort.Strings(out)
	return out
}
