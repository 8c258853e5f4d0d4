// Package host implements the external side of the effect protocol (§4.5,
// §6): a registry of handlers for effect names the force loop cannot
// resolve itself, and the Run loop that repeatedly forces a Function,
// dispatches its suspensions, and applies continuations until the
// computation reaches a terminal value or a fatal Exception.
package host

import (
	"context"
	"fmt"

	"github.com/arcanum-run/arcanum/internal/function"
	"github.com/arcanum-run/arcanum/internal/log"
	"github.com/arcanum-run/arcanum/internal/thunk"
	"github.com/arcanum-run/arcanum/internal/value"
)

// Handler resolves one external effect: given the effect's argument
// values, it returns the value the continuation should be applied with.
type Handler func(ctx context.Context, args []value.Value) (value.Value, error)

// Host holds the registry of effect handlers a Run loop dispatches to.
type Host struct {
	handlers map[string]Handler
	log      *log.Logger
}

// New creates a Host with an empty registry.
func New() *Host {
	return &Host{handlers: make(map[string]Handler), log: log.DefaultLogger()}
}

// Register installs the handler for a named effect. Registering a name
// already in the force loop's built-in catalog is a programming error: the
// built-in always wins, since it never reaches the host.
func (h *Host) Register(name string, handler Handler) {
	if thunk.IsBuiltin(name) {
		panic(fmt.Sprintf("host: %q is a built-in effect, it can never reach a host handler", name))
	}

	h.handlers[name] = handler
}

// ErrUnhandledEffect is returned by Run when a Function suspends at an
// effect name with no registered handler.
type ErrUnhandledEffect struct {
	Name string
}

func (e *ErrUnhandledEffect) Error() string {
	return fmt.Sprintf("host: no handler registered for effect %q", e.Name)
}

// Run drives f to completion: force, and while the result is a symbolic
// function naming a registered effect, dispatch to its handler and apply
// the continuation with the handler's result, then force again (§4.4).
//
// Run returns the first result that is not a symbolic function: a terminal
// value, an arcane Function handed back by the force loop, or an Exception
// if the force loop faulted. It returns an error if the Function suspended
// at an effect with no registered handler or a handler failed.
func (h *Host) Run(ctx context.Context, f *function.Function) (value.Value, error) {
	current := f

	for {
		result, err := thunk.Force(current)
		if err != nil {
			return nil, err
		}

		sym, ok := result.(*function.Function)
		if !ok {
			return result, nil
		}

		if !sym.IsSymbolic() {
			// An arcane function returned by a built-in (e.g. get_argument's
			// reification, or create_function) is itself a terminal value here:
			// Run only continues the loop for suspensions.
			return result, nil
		}

		name, _ := sym.EffectName()

		handler, registered := h.handlers[name]
		if !registered {
			return nil, &ErrUnhandledEffect{Name: name}
		}

		args, _ := sym.EffectValueArgs()
		k, _ := sym.Continuation()

		h.log.Debug("host: dispatching effect", "name", name, "args", len(args))

		resumeValue, err := handler(ctx, args)
		if err != nil {
			return nil, fmt.Errorf("host: effect %q: %w", name, err)
		}

		next, err := resumeArgument(k, resumeValue)
		if err != nil {
			return nil, err
		}

		current = next
	}
}

// resumeArgument installs resumeValue as k's next pending argument and
// returns k itself, ready to be forced — the host-side half of the
// apply/get_argument protocol (§4.5).
func resumeArgument(k *function.Function, resumeValue value.Value) (*function.Function, error) {
	if k == nil {
		return nil, fmt.Errorf("host: effect suspended without a continuation")
	}

	k.AppendPendingArg(resumeValue)

	return k, nil
}
