package lifecycle

import (
	"context"
	"fmt"

	"github.com/GoCodeAlone/modcore/interceptor"
	"github.com/GoCodeAlone/modcore/logging"
)

// Invoke runs the phase hook of instance, if it has one. Proxies are
// unwrapped first so hooks run on the real component. Errors and panics are
// logged and swallowed; Invoke reports whether a hook ran and succeeded.
func Invoke(ctx context.Context, phase Phase, instance any, logger logging.Logger) (ok bool) {
	logger = logging.OrNop(logger)
	target := interceptor.Identity(instance)

	var hook func(context.Context) error
	switch phase {
	case PhaseActivate:
		if a, is := target.(Activator); is {
			hook = a.OnActivate
		}
	case PhaseDeactivate:
		if d, is := target.(Deactivator); is {
			hook = d.OnDeactivate
		}
	}
	if hook == nil {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("lifecycle hook panicked", "phase", string(phase), "component", fmt.Sprintf("%T", target), "panic", r)
			ok = false
		}
	}()

	if err := hook(ctx); err != nil {
		logger.Error("lifecycle hook failed", "phase", string(phase), "component", fmt.Sprintf("%T", target), "error", err)
		return false
	}
	logger.Debug("lifecycle hook completed", "phase", string(phase), "component", fmt.Sprintf("%T", target))
	return true
}
