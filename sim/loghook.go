package sim

import (
	"log"
)

// A LogHook is a hook that writes simulation activity into a logger.
type LogHook interface {
	Hook
}

// LogHookBase provides the common logic for all LogHooks.
type LogHookBase struct {
	*log.Logger
}
