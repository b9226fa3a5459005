package copyengine

import (
	"errors"
	"fmt"

	"github.com/sarchlab/copyengine/mem/vm"
)

// ErrBusy is returned when a transfer is requested while another one is
// still active.
var ErrBusy = errors.New("copy engine is busy")

// ErrInvalidRequest is returned when a transfer request is malformed or
// addresses memory outside the configured ranges.
var ErrInvalidRequest = errors.New("invalid copy request")

// A TransferFaultError reports a transfer that was aborted because an address
// could not be translated. It unwraps to the translator's error, so
// errors.Is(err, vm.ErrTranslationFault) holds.
type TransferFaultError struct {
	TransferID string
	Access     vm.AccessKind
	Space      Space
	VAddr      uint64
	Err        error
}

func (e *TransferFaultError) Error() string {
	return fmt.Sprintf("transfer %s aborted: %s fault in %s space at 0x%x: %v",
		e.TransferID, e.Access, e.Space, e.VAddr, e.Err)
}

func (e *TransferFaultError) Unwrap() error {
	return e.Err
}

func invalidRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
