// Package vm provides the models for address translations
package vm

import (
	"errors"
	"fmt"
)

// ErrTranslationFault is reported when an address cannot be resolved.
var ErrTranslationFault = errors.New("translation fault")

// AccessKind tells if a translation is for a read or for a write.
type AccessKind int

// Kinds of accesses.
const (
	AccessRead AccessKind = iota
	AccessWrite
)

func (k AccessKind) String() string {
	switch k {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	default:
		return fmt.Sprintf("AccessKind(%d)", int(k))
	}
}

// A Translation carries one address translation from the client to the
// translator and back. The translator fills PAddr and Page, or sets Err when
// the translation faults. Context is owned by the client and is never touched
// by the translator.
type Translation struct {
	PID     PID
	VAddr   uint64
	Kind    AccessKind
	PAddr   uint64
	Page    Page
	Err     error
	Context interface{}
}

// A TranslationClient receives the translations that did not finish
// immediately.
type TranslationClient interface {
	FinishTranslation(t *Translation)
}

// A Translator resolves virtual addresses.
type Translator interface {
	// StartTranslation begins translating t. If it returns true, the
	// translation has finished and the result is already in t; the client
	// will not be called back. Otherwise, FinishTranslation is called on the
	// client once the result is available.
	StartTranslation(t *Translation, client TranslationClient) bool
}

func faultError(t *Translation) error {
	return fmt.Errorf("%w: pid %d, %s at 0x%x",
		ErrTranslationFault, t.PID, t.Kind, t.VAddr)
}
