package common

import "errors"

// ErrModulePaused is returned by Guard when the named module is halted.
var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a native module is administratively halted.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the module is paused. A nil view or empty
// module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// PauseSet is a static PauseView backed by a set of module names. It is the
// implementation used when pauses come from node configuration.
type PauseSet map[string]struct{}

// NewPauseSet builds a PauseSet from the supplied module names.
func NewPauseSet(modules []string) PauseSet {
	set := make(PauseSet, len(modules))
	for _, m := range modules {
		if m == "" {
			continue
		}
		set[m] = struct{}{}
	}
	return set
}

// IsPaused implements the PauseView interface.
func (p PauseSet) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	_, ok := p[module]
	return ok
}
