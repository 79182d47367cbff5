package exitcodes

import (
	"errors"

	"treekeeper/internal/config"
	"treekeeper/internal/safety"
)

// Exit codes for the treekeeper CLI and daemon.
// Scripts and service managers rely on these values.
const (
	Success         = 0 // Successful execution
	Failure         = 1 // Usage error or unclassified failure
	InvalidConfig   = 2 // Configuration file invalid or missing
	SafetyViolation = 3 // Safety validator blocked an operation
	RuntimeError    = 4 // Runtime error during execution
)

// FromError maps an error returned by a command to its exit code
func FromError(err error) int {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, config.ErrInvalid):
		return InvalidConfig
	case errors.Is(err, safety.ErrInvalidPath),
		errors.Is(err, safety.ErrProtectedPath),
		errors.Is(err, safety.ErrOutsideAllowed),
		errors.Is(err, safety.ErrTraversal),
		errors.Is(err, safety.ErrSymlinkEscape):
		return SafetyViolation
	default:
		return RuntimeError
	}
}
