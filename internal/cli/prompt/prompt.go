// Package prompt wraps promptui for the interactive parts of cntctl and
// cntfs.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")

// IsAborted returns true if the error indicates the user aborted (Ctrl+C).
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, ErrAborted)
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsAborted(err) {
		return ErrAborted
	}
	return err
}

// Input prompts for text input.
func Input(label string, defaultValue string) (string, error) {
	prompt := promptui.Prompt{
		Label:   label,
		Default: defaultValue,
	}

	result, err := prompt.Run()
	return result, wrapError(err)
}

// Username prompts for a username, offering defaultValue.
func Username(defaultValue string) (string, error) {
	prompt := promptui.Prompt{
		Label:    "Username",
		Default:  defaultValue,
		Validate: ValidateUsername,
	}

	result, err := prompt.Run()
	return strings.TrimSpace(result), wrapError(err)
}

// ValidateUsername rejects names the server would treat as a decode error.
func ValidateUsername(input string) error {
	name := strings.TrimSpace(input)
	if name == "" {
		return errors.New("username is required")
	}
	if strings.ContainsAny(name, " \t/") {
		return fmt.Errorf("username %q must not contain spaces or slashes", name)
	}
	return nil
}
