package prompt

import (
	"errors"
	"os"

	"github.com/manifoldco/promptui"
)

// ErrPasswordMismatch indicates passwords don't match.
var ErrPasswordMismatch = errors.New("passwords do not match")

// ErrEmptyPassword is returned for an empty entry.
var ErrEmptyPassword = errors.New("password must not be empty")

// Password prompts for a password input with masking.
func Password(label string) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(input string) error {
			if input == "" {
				return ErrEmptyPassword
			}
			return nil
		},
	}

	result, err := prompt.Run()
	return result, wrapError(err)
}

// PasswordFromEnv returns the value of envVar when set, so scripts can run
// without a terminal. Otherwise it prompts.
func PasswordFromEnv(envVar, label string) (string, error) {
	if pw, ok := os.LookupEnv(envVar); ok {
		if pw == "" {
			return "", ErrEmptyPassword
		}
		return pw, nil
	}
	return Password(label)
}

// NewPassword prompts twice and fails with ErrPasswordMismatch if the
// entries differ.
func NewPassword() (string, error) {
	password, err := Password("Password")
	if err != nil {
		return "", err
	}

	confirm, err := Password("Confirm password")
	if err != nil {
		return "", err
	}

	if password != confirm {
		return "", ErrPasswordMismatch
	}
	return password, nil
}
