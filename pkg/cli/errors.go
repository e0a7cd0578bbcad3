package cli

import "fmt"

// ConfigError reports an invalid or missing configuration value. Field
// is the dotted config path, e.g. "retention.storage_root"; it is empty
// when the config file itself could not be loaded.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config error: " + e.Message
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// NewConfigError creates a ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// CommandError wraps a subcommand failure for the exit path.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err}
}

// PackError ties a command failure to the evidence pack it was
// operating on, so multi-pack runs name the offending pack.
type PackError struct {
	Command string
	Pack    string
	Err     error
}

func (e *PackError) Error() string {
	return fmt.Sprintf("command %s failed on pack %s: %v", e.Command, e.Pack, e.Err)
}

func (e *PackError) Unwrap() error {
	return e.Err
}

// NewPackError creates a PackError. pack is the execution id or the
// pack directory path, whichever the command was given.
func NewPackError(command, pack string, err error) *PackError {
	return &PackError{Command: command, Pack: pack, Err: err}
}
