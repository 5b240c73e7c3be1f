package commands

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoPassword is returned when no password was given and none can be
// prompted for
var ErrNoPassword = errors.New("no password given: pass it as the second argument, set " + EnvPrefix + "_PASSWORD or run in a terminal")

// password returns the configured password, or prompts for one on the
// terminal under label. With confirm the prompt is repeated and both entries
// must match.
func password(configured, label string, confirm bool, prompt io.Writer) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, ErrNoPassword
	}

	pass, err := readPassword(fd, label+": ", prompt)
	if err != nil {
		return nil, err
	}
	if len(pass) == 0 {
		return nil, errors.New("password cannot be empty")
	}
	if !confirm {
		return pass, nil
	}

	again, err := readPassword(fd, "Confirm "+strings.ToLower(label)+": ", prompt)
	if err != nil {
		clear(pass)
		return nil, err
	}
	defer clear(again)

	if !bytes.Equal(pass, again) {
		clear(pass)
		return nil, errors.New("passwords do not match")
	}
	return pass, nil
}

func readPassword(fd int, label string, prompt io.Writer) ([]byte, error) {
	fmt.Fprint(prompt, label)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return pass, nil
}
