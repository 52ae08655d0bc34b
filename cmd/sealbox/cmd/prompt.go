package cmd

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/jmcleod/sealbox/internal/util"
)

const (
	envPassword    = "SEALBOX_PASSWORD"
	envNewPassword = "SEALBOX_NEW_PASSWORD"

	minPasswordLen = 10
)

var errPasswordMismatch = errors.New("passwords do not match")

var stdin = bufio.NewReader(os.Stdin)

// readPassword returns the value of env if it is set. Otherwise it reads
// without echo from a terminal, or one line from piped stdin. With confirm
// set, a terminal user is asked twice.
func readPassword(env, prompt string, confirm bool) ([]byte, error) {
	if v, ok := os.LookupEnv(env); ok {
		return []byte(v), nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readLine(stdin)
	}
	pw, err := promptPassword(fd, prompt)
	if err != nil || !confirm {
		return pw, err
	}
	again, err := promptPassword(fd, "Confirm password: ")
	if err != nil {
		util.WipeBytes(pw)
		return nil, err
	}
	defer util.WipeBytes(again)
	if !bytes.Equal(pw, again) {
		util.WipeBytes(pw)
		return nil, errPasswordMismatch
	}
	return pw, nil
}

func promptPassword(fd int, prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr) // New line after password
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return pw, nil
}

func readLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return bytes.TrimRight(line, "\r\n"), nil
}

func checkNewPassword(pw []byte) error {
	if len(pw) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	return nil
}
