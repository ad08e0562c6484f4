package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errPasswordMismatch = errors.New("passwords do not match")

// readPassword asks for the data directory password
func readPassword(cmd *cobra.Command) (string, error) {
	answers, err := prompt(cmd, "Password: ")
	if err != nil {
		return "", err
	}
	return answers[0], nil
}

// readNewPassword asks for a new password twice
func readNewPassword(cmd *cobra.Command) (string, error) {
	answers, err := prompt(cmd, "New password: ", "Repeat password: ")
	if err != nil {
		return "", err
	}
	if answers[0] != answers[1] {
		return "", errPasswordMismatch
	}
	return answers[0], nil
}

// prompt writes each prompt to stderr and reads one answer per prompt,
// without echo when stdin is a terminal and line by line otherwise
func prompt(cmd *cobra.Command, prompts ...string) ([]string, error) {
	in := cmd.InOrStdin()
	tty := in == os.Stdin && term.IsTerminal(int(os.Stdin.Fd()))

	var lines *bufio.Reader
	if !tty {
		lines = bufio.NewReader(in)
	}

	answers := make([]string, 0, len(prompts))
	for _, p := range prompts {
		fmt.Fprint(cmd.ErrOrStderr(), p)

		if tty {
			raw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return nil, fmt.Errorf("failed to read password: %w", err)
			}
			answers = append(answers, string(raw))
			continue
		}

		line, err := lines.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		answers = append(answers, strings.TrimRight(line, "\r\n"))
	}
	return answers, nil
}
