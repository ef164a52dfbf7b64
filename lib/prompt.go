package lib

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh/terminal"
)

// Prompt reads a line from the terminal, hiding the input when sensitive.
func Prompt(prompt string, sensitive bool) (string, error) {
	fmt.Printf("%s: ", prompt)
	if sensitive {
		input, err := terminal.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(input), nil
	}

	reader := bufio.NewReader(os.Stdin)
	value, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(value, "\r\n"), nil
}

// Confirm asks a yes/no question, defaulting to no.
func Confirm(prompt string) bool {
	answer, err := Prompt(prompt+" [y/N]", false)
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
