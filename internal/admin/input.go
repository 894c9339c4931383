package admin

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/TimShare/TaskFlow/internal/cryptox"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// getPassword prompts twice on w and reads the password from the terminal
// without echo.
func getPassword(w io.Writer) (string, error) {
	first, err := prompt(w, "Enter password: ")
	if err != nil {
		return "", err
	}
	second, err := prompt(w, "Repeat password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	if first == "" {
		return "", errors.New("password must not be empty")
	}
	return first, nil
}

func prompt(w io.Writer, text string) (string, error) {
	if _, err := fmt.Fprint(w, text); err != nil {
		return "", err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	defer cryptox.Wipe(pw)
	return string(pw), nil
}
