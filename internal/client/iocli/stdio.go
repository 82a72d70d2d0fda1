package iocli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// Stdio implements IO on top of the process's standard streams.
type Stdio struct{}

func NewStdio() IO {
	return &Stdio{}
}

func (s *Stdio) Println(a ...any) {
	fmt.Println(a...)
}

func (s *Stdio) Printf(format string, a ...any) {
	fmt.Printf(format, a...)
}

func (s *Stdio) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

func (s *Stdio) ReadInput(prompt string) (string, error) {
	s.Printf("%s", prompt)
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// ReadPassword reads without echo when stdin is a terminal.
func (s *Stdio) ReadPassword(prompt string) (string, error) {
	s.Printf("%s", prompt)
	fd := int(os.Stdin.Fd())
	pwBytes, err := term.ReadPassword(fd)
	s.Println("")
	if err != nil {
		return "", err
	}
	return string(pwBytes), nil
}
