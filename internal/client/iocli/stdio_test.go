package iocli

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStdio(t *testing.T) {
	stdio := NewStdio()
	assert.NotNil(t, stdio)
}

func TestPrintlnAndPrintf(t *testing.T) {
	stdio := NewStdio()

	assert.NotPanics(t, func() {
		stdio.Println("hello", "world")
	})
	assert.NotPanics(t, func() {
		stdio.Printf("test %d %s", 1, "abc")
	})
}

func TestReadInput(t *testing.T) {
	// Swap os.Stdin for a pipe that plays the user's input.
	input := "user input\n"
	r, w, err := os.Pipe()
	assert.NoError(t, err)

	go func() {
		_, _ = w.Write([]byte(input))
		_ = w.Close()
	}()

	oldStdin := os.Stdin
	defer func() { os.Stdin = oldStdin }()
	os.Stdin = r

	stdio := NewStdio()
	result, err := stdio.ReadInput("Prompt: ")
	assert.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(input), result)
}

func TestWrite(t *testing.T) {
	stdio := NewStdio()
	n, err := stdio.Write([]byte("table row\n"))
	assert.NoError(t, err)
	assert.Equal(t, len("table row\n"), n)
}
