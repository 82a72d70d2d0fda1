package iocli

// IO abstracts terminal interaction so commands can be tested without a TTY.
// It doubles as an io.Writer for tabular output.
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	ReadPassword(prompt string) (string, error)
	Write(p []byte) (n int, err error)
}
