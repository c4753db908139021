// Command gensecret prints random hex key suitable for SECRET_KEY.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

const (
	defaultBytes = 32
	minBytes     = 16
)

func generate(r io.Reader, n int) (string, error) {
	if n < minBytes {
		return "", fmt.Errorf("key must be at least %d bytes", minBytes)
	}

	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("error while generating secret key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func run(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("gensecret", pflag.ContinueOnError)
	n := fs.IntP("bytes", "b", defaultBytes, "Key length in bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return errors.New("unexpected arguments")
	}

	key, err := generate(rand.Reader, *n)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, key)
	return err
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "gensecret: %v\n", err)
		os.Exit(1)
	}
}
