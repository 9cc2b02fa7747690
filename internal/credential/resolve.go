package credential

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Environment variables consulted for a token, in order.
const (
	EnvToken       = "ZIPUP_TOKEN"
	EnvGitHubToken = "GITHUB_TOKEN"
)

// Source names where a resolved token came from.
type Source string

const (
	SourceFlag  Source = "flag"
	SourceEnv   Source = "env"
	SourceStore Source = "store"
)

// ErrNoToken is returned when no token source produced a value.
var ErrNoToken = errors.New("no access token: pass --token, set ZIPUP_TOKEN or GITHUB_TOKEN, or run 'zipup auth login'")

// Resolver picks the token for an upload: an explicit value first, then the
// environment, then the encrypted store.
type Resolver struct {
	Store TokenStore
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
	// Passphrase is asked for only when the store is used.
	Passphrase func() (string, error)
}

// Resolve returns the token and where it came from.
func (r *Resolver) Resolve(explicit string) (string, Source, error) {
	if tok := strings.TrimSpace(explicit); tok != "" {
		return tok, SourceFlag, nil
	}

	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, key := range []string{EnvToken, EnvGitHubToken} {
		if tok := strings.TrimSpace(getenv(key)); tok != "" {
			return tok, SourceEnv, nil
		}
	}

	if r.Store == nil || !r.Store.IsConfigured() {
		return "", "", ErrNoToken
	}
	if r.Passphrase == nil {
		return "", "", fmt.Errorf("token store requires a passphrase: %w", ErrNoToken)
	}
	pass, err := r.Passphrase()
	if err != nil {
		return "", "", fmt.Errorf("reading passphrase: %w", err)
	}
	tok, err := r.Store.Load(pass)
	if err != nil {
		return "", "", err
	}
	return tok, SourceStore, nil
}

// PromptSecret writes prompt to out and reads a line from in without echo
// when in is a terminal. Piped input is read as a plain line.
func PromptSecret(in *os.File, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return readLine(in)
}

func readLine(r io.Reader) (string, error) {
	var b strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				break
			}
			b.WriteByte(buf[0])
		}
		if errors.Is(err, io.EOF) {
			if b.Len() == 0 {
				return "", io.ErrUnexpectedEOF
			}
			break
		}
		if err != nil {
			return "", err
		}
	}
	return strings.TrimRight(b.String(), "\r"), nil
}
