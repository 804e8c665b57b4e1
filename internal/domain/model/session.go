package model

import (
	"fmt"
	"strconv"
	"strings"
)

// SessionKey scopes every remote call to one pull request.
type SessionKey struct {
	Owner  string
	Repo   string
	Number int
}

// ParseSessionKey parses "owner/repo#number".
func ParseSessionKey(raw string) (SessionKey, error) {
	repoPart, numPart, ok := strings.Cut(strings.TrimSpace(raw), "#")
	if !ok {
		return SessionKey{}, fmt.Errorf("%w: %q: expected owner/repo#number", ErrInvalidSessionKey, raw)
	}
	owner, repo, ok := strings.Cut(repoPart, "/")
	if !ok {
		return SessionKey{}, fmt.Errorf("%w: %q: expected owner/repo#number", ErrInvalidSessionKey, raw)
	}
	number, err := strconv.Atoi(numPart)
	if err != nil {
		return SessionKey{}, fmt.Errorf("%w: %q: bad pull request number: %v", ErrInvalidSessionKey, raw, err)
	}
	key := SessionKey{Owner: owner, Repo: repo, Number: number}
	if err := key.Validate(); err != nil {
		return SessionKey{}, err
	}
	return key, nil
}

// Validate fails when any component is missing.
func (k SessionKey) Validate() error {
	if k.Owner == "" || k.Repo == "" || k.Number <= 0 || strings.Contains(k.Repo, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidSessionKey, k.String())
	}
	return nil
}

// FullName returns "owner/repo".
func (k SessionKey) FullName() string {
	return k.Owner + "/" + k.Repo
}

func (k SessionKey) String() string {
	return fmt.Sprintf("%s/%s#%d", k.Owner, k.Repo, k.Number)
}
