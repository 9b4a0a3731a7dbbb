// Package account loads the account and proxy lists.
package account

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

var (
	ErrNoAccounts    = errors.New("no accounts")
	ErrProxyMismatch = errors.New("account and proxy counts differ")
	ErrNoUser        = errors.New("init data has no user")
)

// Account is one line of the account list paired with its proxy.
type Account struct {
	Index     int
	InitData  string
	Identity  string
	FirstName string
	Proxy     string
}

// Label is the one-based display number used in logs.
func (a Account) Label() int { return a.Index + 1 }

// ParseInitData extracts the stable identity and display name from the
// platform init payload (the URL-encoded user= parameter).
func ParseInitData(initData string) (identity, firstName string, err error) {
	q, err := url.ParseQuery(strings.TrimSpace(initData))
	if err != nil {
		return "", "", fmt.Errorf("parse init data: %w", err)
	}
	raw := q.Get("user")
	if raw == "" {
		return "", "", ErrNoUser
	}
	var user struct {
		ID        json.Number `json:"id"`
		FirstName string      `json:"first_name"`
	}
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return "", "", fmt.Errorf("decode init data user: %w", err)
	}
	if user.ID.String() == "" {
		return "", "", ErrNoUser
	}
	return user.ID.String(), user.FirstName, nil
}

// ReadLines returns the non-blank lines of path with CR stripped.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(strings.ReplaceAll(sc.Text(), "\r", ""))
		if line != "" {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

// Load pairs the account list with the proxy list by index. With proxies
// enabled both lists must have the same length.
func Load(dataPath, proxyPath string, useProxy bool) ([]Account, error) {
	lines, err := ReadLines(dataPath)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrNoAccounts
	}
	var proxies []string
	if useProxy {
		proxies, err = ReadLines(proxyPath)
		if err != nil {
			return nil, fmt.Errorf("load proxies: %w", err)
		}
		if len(proxies) != len(lines) {
			return nil, fmt.Errorf("%w: %d accounts, %d proxies", ErrProxyMismatch, len(lines), len(proxies))
		}
	}

	accounts := make([]Account, 0, len(lines))
	for i, line := range lines {
		id, name, err := ParseInitData(line)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", i+1, err)
		}
		a := Account{Index: i, InitData: line, Identity: id, FirstName: name}
		if useProxy {
			a.Proxy = proxies[i]
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}
