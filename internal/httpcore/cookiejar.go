package httpcore

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CookieFilePerms matches spec.md §4.8/§6: the on-disk cookie file is
// owner-only, the same contract internal/tokenfile applies to OAuth tokens.
const CookieFilePerms = 0o600

// netscapeCookie is one line of the Netscape cookie file format:
// domain, includeSubdomains, path, secure, expires(unix), name, value.
type netscapeCookie struct {
	Domain            string
	IncludeSubdomains bool
	Path              string
	Secure            bool
	Expires           int64
	Name              string
	Value             string
}

// PersistentCookieJar is the thread-safe, disk-backed cookie store described
// in spec.md §3/§4.8: load tolerates a missing/corrupt file, save re-applies
// 0600, and in-memory state is a Mozilla/Netscape-format cookie set.
type PersistentCookieJar struct {
	mu      sync.Mutex
	path    string
	cookies []netscapeCookie
}

// NewPersistentCookieJar constructs a jar bound to path without touching
// disk; call Load to populate it.
func NewPersistentCookieJar(path string) *PersistentCookieJar {
	return &PersistentCookieJar{path: path}
}

// DefaultCookiePath is "~/.isolated_cookies" per spec.md §6.
func DefaultCookiePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("httpcore: resolving home directory: %w", err)
	}

	return filepath.Join(home, ".isolated_cookies"), nil
}

// Load reads the backing file. A missing file is created empty at 0600; an
// unparsable file is tolerated (spec.md §4.8/§9: "exception-tolerant load
// that silently discards corrupt state") and yields an empty in-memory set
// rather than erroring — boot-time fragility is explicitly avoided.
func (j *PersistentCookieJar) Load() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return j.createEmptyLocked()
		}
		// Unreadable for another reason (permissions, etc.) — still
		// tolerate it per the "load is idempotent and tolerates a
		// missing/corrupt file" invariant.
		j.cookies = nil
		return nil
	}

	cookies, parseErr := parseNetscapeFile(data)
	if parseErr != nil {
		j.cookies = nil
		return nil
	}

	j.cookies = cookies

	return nil
}

func (j *PersistentCookieJar) createEmptyLocked() error {
	if err := os.WriteFile(j.path, nil, CookieFilePerms); err != nil {
		return fmt.Errorf("httpcore: creating cookie file %s: %w", j.path, err)
	}

	j.cookies = nil

	return os.Chmod(j.path, CookieFilePerms)
}

// Save atomically persists the in-memory cookie set (write-to-temp + rename,
// same pattern as internal/tokenfile.Save) and re-applies 0600.
func (j *PersistentCookieJar) Save() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data := renderNetscapeFile(j.cookies)

	dir := filepath.Dir(j.path)

	tmp, err := os.CreateTemp(dir, ".cookies-*.tmp")
	if err != nil {
		return fmt.Errorf("httpcore: creating temp cookie file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("httpcore: writing cookie file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("httpcore: syncing cookie file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("httpcore: closing cookie file: %w", err)
	}

	if err := os.Chmod(tmpPath, CookieFilePerms); err != nil {
		return fmt.Errorf("httpcore: setting cookie file permissions: %w", err)
	}

	if err := os.Rename(tmpPath, j.path); err != nil {
		return fmt.Errorf("httpcore: renaming cookie file: %w", err)
	}

	success = true

	return nil
}

// CookiesFor returns all non-expired cookies applicable to host, in
// http.Cookie form, for the Cookie authenticator to copy onto a request.
func (j *PersistentCookieJar) CookiesFor(host string) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now().Unix()
	host = strings.ToLower(host)

	var out []*http.Cookie

	for _, c := range j.cookies {
		if c.Expires != 0 && c.Expires < now {
			continue
		}

		if !cookieMatchesHost(c, host) {
			continue
		}

		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value, Path: c.Path, Secure: c.Secure})
	}

	return out
}

func cookieMatchesHost(c netscapeCookie, host string) bool {
	domain := strings.TrimPrefix(strings.ToLower(c.Domain), ".")
	if domain == host {
		return true
	}

	return c.IncludeSubdomains && strings.HasSuffix(host, "."+domain)
}

// SetCookies installs or replaces cookies for host (used after a successful
// interactive login handshake).
func (j *PersistentCookieJar) SetCookies(host string, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	host = strings.ToLower(host)

	for _, c := range cookies {
		j.upsertLocked(netscapeCookie{
			Domain:  host,
			Path:    orSlash(c.Path),
			Secure:  c.Secure,
			Expires: expiryUnix(c),
			Name:    c.Name,
			Value:   c.Value,
		})
	}
}

// ExportNetscape renders the current in-memory cookie set in Netscape
// cookies.txt format, for the CLI's "cookies export" subcommand.
func (j *PersistentCookieJar) ExportNetscape() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()

	return renderNetscapeFile(j.cookies)
}

// ImportNetscape parses data as a Netscape cookies.txt file and upserts every
// entry into the jar, for the CLI's "cookies import" subcommand. It does not
// save to disk; call Save afterward to persist.
func (j *PersistentCookieJar) ImportNetscape(data []byte) error {
	cookies, err := parseNetscapeFile(data)
	if err != nil {
		return fmt.Errorf("httpcore: importing cookies: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	for _, c := range cookies {
		j.upsertLocked(c)
	}

	return nil
}

// ClearDomain removes every cookie for host, per Cookie.Logout's "clears
// cookies for the service's host domain" contract (spec.md §4.5).
func (j *PersistentCookieJar) ClearDomain(host string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	host = strings.ToLower(host)

	kept := j.cookies[:0]

	for _, c := range j.cookies {
		if !cookieMatchesHost(c, host) {
			kept = append(kept, c)
		}
	}

	j.cookies = kept
}

func (j *PersistentCookieJar) upsertLocked(c netscapeCookie) {
	for i, existing := range j.cookies {
		if existing.Domain == c.Domain && existing.Path == c.Path && existing.Name == c.Name {
			j.cookies[i] = c
			return
		}
	}

	j.cookies = append(j.cookies, c)
}

func orSlash(p string) string {
	if p == "" {
		return "/"
	}

	return p
}

func expiryUnix(c *http.Cookie) int64 {
	if c.Expires.IsZero() {
		return 0
	}

	return c.Expires.Unix()
}

// parseNetscapeFile parses the classic Netscape/Mozilla cookies.txt format:
// tab-separated domain, includeSubdomains flag, path, secure flag, expiry,
// name, value, with "#" comment lines and blank lines ignored.
func parseNetscapeFile(data []byte) ([]netscapeCookie, error) {
	var out []netscapeCookie

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			return nil, fmt.Errorf("httpcore: malformed cookie line %q", line)
		}

		expires, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("httpcore: malformed cookie expiry %q: %w", fields[4], err)
		}

		out = append(out, netscapeCookie{
			Domain:            fields[0],
			IncludeSubdomains: fields[1] == "TRUE",
			Path:              fields[2],
			Secure:            fields[3] == "TRUE",
			Expires:           expires,
			Name:              fields[5],
			Value:             fields[6],
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// renderNetscapeFile serializes cookies to the Netscape format, preceded by
// the conventional header comment.
func renderNetscapeFile(cookies []netscapeCookie) []byte {
	var b strings.Builder

	b.WriteString("# Netscape HTTP Cookie File\n")

	for _, c := range cookies {
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			c.Domain,
			boolFlag(c.IncludeSubdomains),
			orSlash(c.Path),
			boolFlag(c.Secure),
			c.Expires,
			c.Name,
			c.Value,
		)
	}

	return []byte(b.String())
}

func boolFlag(b bool) string {
	if b {
		return "TRUE"
	}

	return "FALSE"
}
