// Utilities for parsing cURL commands.
//
// The display client accepts a "Copy as cURL" capture of a browser request to the
// proxy, so an already-signed-in browser session can be reused from the terminal.
package shared

import (
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
)

var (
	curlHeaderRe = regexp.MustCompile(`-H\s+'([^']+)'|-H\s+"([^"]+)"`)
	curlCookieRe = regexp.MustCompile(`-b\s+'([^']+)'|-b\s+"([^"]+)"`)
	curlURLRe    = regexp.MustCompile(`https?://[^'"\s]+`)
)

// CurlRequest represents the URL and cookies parsed from a cURL command.
type CurlRequest struct {
	URL    string
	Cookie string
}

// ParseCurlFile reads a .sh file containing a cURL command and extracts its request parts.
func ParseCurlFile(filepath string) (*CurlRequest, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}

	return ParseCurlCommand(string(content))
}

// ParseCurlCommand parses a cURL command string. Only the URL and the cookies are kept;
// other headers are ignored.
//
// A -b cookie takes precedence over a Cookie header.
func ParseCurlCommand(curlCmd string) (*CurlRequest, error) {
	curlCmd = strings.ReplaceAll(curlCmd, "\\\n", " ")
	curlCmd = strings.ReplaceAll(curlCmd, "\\", "")

	req := &CurlRequest{URL: curlURLRe.FindString(curlCmd)}

	if m := curlCookieRe.FindStringSubmatch(curlCmd); len(m) > 1 {
		req.Cookie = firstGroup(m)
	}
	if req.Cookie == "" {
		for _, match := range curlHeaderRe.FindAllStringSubmatch(curlCmd, -1) {
			key, value, ok := strings.Cut(firstGroup(match), ":")
			if ok && strings.EqualFold(strings.TrimSpace(key), "cookie") {
				req.Cookie = strings.TrimSpace(value)
				break
			}
		}
	}

	if req.Cookie == "" {
		return nil, fmt.Errorf("%w: no cookie found in curl command", ErrInvalidInput)
	}

	return req, nil
}

func firstGroup(match []string) string {
	if match[1] != "" {
		return match[1]
	}
	return match[2]
}

// Cookies parses the captured Cookie value into individual cookies.
func (c *CurlRequest) Cookies() []*http.Cookie {
	if c.Cookie == "" {
		return nil
	}
	cookies, err := http.ParseCookie(c.Cookie)
	if err != nil {
		return nil
	}
	return cookies
}

// CookieValue returns the value of the named cookie, or "" when absent.
func (c *CurlRequest) CookieValue(name string) string {
	for _, ck := range c.Cookies() {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

// Origin returns the scheme and host of the captured URL, e.g. "http://127.0.0.1:3000".
func (c *CurlRequest) Origin() string {
	scheme, rest, ok := strings.Cut(c.URL, "://")
	if !ok {
		return ""
	}
	host, _, _ := strings.Cut(rest, "/")
	return scheme + "://" + host
}
