// Package request parses the raw, single-read text a client sends into headers,
// body and query parameters.
package request

import (
	"fmt"
	"strings"
)

const (
	crlf = "\r\n"
	lf   = "\n"

	headerSeparator = ": "
)

// ParsedRequest 只在单个连接的处理期间存在，不会被持久化。
type ParsedRequest struct {
	Method  string
	Target  string
	Version string

	Headers map[string]string
	Body    string
	Query   map[string]string
}

// ParseError describes a malformed request line or header line.
type ParseError struct {
	Reason string
	Line   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse request: %s: %q", e.Reason, e.Line)
}

// Parse splits raw into the request line, the header block and the body.
//
// The separator is taken from how the request line ends: CRLF, or a bare LF
// when the first line ends without CR. Later lines use the same separator. Header lines must look like "Key: Value" with exactly one ": ";
// anything else up to the first empty line is rejected. Everything after the
// empty line is the body, rejoined with the same separator and left untouched.
func Parse(raw string) (*ParsedRequest, error) {
	sep := lineSeparator(raw)
	lines := strings.Split(raw, sep)

	req := &ParsedRequest{
		Headers: make(map[string]string),
		Query:   make(map[string]string),
	}
	if err := req.parseRequestLine(lines[0]); err != nil {
		return nil, err
	}

	rest := lines[1:]
	for len(rest) > 0 {
		line := rest[0]
		rest = rest[1:]
		if line == "" {
			break
		}
		key, value, err := parseHeader(line)
		if err != nil {
			return nil, err
		}
		req.Headers[key] = value
	}

	req.Body = strings.Join(rest, sep)
	return req, nil
}

func lineSeparator(raw string) string {
	i := strings.IndexByte(raw, '\n')
	if i < 0 || (i > 0 && raw[i-1] == '\r') {
		return crlf
	}
	return lf
}

func (r *ParsedRequest) parseRequestLine(line string) error {
	fields := strings.Fields(line)
	switch len(fields) {
	case 0:
		return &ParseError{Reason: "missing request line", Line: line}
	case 1:
		return &ParseError{Reason: "request line has no target", Line: line}
	}

	r.Method = fields[0]
	r.Target = fields[1]
	if len(fields) > 2 {
		r.Version = fields[2]
	}
	r.Query = ParseQuery(r.Target)
	return nil
}

func parseHeader(line string) (string, string, error) {
	if strings.Count(line, headerSeparator) != 1 {
		return "", "", &ParseError{Reason: "malformed header line", Line: line}
	}
	key, value, _ := strings.Cut(line, headerSeparator)
	if key == "" {
		return "", "", &ParseError{Reason: "header line has an empty key", Line: line}
	}
	return key, value, nil
}

// ParseQuery extracts key=value pairs from the part of target after the first '?'.
// Pairs without '=' are dropped and a repeated key keeps its last value.
// Nothing is percent-decoded.
func ParseQuery(target string) map[string]string {
	query := make(map[string]string)
	_, rawQuery, found := strings.Cut(target, "?")
	if !found {
		return query
	}
	for _, pair := range strings.Split(rawQuery, "&") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		query[key] = value
	}
	return query
}
