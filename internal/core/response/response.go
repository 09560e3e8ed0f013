// Package response turns a decided Intent into the bytes written back to the client.
package response

import (
	"context"
	"strconv"
	"strings"
)

const contentTypeText = "text/plain"

// Greeting is the body of the default response.
const Greeting = `
    .-""""""-.
  .'          '.
 /   O      O   \
:                :
|    \      /    |
:     '.__..'     :
 \     .-""-.    /
  '.          .'
    '-......-
    HELLO, HACKER!
    `

// Response is a complete, single-shot reply.
type Response struct {
	Status      int
	Reason      string
	ContentType string
	Body        []byte
}

// Bytes renders the status line, the two headers and the body. Content-Length
// counts bytes, not characters.
func (r *Response) Bytes() []byte {
	var sb strings.Builder
	sb.Grow(64 + len(r.Body))
	sb.WriteString("HTTP/1.1 ")
	sb.WriteString(strconv.Itoa(r.Status))
	sb.WriteString(" ")
	sb.WriteString(r.Reason)
	sb.WriteString("\r\nContent-Type: ")
	sb.WriteString(r.ContentType)
	sb.WriteString("\r\nContent-Length: ")
	sb.WriteString(strconv.Itoa(len(r.Body)))
	sb.WriteString("\r\n\r\n")
	sb.Write(r.Body)
	return []byte(sb.String())
}

// OK wraps body in a 200 text response.
func OK(body string) *Response {
	return &Response{
		Status:      200,
		Reason:      "OK",
		ContentType: contentTypeText,
		Body:        []byte(body),
	}
}

// BadRequest is the only non-200 response. It is produced by the connection
// handler when parsing fails, and its body describes the violation.
func BadRequest(err error) *Response {
	return &Response{
		Status:      400,
		Reason:      "Bad Request",
		ContentType: contentTypeText,
		Body:        []byte(err.Error()),
	}
}

// Prober runs the diagnostic probe and returns its captured output.
type Prober interface {
	Run(ctx context.Context, target string) string
}

// Generator answers well-formed requests. It only ever produces 200s.
type Generator struct {
	prober Prober
}

func NewGenerator(prober Prober) *Generator {
	return &Generator{prober: prober}
}

// Respond renders the response for intent, running the probe when asked to.
func (g *Generator) Respond(ctx context.Context, intent Intent) *Response {
	switch intent.Kind {
	case KindProbe:
		return OK(g.prober.Run(ctx, intent.Target))
	default:
		return OK(Greeting)
	}
}
