package response

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// mockProber records the targets it is asked to probe.
type mockProber struct {
	output  string
	targets []string
}

func (m *mockProber) Run(ctx context.Context, target string) string {
	m.targets = append(m.targets, target)
	return m.output
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name  string
		query map[string]string
		want  Intent
	}{
		{"no query", map[string]string{}, Default()},
		{"nil query", nil, Default()},
		{"other keys only", map[string]string{"foo": "bar"}, Default()},
		{"probe key", map[string]string{"ping": "127.0.0.1"}, Probe("127.0.0.1")},
		{"probe key with others", map[string]string{"ping": "h", "x": "y"}, Probe("h")},
		{"empty probe value", map[string]string{"ping": ""}, Probe("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.query, "ping"); got != tt.want {
				t.Errorf("Decide() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResponseBytes_Framing(t *testing.T) {
	got := string(OK("FooBar").Bytes())
	expect := strings.Join([]string{
		"HTTP/1.1 200 OK\r\n",
		"Content-Type: text/plain\r\n",
		"Content-Length: 6\r\n",
		"\r\n",
		"FooBar",
	}, "")
	if got != expect {
		t.Errorf("Got %q, want %q", got, expect)
	}
}

func TestResponseBytes_ContentLengthCountsBytes(t *testing.T) {
	body := "héllo ✓ 🙂"
	got := string(OK(body).Bytes())

	// 9 characters, 15 bytes.
	if !strings.Contains(got, "Content-Length: 15\r\n") {
		t.Errorf("Expected a byte-based Content-Length, got %q", got)
	}
	if !strings.HasSuffix(got, "\r\n\r\n"+body) {
		t.Errorf("Expected the body to follow the header block, got %q", got)
	}
}

func TestBadRequest(t *testing.T) {
	resp := BadRequest(errors.New("failed to parse request: request line has no target: \"GET\""))
	got := string(resp.Bytes())

	if !strings.HasPrefix(got, "HTTP/1.1 400 Bad Request\r\n") {
		t.Errorf("Unexpected status line: %q", got)
	}
	if !strings.HasSuffix(got, "request line has no target: \"GET\"") {
		t.Errorf("Expected the violation in the body, got %q", got)
	}
}

func TestGenerator_Default(t *testing.T) {
	prober := &mockProber{output: "unused"}
	resp := NewGenerator(prober).Respond(context.Background(), Default())

	if resp.Status != 200 || string(resp.Body) != Greeting {
		t.Errorf("Unexpected default response: %d %q", resp.Status, resp.Body)
	}
	if len(prober.targets) != 0 {
		t.Errorf("Expected no probe for the default intent, got %v", prober.targets)
	}
}

func TestGenerator_Probe(t *testing.T) {
	prober := &mockProber{output: "PING 127.0.0.1: 2 packets transmitted\n"}
	resp := NewGenerator(prober).Respond(context.Background(), Probe("127.0.0.1"))

	if resp.Status != 200 {
		t.Errorf("Expected status 200, got %d", resp.Status)
	}
	if string(resp.Body) != prober.output {
		t.Errorf("Expected the probe output as body, got %q", resp.Body)
	}
	if len(prober.targets) != 1 || prober.targets[0] != "127.0.0.1" {
		t.Errorf("Expected one probe against 127.0.0.1, got %v", prober.targets)
	}
}

func TestIntentKindString(t *testing.T) {
	if KindDefault.String() != "default" || KindProbe.String() != "probe" {
		t.Errorf("Unexpected kind names: %s %s", KindDefault, KindProbe)
	}
}
