// Package probe runs the external reachability check requested through the
// query string and captures what it prints.
package probe

import (
	"context"
	"errors"
	"net"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"pingtrap/internal/shared"
	"pingtrap/internal/shared/types"
)

const (
	// LaunchFailure is returned instead of an error when the command cannot start.
	LaunchFailure = "Failed to execute ping command"
	// InvalidTarget is returned when target validation is on and the target is rejected.
	InvalidTarget = "Invalid probe target"

	maxHostnameLen = 253
)

// Invoker runs Command with Args followed by the target as a single argv element.
// No shell is involved.
type Invoker struct {
	Command        string
	Args           []string
	Timeout        time.Duration
	ValidateTarget bool
}

// New 根据配置创建 Invoker。
func New(cfg types.ProbeConf) *Invoker {
	return &Invoker{
		Command:        cfg.Command,
		Args:           append([]string(nil), cfg.Args...),
		Timeout:        time.Duration(cfg.Timeout) * time.Second,
		ValidateTarget: cfg.ValidateTarget,
	}
}

// Run executes the probe against target and returns its decoded stdout.
// A non-zero exit status still yields whatever the command printed. Run never
// fails: launch problems come back as LaunchFailure.
func (p *Invoker) Run(ctx context.Context, target string) string {
	l := log.Ctx(ctx)

	if p.ValidateTarget && !ValidTarget(target) {
		l.Warn().Str("target", target).Msg("Probe target rejected by validation.")
		return InvalidTarget
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	args := make([]string, 0, len(p.Args)+1)
	args = append(args, p.Args...)
	args = append(args, target)

	start := time.Now()
	cmd := exec.CommandContext(ctx, p.Command, args...)
	stdout, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			l.Warn().Err(err).Str("command", p.Command).Msg("Failed to launch probe command.")
			return LaunchFailure
		}
		l.Debug().Int("exit_code", exitErr.ExitCode()).Str("target", target).Msg("Probe command exited with non-zero status.")
	}

	l.Debug().
		Str("target", target).
		Dur("elapsed", time.Since(start)).
		Int("output_bytes", len(stdout)).
		Msg("Probe finished.")
	return shared.DecodeLossy(stdout)
}

// ValidTarget reports whether target is an IP literal or a syntactically valid
// DNS host name. It does not resolve anything.
func ValidTarget(target string) bool {
	if target == "" {
		return false
	}
	if net.ParseIP(target) != nil {
		return true
	}
	host := strings.TrimSuffix(target, ".")
	if host == "" || len(host) > maxHostnameLen {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if !validLabel(label) {
			return false
		}
	}
	return true
}

func validLabel(label string) bool {
	if len(label) == 0 || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
		default:
			return false
		}
	}
	return true
}
