package foundry

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
)

// serviceURLPattern matches the service address printed by `foundry service status`.
var serviceURLPattern = regexp.MustCompile(`https?://(?:[a-zA-Z0-9.-]+|\d{1,3}(?:\.\d{1,3}){3}):\d+`)

// CommandRunner runs an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// IsInstalled reports whether the foundry CLI is on PATH.
func IsInstalled() bool {
	_, err := exec.LookPath("foundry")
	return err == nil
}

// ServiceURL extracts the service base URL from `foundry service` output.
func ServiceURL(output string) (string, bool) {
	m := serviceURLPattern.FindString(output)
	if m == "" {
		return "", false
	}
	return strings.TrimRight(m, "/"), true
}

// Status returns the URL of the running service, or "" when it is not running.
func Status(ctx context.Context, run CommandRunner) (string, error) {
	if run == nil {
		run = execRunner
	}
	output, err := run(ctx, "foundry", "service", "status")
	if err != nil {
		if len(output) == 0 {
			return "", fmt.Errorf("failed to get foundry service status: %w", err)
		}
		log.Debugf("foundry service status exited with %v", err)
	}
	u, _ := ServiceURL(string(output))
	return u, nil
}

// Start starts the service and returns its URL.
func Start(ctx context.Context, run CommandRunner) (string, error) {
	if run == nil {
		run = execRunner
	}
	output, err := run(ctx, "foundry", "service", "start")
	if err != nil {
		return "", fmt.Errorf("failed to start foundry service: %w\nOutput: %s", err, string(output))
	}
	if u, ok := ServiceURL(string(output)); ok {
		return u, nil
	}
	u, err := Status(ctx, run)
	if err != nil {
		return "", err
	}
	if u == "" {
		return "", fmt.Errorf("foundry service started but its URL could not be determined")
	}
	return u, nil
}

// ResolveEndpoint returns endpoint when set. Otherwise it asks the foundry CLI,
// starting the service when autoStart is on.
func ResolveEndpoint(ctx context.Context, endpoint string, autoStart bool, run CommandRunner) (string, error) {
	if endpoint != "" {
		return strings.TrimRight(endpoint, "/"), nil
	}

	u, err := Status(ctx, run)
	if err != nil {
		return "", err
	}
	if u != "" {
		log.WithField("endpoint", u).Debug("found running foundry service")
		return u, nil
	}
	if !autoStart {
		return "", fmt.Errorf("foundry service is not running; start it with 'foundry service start' or set foundry.auto_start")
	}

	log.Info("starting foundry service")
	return Start(ctx, run)
}
