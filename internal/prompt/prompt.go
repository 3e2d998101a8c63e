package prompt

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Build joins piped stdin and the positional arguments into one prompt.
// Stdin comes first so `cat file | llmfoundry prompt "summarize"` reads naturally.
func Build(args []string, stdin io.Reader) (string, error) {
	var parts []string

	if stdin != nil {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		if s := strings.TrimSpace(string(data)); s != "" {
			parts = append(parts, s)
		}
	}

	if s := strings.TrimSpace(strings.Join(args, " ")); s != "" {
		parts = append(parts, s)
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no prompt given: pass text as arguments or pipe it on stdin")
	}
	return strings.Join(parts, "\n"), nil
}

// Stdin returns os.Stdin when it is a pipe or file, nil when it is a terminal.
func Stdin() io.Reader {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return nil
	}
	if fi.Mode()&os.ModeCharDevice != 0 {
		return nil
	}
	return os.Stdin
}

// ReadSchema accepts inline JSON or a path to a JSON file.
func ReadSchema(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if strings.HasPrefix(value, "{") {
		return []byte(value), nil
	}
	data, err := os.ReadFile(value)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return data, nil
}
