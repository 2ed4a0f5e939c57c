package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Benxalil/EcoGest-07-sub004/pkg/config"
)

// runCLI executes the root command with args and returns its stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvBackendURL, "")
	t.Setenv(config.EnvBackendKey, "")

	var logs, out bytes.Buffer
	root := New(&logs, LogInfo).RootCommand()
	root.SetOut(&out)
	root.SetErr(&logs)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// writeTestConfig writes a config file pointing at backendURL with fast
// retries and returns its path.
func writeTestConfig(t *testing.T, backendURL string) string {
	t.Helper()
	content := fmt.Sprintf(`
[backend]
url = %q
api_key = "secret-test-key"

[retry]
max_retries = 2
initial_delay = "1ms"
max_delay = "2ms"
`, backendURL)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRootCommand(t *testing.T) {
	root := New(&bytes.Buffer{}, LogInfo).RootCommand()

	if root.Use != appName {
		t.Errorf("Use = %q, want %q", root.Use, appName)
	}
	for _, name := range []string{"fetch", "serve", "config", "completion"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	for _, flag := range []string{"verbose", "config"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s not registered", flag)
		}
	}
}

func TestConfigCommand(t *testing.T) {
	path := writeTestConfig(t, "https://school.example.com")

	out, err := runCLI(t, "--config", path, "config")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if !strings.Contains(out, `url = "https://school.example.com"`) {
		t.Errorf("output missing backend url:\n%s", out)
	}
	if strings.Contains(out, "secret-test-key") {
		t.Errorf("output leaks the API key:\n%s", out)
	}
	if !strings.Contains(out, `strategy = "stale-while-revalidate"`) {
		t.Errorf("output missing default strategy:\n%s", out)
	}
}

func TestConfigCommandInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[cache]\nstrategy = \"sometimes\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, "--config", path, "config"); err == nil {
		t.Fatal("expected error for invalid strategy")
	}
}

func TestConfigPathCommand(t *testing.T) {
	out, err := runCLI(t, "--config", "/etc/ecogest.toml", "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if got := strings.TrimSpace(out); got != "/etc/ecogest.toml" {
		t.Errorf("config path = %q, want /etc/ecogest.toml", got)
	}
}

func TestCompletionCommand(t *testing.T) {
	out, err := runCLI(t, "completion", "bash")
	if err != nil {
		t.Fatalf("completion: %v", err)
	}
	if !strings.Contains(out, appName) {
		t.Error("bash completion should mention the program name")
	}
}

func TestCompletionCommandShells(t *testing.T) {
	for shell := range completionScripts {
		t.Run(shell, func(t *testing.T) {
			out, err := runCLI(t, "completion", shell)
			if err != nil {
				t.Fatalf("completion %s: %v", shell, err)
			}
			if out == "" {
				t.Error("completion script is empty")
			}
		})
	}

	if _, err := runCLI(t, "completion", "tcsh"); err == nil {
		t.Error("expected error for unsupported shell")
	}
}

func TestStrategyFlagCompletion(t *testing.T) {
	out, err := runCLI(t, "__complete", "fetch", "students", "--strategy", "")
	if err != nil {
		t.Fatalf("__complete: %v", err)
	}
	for _, s := range []string{"cache-first", "network-first", "stale-while-revalidate"} {
		if !strings.Contains(out, s) {
			t.Errorf("strategy completions missing %q:\n%s", s, out)
		}
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	c := New(&bytes.Buffer{}, LogInfo)
	if _, err := c.newClient(config.Default()); err == nil {
		t.Fatal("expected error without backend URL")
	}
}
