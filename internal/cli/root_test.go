package cli

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

// resetRoot puts the root command back to its defaults so tests do not
// bleed state into each other.
func resetRoot(t *testing.T) *bytes.Buffer {
	t.Helper()
	_ = rootCmd.PersistentFlags().Set("config", "")
	rootCmd.SetArgs([]string{})
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(io.Discard)
	return &buf
}

func TestRootDefaults(t *testing.T) {
	resetRoot(t)

	if got, want := rootCmd.Use, "reqtrace"; got != want {
		t.Fatalf("Use = %q, want %q", got, want)
	}
	if !rootCmd.SilenceUsage {
		t.Fatalf("SilenceUsage = false, want true")
	}
	if !rootCmd.SilenceErrors {
		t.Fatalf("SilenceErrors = false, want true")
	}
	if cfgPath != "" {
		t.Fatalf("config default = %q, want empty", cfgPath)
	}
	for _, name := range []string{"serve", "version"} {
		if c, _, err := rootCmd.Find([]string{name}); err != nil || c.Name() != name {
			t.Fatalf("subcommand %q not registered", name)
		}
	}
}

func TestHelpCommandRuns(t *testing.T) {
	buf := resetRoot(t)
	rootCmd.SetArgs([]string{"help"})

	if err := Execute(); err != nil {
		t.Fatalf("help Execute() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "reqtrace") || !strings.Contains(out, "serve") {
		t.Fatalf("help output did not contain expected text; got:\n%s", out)
	}
}

func TestExecuteNoArgsPrintsHint(t *testing.T) {
	buf := resetRoot(t)

	if err := Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Use -h for help") {
		t.Fatalf("expected hint to be printed, got:\n%s", buf.String())
	}
}

func TestVersionCommand(t *testing.T) {
	buf := resetRoot(t)
	rootCmd.SetArgs([]string{"version", "--verbose"})

	if err := Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "reqtrace ") || !strings.Contains(out, "go:") {
		t.Fatalf("version output = %q", out)
	}
}

func TestServeRejectsBadConfig(t *testing.T) {
	resetRoot(t)
	rootCmd.SetArgs([]string{"serve", "--exporter", "jaeger"})

	err := Execute()
	if err == nil || !strings.Contains(err.Error(), "trace.exporter") {
		t.Fatalf("err = %v, want a trace.exporter error", err)
	}
}
