package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolateHome points the home directory at an empty temporary directory.
func isolateHome(t *testing.T) string {
	t.Helper()
	homeDirectory := t.TempDir()
	t.Setenv("HOME", homeDirectory)
	t.Setenv("USERPROFILE", homeDirectory)
	return homeDirectory
}

func writeConfigurationFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create configuration directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write configuration %s: %v", path, err)
	}
}

func TestLoadApplicationConfigurationDefaults(t *testing.T) {
	isolateHome(t)
	configuration, err := LoadApplicationConfiguration(LoadOptions{WorkingDirectory: t.TempDir()})
	if err != nil {
		t.Fatalf("LoadApplicationConfiguration error: %v", err)
	}
	if configuration.LMStudio.Endpoint != DefaultEndpoint {
		t.Fatalf("expected default endpoint, got %q", configuration.LMStudio.Endpoint)
	}
	if configuration.LMStudio.Model != DefaultModel {
		t.Fatalf("expected default model, got %q", configuration.LMStudio.Model)
	}
	if configuration.LMStudio.Temperature != DefaultTemperature {
		t.Fatalf("expected temperature %v, got %v", DefaultTemperature, configuration.LMStudio.Temperature)
	}
	if configuration.LMStudio.MaxTokens != DefaultMaxTokens {
		t.Fatalf("expected max tokens %d, got %d", DefaultMaxTokens, configuration.LMStudio.MaxTokens)
	}
	if configuration.LMStudio.Timeout() != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %v", configuration.LMStudio.Timeout())
	}
	if configuration.Structure.IndentWidth != DefaultIndentWidth {
		t.Fatalf("expected indent width %d, got %d", DefaultIndentWidth, configuration.Structure.IndentWidth)
	}
	if configuration.Bash.ScriptName != DefaultScriptName || configuration.Bash.Shell != DefaultShell {
		t.Fatalf("unexpected bash defaults: %+v", configuration.Bash)
	}
}

func TestLoadApplicationConfigurationLocalOverridesGlobal(t *testing.T) {
	homeDirectory := isolateHome(t)
	workingDirectory := t.TempDir()
	writeConfigurationFile(t, filepath.Join(homeDirectory, GlobalConfigDirectoryName, GlobalConfigFileName),
		"[LMStudio]\nmodel = global-model\ntemperature = 0.2\n\n[Bash]\nshell = sh\n")
	writeConfigurationFile(t, filepath.Join(workingDirectory, LocalConfigFileName),
		"[LMStudio]\nmodel = local-model-7b\nmax_tokens = 512\n")

	configuration, err := LoadApplicationConfiguration(LoadOptions{WorkingDirectory: workingDirectory})
	if err != nil {
		t.Fatalf("LoadApplicationConfiguration error: %v", err)
	}
	if configuration.LMStudio.Model != "local-model-7b" {
		t.Fatalf("expected local model, got %q", configuration.LMStudio.Model)
	}
	if configuration.LMStudio.Temperature != 0.2 {
		t.Fatalf("expected global temperature 0.2, got %v", configuration.LMStudio.Temperature)
	}
	if configuration.LMStudio.MaxTokens != 512 {
		t.Fatalf("expected local max tokens 512, got %d", configuration.LMStudio.MaxTokens)
	}
	if configuration.Bash.Shell != "sh" {
		t.Fatalf("expected global shell sh, got %q", configuration.Bash.Shell)
	}
	if configuration.LMStudio.Endpoint != DefaultEndpoint {
		t.Fatalf("expected default endpoint for missing key, got %q", configuration.LMStudio.Endpoint)
	}
}

func TestLoadApplicationConfigurationExplicitPath(t *testing.T) {
	isolateHome(t)
	workingDirectory := t.TempDir()
	writeConfigurationFile(t, filepath.Join(workingDirectory, LocalConfigFileName), "[LMStudio]\nmodel = ignored\n")
	writeConfigurationFile(t, filepath.Join(workingDirectory, "custom.ini"),
		"[LMStudio]\nendpoint = http://127.0.0.1:9999/v1/chat/completions\n\n[Structure]\nindent_width = 2\nmax_file_bytes = 64kb\nexclude = node_modules/, *.log\n")

	configuration, err := LoadApplicationConfiguration(LoadOptions{WorkingDirectory: workingDirectory, ExplicitFilePath: "custom.ini"})
	if err != nil {
		t.Fatalf("LoadApplicationConfiguration error: %v", err)
	}
	if configuration.LMStudio.Model != DefaultModel {
		t.Fatalf("expected local file to be skipped, got model %q", configuration.LMStudio.Model)
	}
	if configuration.LMStudio.Endpoint != "http://127.0.0.1:9999/v1/chat/completions" {
		t.Fatalf("unexpected endpoint %q", configuration.LMStudio.Endpoint)
	}
	if configuration.Structure.IndentWidth != 2 {
		t.Fatalf("expected indent width 2, got %d", configuration.Structure.IndentWidth)
	}
	if maxFileSize, sizeErr := configuration.Structure.MaxFileSize(); sizeErr != nil || maxFileSize != 64*1024 {
		t.Fatalf("expected a 64kb limit, got %d (%v)", maxFileSize, sizeErr)
	}
	patterns := configuration.Structure.ExcludePatterns()
	if len(patterns) != 2 {
		t.Fatalf("expected two exclude patterns, got %v", patterns)
	}
}

func TestLoadApplicationConfigurationMissingExplicitFile(t *testing.T) {
	isolateHome(t)
	_, err := LoadApplicationConfiguration(LoadOptions{WorkingDirectory: t.TempDir(), ExplicitFilePath: "absent.ini"})
	if err == nil {
		t.Fatalf("expected an error for a missing explicit configuration file")
	}
}

func TestLoadApplicationConfigurationEnvironmentOverride(t *testing.T) {
	isolateHome(t)
	t.Setenv("TREEWEAVE_LMSTUDIO_MODEL", "env-model")
	configuration, err := LoadApplicationConfiguration(LoadOptions{WorkingDirectory: t.TempDir()})
	if err != nil {
		t.Fatalf("LoadApplicationConfiguration error: %v", err)
	}
	if configuration.LMStudio.Model != "env-model" {
		t.Fatalf("expected environment model, got %q", configuration.LMStudio.Model)
	}
}

func TestEndpointTimeoutDisabled(t *testing.T) {
	for _, timeoutSeconds := range []int{0, -5} {
		if timeout := (EndpointConfiguration{TimeoutSeconds: timeoutSeconds}).Timeout(); timeout != NoTimeout || timeout >= 0 {
			t.Fatalf("timeout_seconds %d: expected NoTimeout, got %v", timeoutSeconds, timeout)
		}
	}
}
