package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/temirov/treeweave/internal/utils"
)

const (
	// LocalConfigFileName is looked up in the working directory.
	LocalConfigFileName = "treeweave.ini"
	// GlobalConfigDirectoryName is created under the user's home directory.
	GlobalConfigDirectoryName = ".treeweave"
	// GlobalConfigFileName is the file inside GlobalConfigDirectoryName.
	GlobalConfigFileName = "config.ini"

	configurationType = "ini"
	environmentPrefix = "TREEWEAVE"

	endpointKey       = "lmstudio.endpoint"
	defaultQueryKey   = "lmstudio.default_query"
	modelKey          = "lmstudio.model"
	temperatureKey    = "lmstudio.temperature"
	maxTokensKey      = "lmstudio.max_tokens"
	timeoutSecondsKey = "lmstudio.timeout_seconds"
	apiKeyKey         = "lmstudio.api_key"
	indentWidthKey    = "structure.indent_width"
	maxFileBytesKey   = "structure.max_file_bytes"
	excludeKey        = "structure.exclude"
	useGitignoreKey   = "structure.use_gitignore"
	scriptNameKey     = "bash.script_name"
	shellKey          = "bash.shell"

	// DefaultEndpoint is the LM Studio chat completions URL.
	DefaultEndpoint = "http://localhost:1234/v1/chat/completions"
	// DefaultQuery precedes the serialized tree when no query is given.
	DefaultQuery = "Improve the following project. Reply with the complete project in exactly the same indented structure format: directories end with '/', file contents are indented one level below the file name."
	// DefaultModel is sent when the configuration names no model.
	DefaultModel = "local-model"
	// DefaultTemperature is the sampling temperature.
	DefaultTemperature = 0.7
	// DefaultMaxTokens bounds the response length.
	DefaultMaxTokens = 2048
	// DefaultTimeoutSeconds bounds one endpoint request.
	DefaultTimeoutSeconds = 30
	// DefaultIndentWidth is the grammar indentation.
	DefaultIndentWidth = 4
	// DefaultScriptName is the file written in bash mode.
	DefaultScriptName = "create_structure.sh"
	// DefaultShell runs the generated script.
	DefaultShell = "bash"

	listSeparator = ","
)

// NoTimeout is the negative duration that tells the completion client to
// wait without a deadline.
const NoTimeout time.Duration = -1

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	// ExplicitFilePath replaces the global and local lookup when set.
	ExplicitFilePath string
}

// ApplicationConfiguration holds every setting read from the INI sections.
type ApplicationConfiguration struct {
	LMStudio  EndpointConfiguration  `mapstructure:"lmstudio"`
	Structure StructureConfiguration `mapstructure:"structure"`
	Bash      BashConfiguration      `mapstructure:"bash"`
}

// EndpointConfiguration describes the chat completion endpoint.
type EndpointConfiguration struct {
	Endpoint       string  `mapstructure:"endpoint"`
	DefaultQuery   string  `mapstructure:"default_query"`
	Model          string  `mapstructure:"model"`
	Temperature    float64 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	APIKey         string  `mapstructure:"api_key"`
}

// Timeout converts TimeoutSeconds to a duration. Zero or less disables the
// timeout and is reported as NoTimeout.
func (configuration EndpointConfiguration) Timeout() time.Duration {
	if configuration.TimeoutSeconds <= 0 {
		return NoTimeout
	}
	return time.Duration(configuration.TimeoutSeconds) * time.Second
}

// StructureConfiguration controls the grammar and the serializer.
type StructureConfiguration struct {
	IndentWidth  int    `mapstructure:"indent_width"`
	MaxFileBytes string `mapstructure:"max_file_bytes"`
	Exclude      string `mapstructure:"exclude"`
	UseGitignore bool   `mapstructure:"use_gitignore"`
}

// MaxFileSize parses MaxFileBytes, which may carry a unit suffix such as "512kb".
// Zero disables the limit.
func (configuration StructureConfiguration) MaxFileSize() (int64, error) {
	size, parseError := utils.ParseFileSize(configuration.MaxFileBytes)
	if parseError != nil {
		return 0, fmt.Errorf("structure max_file_bytes: %w", parseError)
	}
	return size, nil
}

// ExcludePatterns splits the comma separated exclude setting.
func (configuration StructureConfiguration) ExcludePatterns() []string {
	if strings.TrimSpace(configuration.Exclude) == "" {
		return nil
	}
	return strings.Split(configuration.Exclude, listSeparator)
}

// BashConfiguration controls bash mode.
type BashConfiguration struct {
	ScriptName string `mapstructure:"script_name"`
	Shell      string `mapstructure:"shell"`
}

// LoadApplicationConfiguration reads the global file, then the local file on
// top of it, or only ExplicitFilePath when set. Missing files and missing
// sections fall back to defaults. TREEWEAVE_<SECTION>_<KEY> environment
// variables override both.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	configurationPaths, resolveError := resolveConfigurationPaths(options)
	if resolveError != nil {
		return ApplicationConfiguration{}, resolveError
	}

	reader := newConfigurationReader()
	explicitFileRequested := options.ExplicitFilePath != ""
	for _, configurationPath := range configurationPaths {
		if mergeError := mergeConfigurationFile(reader, configurationPath, explicitFileRequested); mergeError != nil {
			return ApplicationConfiguration{}, mergeError
		}
	}

	var configuration ApplicationConfiguration
	if decodeError := reader.Unmarshal(&configuration); decodeError != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration: %w", decodeError)
	}
	return configuration, nil
}

func newConfigurationReader() *viper.Viper {
	reader := viper.New()
	reader.SetConfigType(configurationType)
	reader.SetDefault(endpointKey, DefaultEndpoint)
	reader.SetDefault(defaultQueryKey, DefaultQuery)
	reader.SetDefault(modelKey, DefaultModel)
	reader.SetDefault(temperatureKey, DefaultTemperature)
	reader.SetDefault(maxTokensKey, DefaultMaxTokens)
	reader.SetDefault(timeoutSecondsKey, DefaultTimeoutSeconds)
	reader.SetDefault(apiKeyKey, "")
	reader.SetDefault(indentWidthKey, DefaultIndentWidth)
	reader.SetDefault(maxFileBytesKey, "0")
	reader.SetDefault(excludeKey, "")
	reader.SetDefault(useGitignoreKey, false)
	reader.SetDefault(scriptNameKey, DefaultScriptName)
	reader.SetDefault(shellKey, DefaultShell)
	reader.SetEnvPrefix(environmentPrefix)
	reader.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	reader.AutomaticEnv()
	return reader
}

func resolveConfigurationPaths(options LoadOptions) ([]string, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, workingDirectoryError := os.Getwd()
		if workingDirectoryError != nil {
			return nil, fmt.Errorf("determine working directory: %w", workingDirectoryError)
		}
		workingDirectory = currentDirectory
	}

	if options.ExplicitFilePath != "" {
		if filepath.IsAbs(options.ExplicitFilePath) {
			return []string{options.ExplicitFilePath}, nil
		}
		return []string{filepath.Join(workingDirectory, options.ExplicitFilePath)}, nil
	}

	var configurationPaths []string
	if homeDirectory, homeError := os.UserHomeDir(); homeError == nil && homeDirectory != "" {
		configurationPaths = append(configurationPaths, filepath.Join(homeDirectory, GlobalConfigDirectoryName, GlobalConfigFileName))
	}
	configurationPaths = append(configurationPaths, filepath.Join(workingDirectory, LocalConfigFileName))
	return configurationPaths, nil
}

// mergeConfigurationFile overlays one INI file onto reader. A missing file is
// skipped unless it was requested explicitly.
func mergeConfigurationFile(reader *viper.Viper, configurationPath string, required bool) error {
	fileInfo, statError := os.Stat(configurationPath)
	if statError != nil {
		if os.IsNotExist(statError) && !required {
			return nil
		}
		return fmt.Errorf("stat configuration %s: %w", configurationPath, statError)
	}
	if fileInfo.IsDir() {
		return fmt.Errorf("configuration path %s is a directory", configurationPath)
	}

	reader.SetConfigFile(configurationPath)
	if mergeError := reader.MergeInConfig(); mergeError != nil {
		return fmt.Errorf("read configuration from %s: %w", configurationPath, mergeError)
	}
	return nil
}
