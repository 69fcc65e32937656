// Package cli provides the command line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/treeweave/internal/completion"
	"github.com/temirov/treeweave/internal/config"
	"github.com/temirov/treeweave/internal/services/clipboard"
	"github.com/temirov/treeweave/internal/structure"
	"github.com/temirov/treeweave/internal/tokenizer"
	"github.com/temirov/treeweave/internal/types"
	"github.com/temirov/treeweave/internal/utils"
	"github.com/temirov/treeweave/internal/workflow"
)

const (
	modeFlagName          = "mode"
	outputDirectoryFlag   = "output-dir"
	configFlagName        = "config"
	wrapFlagName          = "wrap"
	includeRootFlagName   = "root"
	exclusionFlagName     = "exclude"
	exclusionFlagShort    = "e"
	gitignoreFlagName     = "gitignore"
	copyFlagName          = "copy"
	tokensFlagName        = "tokens"
	modelFlagName         = "model"
	verboseFlagName       = "verbose"
	globalFlagName        = "global"
	forceFlagName         = "force"
	defaultOutputDir      = "output"
	standardInputArgument = "-"
	versionTemplate       = "treeweave version: {{.Version}}\n"

	rootUse              = "treeweave <directory> [query] [endpoint]"
	rootShortDescription = "serialize directory trees into an indented text format and back"
	rootLongDescription  = `treeweave renders a directory, including file contents, as one indented text block.
Directories end with a slash, files are bare names and file content sits one level below its file name.

Without a query the block is printed. With a query the block is sent to an LM Studio
chat completions endpoint and the reply, written in the same format, is recreated
under --output-dir (recreate mode) or turned into a shell script that is run there (bash mode).`
	rootUsageExample = `  # Print the tree of ./project
  treeweave ./project

  # Ask a local model to add tests and recreate its answer under ./output
  treeweave ./project "Add unit tests"

  # Use another endpoint and generate a script instead
  treeweave ./project "Port to Go" http://localhost:1234/v1/chat/completions --mode bash`

	parseUse              = "parse [file|-]"
	parseShortDescription = "recreate files from an indented structure document"
	parseLongDescription  = `Read a structure document from a file or standard input and recreate it under --output-dir.
Surrounding """ or code fence delimiters are removed first.`
	parseUsageExample = `  treeweave ./project > tree.txt
  treeweave parse tree.txt --output-dir copy`

	configUse                  = "config"
	configShortDescription     = "manage treeweave configuration"
	configInitUse              = "init"
	configInitShortDescription = "write a default configuration file"

	modeFlagDescription        = "run mode: recreate, text or bash (default text without a query, recreate with one)"
	outputDirFlagDescription   = "directory that receives recreated files or the generated script"
	configFlagDescription      = "configuration file to use instead of ~/.treeweave/config.ini and ./treeweave.ini"
	wrapFlagDescription        = `surround the printed tree with """ delimiters`
	includeRootFlagDescription = "emit the root directory itself as the first line"
	exclusionFlagDescription   = "exclude path pattern (repeatable)"
	gitignoreFlagDescription   = "exclude entries matched by the root .gitignore and the .git directory"
	copyFlagDescription        = "copy the printed text or generated script to the clipboard"
	tokensFlagDescription      = "report the token count of the tree or prompt"
	modelFlagDescription       = "model name sent to the endpoint and used to pick the tokenizer"
	verboseFlagDescription     = "enable debug logging"
	globalFlagDescription      = "write the global configuration instead of the local one"
	forceFlagDescription       = "overwrite an existing configuration file"

	configurationWrittenFormat = "configuration written to %s\n"
	workingDirectoryErrorFmt   = "unable to determine working directory: %w"
)

// LoggerFactory builds the application logger once flags are parsed.
type LoggerFactory func(verbose bool) (*zap.Logger, error)

// application carries the state shared by every command of one invocation.
type application struct {
	loggerFactory LoggerFactory
	newCopier     func() clipboard.Copier
	logger        *zap.Logger

	configurationPath string
	verbose           bool
}

// runOptions holds the root command flags.
type runOptions struct {
	mode              string
	outputDirectory   string
	wrap              bool
	includeRoot       bool
	exclusionPatterns []string
	useGitignore      bool
	copyToClipboard   bool
	countTokens       bool
	model             string
}

// Execute runs the treeweave application with the process arguments.
func Execute(loggerFactory LoggerFactory) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCommand := createRootCommand(&application{
		loggerFactory: loggerFactory,
		newCopier:     func() clipboard.Copier { return clipboard.NewService() },
	})
	rootCommand.SetArgs(normalizeBooleanFlagArguments(rootCommand, os.Args[1:]))
	return rootCommand.ExecuteContext(ctx)
}

// createRootCommand builds the root Cobra command.
func createRootCommand(app *application) *cobra.Command {
	var options runOptions

	rootCommand := &cobra.Command{
		Use:           rootUse,
		Short:         rootShortDescription,
		Long:          rootLongDescription,
		Example:       rootUsageExample,
		Version:       utils.GetApplicationVersion(),
		Args:          cobra.RangeArgs(1, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return app.initializeLogger()
		},
		PersistentPostRun: func(command *cobra.Command, arguments []string) {
			_ = app.logger.Sync()
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return app.runRoot(command, arguments, options)
		},
	}
	rootCommand.SetVersionTemplate(versionTemplate)

	rootCommand.PersistentFlags().StringVar(&app.configurationPath, configFlagName, "", configFlagDescription)
	registerBooleanFlag(rootCommand.PersistentFlags(), &app.verbose, verboseFlagName, false, verboseFlagDescription)

	flagSet := rootCommand.Flags()
	flagSet.StringVar(&options.mode, modeFlagName, "", modeFlagDescription)
	flagSet.StringVar(&options.outputDirectory, outputDirectoryFlag, defaultOutputDir, outputDirFlagDescription)
	flagSet.StringArrayVarP(&options.exclusionPatterns, exclusionFlagName, exclusionFlagShort, nil, exclusionFlagDescription)
	flagSet.StringVar(&options.model, modelFlagName, "", modelFlagDescription)
	registerBooleanFlag(flagSet, &options.wrap, wrapFlagName, false, wrapFlagDescription)
	registerBooleanFlag(flagSet, &options.includeRoot, includeRootFlagName, false, includeRootFlagDescription)
	registerBooleanFlag(flagSet, &options.useGitignore, gitignoreFlagName, false, gitignoreFlagDescription)
	registerBooleanFlag(flagSet, &options.copyToClipboard, copyFlagName, false, copyFlagDescription)
	registerBooleanFlag(flagSet, &options.countTokens, tokensFlagName, false, tokensFlagDescription)

	rootCommand.AddCommand(
		createParseCommand(app),
		createConfigCommand(app),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

// createParseCommand returns the parse subcommand.
func createParseCommand(app *application) *cobra.Command {
	var outputDirectory string

	parseCommand := &cobra.Command{
		Use:     parseUse,
		Short:   parseShortDescription,
		Long:    parseLongDescription,
		Example: parseUsageExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			source := standardInputArgument
			if len(arguments) == 1 {
				source = arguments[0]
			}
			return app.runParse(command, source, outputDirectory)
		},
	}
	parseCommand.Flags().StringVar(&outputDirectory, outputDirectoryFlag, defaultOutputDir, outputDirFlagDescription)
	return parseCommand
}

// createConfigCommand returns the config command group.
func createConfigCommand(app *application) *cobra.Command {
	var global bool
	var force bool

	configCommand := &cobra.Command{
		Use:   configUse,
		Short: configShortDescription,
	}
	initCommand := &cobra.Command{
		Use:   configInitUse,
		Short: configInitShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			destinationPath, initError := config.InitializeConfiguration(config.InitOptions{Target: target, Force: force})
			if initError != nil {
				return initError
			}
			_, writeError := fmt.Fprintf(command.OutOrStdout(), configurationWrittenFormat, destinationPath)
			return writeError
		},
	}
	registerBooleanFlag(initCommand.Flags(), &global, globalFlagName, false, globalFlagDescription)
	registerBooleanFlag(initCommand.Flags(), &force, forceFlagName, false, forceFlagDescription)
	configCommand.AddCommand(initCommand)
	return configCommand
}

func (app *application) initializeLogger() error {
	if app.loggerFactory == nil {
		app.logger = zap.NewNop()
		return nil
	}
	logger, loggerError := app.loggerFactory(app.verbose)
	if loggerError != nil {
		return fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerError)
	}
	app.logger = logger
	return nil
}

func (app *application) loadConfiguration() (config.ApplicationConfiguration, error) {
	workingDirectory, workingDirectoryError := os.Getwd()
	if workingDirectoryError != nil {
		return config.ApplicationConfiguration{}, fmt.Errorf(workingDirectoryErrorFmt, workingDirectoryError)
	}
	configuration, loadError := config.LoadApplicationConfiguration(config.LoadOptions{
		WorkingDirectory: workingDirectory,
		ExplicitFilePath: app.configurationPath,
	})
	if loadError != nil {
		return config.ApplicationConfiguration{}, loadError
	}
	app.logger.Debug("Loaded configuration",
		zap.String("endpoint", configuration.LMStudio.Endpoint),
		zap.String("model", configuration.LMStudio.Model),
		zap.Int("indentWidth", configuration.Structure.IndentWidth))
	return configuration, nil
}

// runRoot resolves the mode, query and endpoint and hands the run to the workflow.
func (app *application) runRoot(command *cobra.Command, arguments []string, options runOptions) error {
	configuration, configurationError := app.loadConfiguration()
	if configurationError != nil {
		return configurationError
	}

	rootDirectory := arguments[0]
	query := ""
	if len(arguments) > 1 {
		query = strings.TrimSpace(arguments[1])
	}
	endpoint := configuration.LMStudio.Endpoint
	if len(arguments) > 2 && strings.TrimSpace(arguments[2]) != "" {
		endpoint = arguments[2]
	}

	mode, modeError := resolveMode(options.mode, query)
	if modeError != nil {
		return modeError
	}
	if query == "" && mode != types.ModeText {
		query = configuration.LMStudio.DefaultQuery
	}
	useGitignore := configuration.Structure.UseGitignore
	if command.Flags().Changed(gitignoreFlagName) {
		useGitignore = options.useGitignore
	}
	model := configuration.LMStudio.Model
	if strings.TrimSpace(options.model) != "" {
		model = options.model
	}

	grammar, grammarError := structure.NewGrammar(configuration.Structure.IndentWidth)
	if grammarError != nil {
		return grammarError
	}
	maxFileSize, sizeError := configuration.Structure.MaxFileSize()
	if sizeError != nil {
		return sizeError
	}
	ignorePatterns, patternsError := config.LoadExclusionPatterns(rootDirectory, append(configuration.Structure.ExcludePatterns(), options.exclusionPatterns...), useGitignore)
	if patternsError != nil {
		return patternsError
	}

	runnerOptions := workflow.Options{
		Grammar: grammar,
		Serializer: structure.SerializerOptions{
			IncludeRoot:    options.includeRoot,
			IgnorePatterns: ignorePatterns,
			MaxFileBytes:   maxFileSize,
		},
		ScriptName: configuration.Bash.ScriptName,
		Shell:      configuration.Bash.Shell,
		Stdout:     command.OutOrStdout(),
		Logger:     app.logger,
	}
	if query != "" {
		client, clientError := completion.NewClient(completion.Options{
			Endpoint:    endpoint,
			Model:       model,
			Temperature: configuration.LMStudio.Temperature,
			MaxTokens:   configuration.LMStudio.MaxTokens,
			Timeout:     configuration.LMStudio.Timeout(),
			APIKey:      configuration.LMStudio.APIKey,
			Logger:      app.logger,
		})
		if clientError != nil {
			return clientError
		}
		runnerOptions.Submitter = client
	}
	if options.copyToClipboard && app.newCopier != nil {
		runnerOptions.Copier = app.newCopier()
	}
	if options.countTokens {
		counter, tokenizerName, counterError := tokenizer.NewCounter(model)
		if counterError != nil {
			return counterError
		}
		app.logger.Debug("Resolved tokenizer", zap.String("tokenizer", tokenizerName))
		runnerOptions.Counter = counter
	}

	summary, runError := workflow.NewRunner(runnerOptions).Run(command.Context(), workflow.Request{
		Mode:            mode,
		RootDirectory:   rootDirectory,
		Query:           query,
		OutputDirectory: options.outputDirectory,
		Wrap:            options.wrap,
		Copy:            options.copyToClipboard,
		CountTokens:     options.countTokens,
	})
	if summary.ScriptOutput != "" {
		_, _ = io.WriteString(command.OutOrStdout(), summary.ScriptOutput)
	}
	if runError != nil {
		return runError
	}
	app.logger.Debug("Run finished",
		zap.String("run", summary.RunID),
		zap.Int("directories", summary.Directories),
		zap.Int("files", summary.Files),
		zap.Int("faults", summary.Faults),
		zap.Int("skipped", summary.Skipped),
		zap.Int("warnings", summary.Warnings))
	return nil
}

func (app *application) runParse(command *cobra.Command, source string, outputDirectory string) error {
	configuration, configurationError := app.loadConfiguration()
	if configurationError != nil {
		return configurationError
	}
	grammar, grammarError := structure.NewGrammar(configuration.Structure.IndentWidth)
	if grammarError != nil {
		return grammarError
	}

	var input io.Reader = command.InOrStdin()
	if source != standardInputArgument {
		// #nosec G304
		fileHandle, openError := os.Open(source)
		if openError != nil {
			return fmt.Errorf("open structure document: %w", openError)
		}
		defer fileHandle.Close()
		input = fileHandle
	}

	runner := workflow.NewRunner(workflow.Options{Grammar: grammar, Logger: app.logger})
	_, materializeError := runner.Materialize(input, outputDirectory)
	return materializeError
}

// resolveMode applies the default mode: text without a query, recreate with one.
func resolveMode(flagValue string, query string) (types.Mode, error) {
	if strings.TrimSpace(flagValue) != "" {
		return types.ParseMode(flagValue)
	}
	if query == "" {
		return types.ModeText, nil
	}
	return types.ModeRecreate, nil
}

