// Package workflow composes the serializer, the completion client and the
// parser into the text, recreate and bash runs offered by the CLI.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/temirov/treeweave/internal/services/clipboard"
	"github.com/temirov/treeweave/internal/structure"
	"github.com/temirov/treeweave/internal/tokenizer"
	"github.com/temirov/treeweave/internal/types"
)

const (
	// DefaultScriptName is the script written by bash runs.
	DefaultScriptName = "create_structure.sh"
	// DefaultShell executes the script written by bash runs.
	DefaultShell = "bash"

	promptSeparator = "\n\n"
)

var (
	errMissingSubmitter = errors.New("a query requires a completion endpoint")
	errMissingQuery     = errors.New("query is required")
	errMissingOutput    = errors.New("output directory is required")
)

// Submitter sends a prompt to a completion endpoint and returns the reply.
type Submitter interface {
	Submit(ctx context.Context, prompt string) (string, error)
}

// Options configures a Runner. Submitter, Copier and Counter are optional;
// runs that need a missing one fail or skip that step.
type Options struct {
	Grammar    structure.Grammar
	Serializer structure.SerializerOptions
	ScriptName string
	Shell      string
	Submitter  Submitter
	Copier     clipboard.Copier
	Counter    tokenizer.Counter
	Stdout     io.Writer
	Logger     *zap.Logger
	// NewRunID overrides the ULID generator.
	NewRunID func() string
}

// Request describes one run.
type Request struct {
	Mode            types.Mode
	RootDirectory   string
	Query           string
	OutputDirectory string
	// Wrap surrounds printed trees with prompt delimiters.
	Wrap bool
	// Copy places the printed text or the generated script on the clipboard.
	Copy bool
	// CountTokens reports the size of the tree or prompt.
	CountTokens bool
}

// Runner executes requests. It holds no state between runs.
type Runner struct {
	grammar           structure.Grammar
	serializerOptions structure.SerializerOptions
	scriptName        string
	shell             string
	submitter         Submitter
	copier            clipboard.Copier
	counter           tokenizer.Counter
	stdout            io.Writer
	logger            *zap.Logger
	newRunID          func() string
}

// NewRunner constructs a Runner from options.
func NewRunner(options Options) *Runner {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	stdout := options.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	scriptName := strings.TrimSpace(options.ScriptName)
	if scriptName == "" {
		scriptName = DefaultScriptName
	}
	shell := strings.TrimSpace(options.Shell)
	if shell == "" {
		shell = DefaultShell
	}
	newRunID := options.NewRunID
	if newRunID == nil {
		newRunID = func() string { return ulid.Make().String() }
	}
	serializerOptions := options.Serializer
	serializerOptions.Grammar = options.Grammar
	serializerOptions.Logger = logger
	return &Runner{
		grammar:           options.Grammar,
		serializerOptions: serializerOptions,
		scriptName:        scriptName,
		shell:             shell,
		submitter:         options.Submitter,
		copier:            options.Copier,
		counter:           options.Counter,
		stdout:            stdout,
		logger:            logger,
		newRunID:          newRunID,
	}
}

// Run dispatches request to the run for its mode.
func (runner *Runner) Run(ctx context.Context, request Request) (types.RunSummary, error) {
	switch request.Mode {
	case types.ModeText, "":
		return runner.Text(ctx, request)
	case types.ModeRecreate:
		return runner.Recreate(ctx, request)
	case types.ModeBash:
		return runner.Bash(ctx, request)
	default:
		return types.RunSummary{}, fmt.Errorf("unsupported mode %q", request.Mode)
	}
}

// Text prints the serialized tree. With a query it prints the endpoint reply
// to the query and the tree instead.
func (runner *Runner) Text(ctx context.Context, request Request) (types.RunSummary, error) {
	summary, runLogger := runner.begin(types.ModeText, request)
	tree, serializeReport, serializeError := runner.serialize(request.RootDirectory, runLogger)
	if serializeError != nil {
		return summary, serializeError
	}
	recordSerializeReport(&summary, serializeReport)

	printed := tree
	if request.Wrap {
		printed = structure.Wrap(tree) + "\n"
	}
	if strings.TrimSpace(request.Query) != "" {
		reply, submitError := runner.submit(ctx, &summary, request, tree, runLogger)
		if submitError != nil {
			return summary, submitError
		}
		printed = strings.TrimRight(reply, "\n") + "\n"
	} else if request.CountTokens {
		runner.countTokens(&summary, tree, runLogger)
	}

	if _, writeError := io.WriteString(runner.stdout, printed); writeError != nil {
		return summary, fmt.Errorf("write output: %w", writeError)
	}
	if request.Copy {
		runner.copy(printed, runLogger)
	}
	return summary, nil
}

// Recreate sends the query and the tree to the endpoint and materializes the
// reply under the output directory. Nothing is written when the endpoint fails.
func (runner *Runner) Recreate(ctx context.Context, request Request) (types.RunSummary, error) {
	summary, runLogger := runner.begin(types.ModeRecreate, request)
	reply, replyError := runner.roundTrip(ctx, &summary, request, runLogger)
	if replyError != nil {
		return summary, replyError
	}

	parseReport, parseError := structure.NewParser(runner.grammar, runLogger).Parse(structure.Unwrap(reply), structure.NewDiskSink(request.OutputDirectory))
	if parseError != nil {
		return summary, fmt.Errorf("rebuild structure: %w", parseError)
	}
	recordParseReport(&summary, parseReport)
	summary.OutputPath = request.OutputDirectory
	runLogger.Info("Recreated structure",
		zap.String("outputDirectory", request.OutputDirectory),
		zap.Int("directories", parseReport.Directories),
		zap.Int("files", parseReport.Files),
		zap.Int("failures", len(parseReport.Failures)))
	return summary, nil
}

// Bash sends the query and the tree to the endpoint, renders the reply as a
// shell script under the output directory and runs it there.
func (runner *Runner) Bash(ctx context.Context, request Request) (types.RunSummary, error) {
	summary, runLogger := runner.begin(types.ModeBash, request)
	reply, replyError := runner.roundTrip(ctx, &summary, request, runLogger)
	if replyError != nil {
		return summary, replyError
	}

	scriptSink := structure.NewScriptSink(summary.RunID)
	parseReport, parseError := structure.NewParser(runner.grammar, runLogger).Parse(structure.Unwrap(reply), scriptSink)
	if parseError != nil {
		return summary, fmt.Errorf("render script: %w", parseError)
	}
	recordParseReport(&summary, parseReport)

	script := scriptSink.Script()
	scriptPath, writeError := writeScript(request.OutputDirectory, runner.scriptName, script)
	if writeError != nil {
		return summary, writeError
	}
	summary.OutputPath = scriptPath
	runLogger.Info("Wrote structure script", zap.String("script", scriptPath))
	if request.Copy {
		runner.copy(script, runLogger)
	}

	scriptOutput, executeError := runner.executeScript(ctx, request.OutputDirectory, scriptPath, runLogger)
	summary.ScriptOutput = scriptOutput
	if executeError != nil {
		return summary, executeError
	}
	return summary, nil
}

// Materialize parses a structure document into outputDirectory without any
// endpoint. Prompt delimiters around the document are removed first.
func (runner *Runner) Materialize(input io.Reader, outputDirectory string) (types.RunSummary, error) {
	summary, runLogger := runner.begin(types.ModeRecreate, Request{OutputDirectory: outputDirectory})
	if strings.TrimSpace(outputDirectory) == "" {
		return summary, errMissingOutput
	}
	document, readError := io.ReadAll(input)
	if readError != nil {
		return summary, fmt.Errorf("read structure document: %w", readError)
	}
	parseReport, parseError := structure.NewParser(runner.grammar, runLogger).Parse(structure.Unwrap(string(document)), structure.NewDiskSink(outputDirectory))
	if parseError != nil {
		return summary, fmt.Errorf("rebuild structure: %w", parseError)
	}
	recordParseReport(&summary, parseReport)
	summary.OutputPath = outputDirectory
	runLogger.Info("Materialized structure",
		zap.String("outputDirectory", outputDirectory),
		zap.Int("directories", parseReport.Directories),
		zap.Int("files", parseReport.Files))
	return summary, nil
}

func (runner *Runner) begin(mode types.Mode, request Request) (types.RunSummary, *zap.Logger) {
	runID := runner.newRunID()
	runLogger := runner.logger.With(zap.String("run", runID), zap.String("mode", string(mode)))
	runLogger.Debug("Starting run",
		zap.String("root", request.RootDirectory),
		zap.String("outputDirectory", request.OutputDirectory))
	return types.RunSummary{RunID: runID, Mode: mode}, runLogger
}

func (runner *Runner) serialize(rootDirectory string, runLogger *zap.Logger) (string, structure.SerializeReport, error) {
	serializerOptions := runner.serializerOptions
	serializerOptions.Logger = runLogger
	tree, report, serializeError := structure.NewSerializer(serializerOptions).Serialize(rootDirectory)
	if serializeError != nil {
		return "", report, fmt.Errorf("serialize %s: %w", rootDirectory, serializeError)
	}
	return tree, report, nil
}

// roundTrip serializes the root, submits the prompt and returns the reply.
func (runner *Runner) roundTrip(ctx context.Context, summary *types.RunSummary, request Request, runLogger *zap.Logger) (string, error) {
	if strings.TrimSpace(request.OutputDirectory) == "" {
		return "", errMissingOutput
	}
	if strings.TrimSpace(request.Query) == "" {
		return "", errMissingQuery
	}
	tree, serializeReport, serializeError := runner.serialize(request.RootDirectory, runLogger)
	if serializeError != nil {
		return "", serializeError
	}
	recordSerializeReport(summary, serializeReport)
	return runner.submit(ctx, summary, request, tree, runLogger)
}

func (runner *Runner) submit(ctx context.Context, summary *types.RunSummary, request Request, tree string, runLogger *zap.Logger) (string, error) {
	if runner.submitter == nil {
		return "", errMissingSubmitter
	}
	prompt := BuildPrompt(request.Query, tree)
	if request.CountTokens {
		runner.countTokens(summary, prompt, runLogger)
	}
	reply, submitError := runner.submitter.Submit(ctx, prompt)
	if submitError != nil {
		runLogger.Error("Completion request failed", zap.Error(submitError))
		return "", fmt.Errorf("query endpoint: %w", submitError)
	}
	return reply, nil
}

func (runner *Runner) countTokens(summary *types.RunSummary, text string, runLogger *zap.Logger) {
	if runner.counter == nil {
		runLogger.Debug("Token counting requested without a tokenizer")
		return
	}
	tokens, countError := tokenizer.CountPrompt(runner.counter, text)
	if countError != nil {
		runLogger.Warn("Token counting failed", zap.Error(countError))
		return
	}
	summary.PromptTokens = tokens
	summary.TokenizerModel = runner.counter.Name()
	runLogger.Info("Prompt size", zap.Int("tokens", tokens), zap.String("tokenizer", summary.TokenizerModel))
}

func (runner *Runner) copy(text string, runLogger *zap.Logger) {
	if runner.copier == nil {
		runLogger.Debug("Clipboard copy requested without a clipboard")
		return
	}
	if copyError := runner.copier.Copy(text); copyError != nil {
		runLogger.Warn("Copy to clipboard failed", zap.Error(copyError))
	}
}

// BuildPrompt places the query before the delimited tree.
func BuildPrompt(query string, tree string) string {
	return strings.TrimSpace(query) + promptSeparator + structure.Wrap(tree)
}

func recordSerializeReport(summary *types.RunSummary, report structure.SerializeReport) {
	summary.Directories = report.Directories
	summary.Files = report.Files
	summary.Faults = report.Faults
}

func recordParseReport(summary *types.RunSummary, report structure.ParseReport) {
	summary.Directories = report.Directories
	summary.Files = report.Files
	summary.Skipped = report.Skipped
	summary.Warnings = report.Warnings
	summary.Faults += len(report.Failures)
}
