package workflow

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/temirov/treeweave/internal/completion"
	"github.com/temirov/treeweave/internal/structure"
	"github.com/temirov/treeweave/internal/types"
)

const testRunID = "01JTESTRUN"

type stubSubmitter struct {
	reply   string
	err     error
	prompts []string
}

func (submitter *stubSubmitter) Submit(_ context.Context, prompt string) (string, error) {
	submitter.prompts = append(submitter.prompts, prompt)
	return submitter.reply, submitter.err
}

type stubCopier struct {
	copied []string
}

func (copier *stubCopier) Copy(text string) error {
	copier.copied = append(copier.copied, text)
	return nil
}

type stubCounter struct{}

func (stubCounter) Name() string { return "stub" }

func (stubCounter) CountString(input string) (int, error) { return len(strings.Fields(input)), nil }

func newSourceTree(testingInstance *testing.T) string {
	testingInstance.Helper()
	rootDirectory := testingInstance.TempDir()
	if makeError := os.MkdirAll(filepath.Join(rootDirectory, "a"), 0o755); makeError != nil {
		testingInstance.Fatalf("mkdir: %v", makeError)
	}
	if writeError := os.WriteFile(filepath.Join(rootDirectory, "a", "b.txt"), []byte("hello\n"), 0o644); writeError != nil {
		testingInstance.Fatalf("write: %v", writeError)
	}
	return rootDirectory
}

func newTestRunner(submitter Submitter, stdout *bytes.Buffer, copier *stubCopier) *Runner {
	options := Options{
		Grammar:   structure.Grammar{IndentWidth: structure.DefaultIndentWidth},
		Submitter: submitter,
		Counter:   stubCounter{},
		NewRunID:  func() string { return testRunID },
	}
	if stdout != nil {
		options.Stdout = stdout
	}
	if copier != nil {
		options.Copier = copier
	}
	return NewRunner(options)
}

func TestTextPrintsSerializedTree(testingInstance *testing.T) {
	var stdout bytes.Buffer
	copier := &stubCopier{}
	runner := newTestRunner(nil, &stdout, copier)

	summary, runError := runner.Run(context.Background(), Request{
		Mode:          types.ModeText,
		RootDirectory: newSourceTree(testingInstance),
		Wrap:          true,
		Copy:          true,
		CountTokens:   true,
	})
	if runError != nil {
		testingInstance.Fatalf("Run error: %v", runError)
	}
	expectedOutput := "\"\"\"\na/\n    b.txt\n        hello\n\"\"\"\n"
	if stdout.String() != expectedOutput {
		testingInstance.Fatalf("unexpected output %q", stdout.String())
	}
	if len(copier.copied) != 1 || copier.copied[0] != expectedOutput {
		testingInstance.Fatalf("unexpected clipboard content %v", copier.copied)
	}
	if summary.RunID != testRunID || summary.Files != 1 || summary.Directories != 1 || summary.PromptTokens != 3 {
		testingInstance.Fatalf("unexpected summary %+v", summary)
	}
}

func TestTextWithQueryPrintsReply(testingInstance *testing.T) {
	var stdout bytes.Buffer
	submitter := &stubSubmitter{reply: "Looks fine."}
	runner := newTestRunner(submitter, &stdout, nil)

	if _, runError := runner.Text(context.Background(), Request{RootDirectory: newSourceTree(testingInstance), Query: "Review this"}); runError != nil {
		testingInstance.Fatalf("Text error: %v", runError)
	}
	if stdout.String() != "Looks fine.\n" {
		testingInstance.Fatalf("unexpected output %q", stdout.String())
	}
	expectedPrompt := "Review this\n\n\"\"\"\na/\n    b.txt\n        hello\n\"\"\""
	if len(submitter.prompts) != 1 || submitter.prompts[0] != expectedPrompt {
		testingInstance.Fatalf("unexpected prompts %q", submitter.prompts)
	}
}

func TestRecreateMaterializesReply(testingInstance *testing.T) {
	outputDirectory := filepath.Join(testingInstance.TempDir(), "out")
	submitter := &stubSubmitter{reply: "Here you go:\n```\nsrc/\n    main.go\n        package main\nREADME.md\n    # Demo\n```\n"}
	runner := newTestRunner(submitter, nil, nil)

	summary, runError := runner.Run(context.Background(), Request{
		Mode:            types.ModeRecreate,
		RootDirectory:   newSourceTree(testingInstance),
		Query:           "Rewrite in Go",
		OutputDirectory: outputDirectory,
	})
	if runError != nil {
		testingInstance.Fatalf("Run error: %v", runError)
	}
	mainContent, readError := os.ReadFile(filepath.Join(outputDirectory, "src", "main.go"))
	if readError != nil || string(mainContent) != "package main\n" {
		testingInstance.Fatalf("unexpected main.go %q (%v)", mainContent, readError)
	}
	if summary.Files != 2 || summary.Directories != 1 || summary.OutputPath != outputDirectory {
		testingInstance.Fatalf("unexpected summary %+v", summary)
	}
}

func TestRecreateWritesNothingWhenEndpointFails(testingInstance *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		http.Error(responseWriter, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()
	client, clientError := completion.NewClient(completion.Options{Endpoint: server.URL})
	if clientError != nil {
		testingInstance.Fatalf("NewClient error: %v", clientError)
	}

	outputDirectory := filepath.Join(testingInstance.TempDir(), "out")
	runner := newTestRunner(client, nil, nil)
	_, runError := runner.Recreate(context.Background(), Request{
		RootDirectory:   newSourceTree(testingInstance),
		Query:           "anything",
		OutputDirectory: outputDirectory,
	})
	var httpError *completion.HTTPError
	if !errors.As(runError, &httpError) {
		testingInstance.Fatalf("expected HTTPError, got %v", runError)
	}
	if _, statError := os.Stat(outputDirectory); !os.IsNotExist(statError) {
		testingInstance.Fatalf("expected no output directory, got %v", statError)
	}
}

func TestRecreateRequiresQueryAndOutput(testingInstance *testing.T) {
	runner := newTestRunner(&stubSubmitter{}, nil, nil)
	rootDirectory := newSourceTree(testingInstance)
	if _, runError := runner.Recreate(context.Background(), Request{RootDirectory: rootDirectory, OutputDirectory: testingInstance.TempDir()}); !errors.Is(runError, errMissingQuery) {
		testingInstance.Fatalf("expected errMissingQuery, got %v", runError)
	}
	if _, runError := runner.Recreate(context.Background(), Request{RootDirectory: rootDirectory, Query: "q"}); !errors.Is(runError, errMissingOutput) {
		testingInstance.Fatalf("expected errMissingOutput, got %v", runError)
	}
}

func TestRecreateRejectsInvalidRoot(testingInstance *testing.T) {
	submitter := &stubSubmitter{reply: "x.txt"}
	runner := newTestRunner(submitter, nil, nil)
	_, runError := runner.Recreate(context.Background(), Request{
		RootDirectory:   filepath.Join(testingInstance.TempDir(), "missing"),
		Query:           "q",
		OutputDirectory: testingInstance.TempDir(),
	})
	var invalidPathError *structure.InvalidPathError
	if !errors.As(runError, &invalidPathError) {
		testingInstance.Fatalf("expected InvalidPathError, got %v", runError)
	}
	if len(submitter.prompts) != 0 {
		testingInstance.Fatalf("endpoint must not be queried for an invalid root")
	}
}

func TestBashWritesAndRunsScript(testingInstance *testing.T) {
	if _, lookError := exec.LookPath("bash"); lookError != nil {
		testingInstance.Skip("bash is not available")
	}
	outputDirectory := testingInstance.TempDir()
	submitter := &stubSubmitter{reply: "app/\n    it's.txt\n        don't panic\n        $HOME\n"}
	copier := &stubCopier{}
	runner := newTestRunner(submitter, nil, copier)

	summary, runError := runner.Run(context.Background(), Request{
		Mode:            types.ModeBash,
		RootDirectory:   newSourceTree(testingInstance),
		Query:           "q",
		OutputDirectory: outputDirectory,
		Copy:            true,
	})
	if runError != nil {
		testingInstance.Fatalf("Run error: %v (output %q)", runError, summary.ScriptOutput)
	}
	scriptPath := filepath.Join(outputDirectory, DefaultScriptName)
	if summary.OutputPath != scriptPath {
		testingInstance.Fatalf("unexpected script path %s", summary.OutputPath)
	}
	scriptInfo, statError := os.Stat(scriptPath)
	if statError != nil || scriptInfo.Mode().Perm()&0o100 == 0 {
		testingInstance.Fatalf("expected an executable script: %v", statError)
	}
	content, readError := os.ReadFile(filepath.Join(outputDirectory, "app", "it's.txt"))
	if readError != nil || string(content) != "don't panic\n$HOME\n" {
		testingInstance.Fatalf("unexpected script result %q (%v)", content, readError)
	}
	if len(copier.copied) != 1 || !strings.Contains(copier.copied[0], "# run "+testRunID) {
		testingInstance.Fatalf("expected the script on the clipboard, got %v", copier.copied)
	}
}

func TestShellCommand(testingInstance *testing.T) {
	commandLine, commandError := shellCommand(`bash -x --norc`, "/tmp/s.sh")
	if commandError != nil {
		testingInstance.Fatalf("shellCommand error: %v", commandError)
	}
	if strings.Join(commandLine, "|") != "bash|-x|--norc|/tmp/s.sh" {
		testingInstance.Fatalf("unexpected command %v", commandLine)
	}
	if _, emptyError := shellCommand("  ", "/tmp/s.sh"); !errors.Is(emptyError, errEmptyShell) {
		testingInstance.Fatalf("expected errEmptyShell, got %v", emptyError)
	}
}

func TestMaterializeParsesWrappedDocument(testingInstance *testing.T) {
	outputDirectory := testingInstance.TempDir()
	runner := newTestRunner(nil, nil, nil)
	document := strings.NewReader("\"\"\"\nnotes/\n    todo.md\n        - ship\n\"\"\"\n")

	summary, runError := runner.Materialize(document, outputDirectory)
	if runError != nil {
		testingInstance.Fatalf("Materialize error: %v", runError)
	}
	content, readError := os.ReadFile(filepath.Join(outputDirectory, "notes", "todo.md"))
	if readError != nil || string(content) != "- ship\n" {
		testingInstance.Fatalf("unexpected content %q (%v)", content, readError)
	}
	if summary.Files != 1 || summary.Directories != 1 {
		testingInstance.Fatalf("unexpected summary %+v", summary)
	}
}

func TestMaterializeRoundTripsFencesAndDocstrings(testingInstance *testing.T) {
	sourceDirectory := testingInstance.TempDir()
	sourceFiles := map[string]string{
		"README.md":   "# Title\n```go\nfmt.Println()\n```\n",
		"src/app.py":  "def f():\n    \"\"\"\n    Docs.\n    \"\"\"\n    return 1\n",
		"src/main.go": "package main\n",
		"tests/b.txt": "hello\n",
	}
	for relativePath, content := range sourceFiles {
		targetPath := filepath.Join(sourceDirectory, filepath.FromSlash(relativePath))
		if makeError := os.MkdirAll(filepath.Dir(targetPath), 0o755); makeError != nil {
			testingInstance.Fatalf("mkdir: %v", makeError)
		}
		if writeError := os.WriteFile(targetPath, []byte(content), 0o644); writeError != nil {
			testingInstance.Fatalf("write: %v", writeError)
		}
	}

	serializer := structure.NewSerializer(structure.SerializerOptions{Grammar: structure.Grammar{IndentWidth: structure.DefaultIndentWidth}})
	tree, _, serializeError := serializer.Serialize(sourceDirectory)
	if serializeError != nil {
		testingInstance.Fatalf("Serialize error: %v", serializeError)
	}

	for _, document := range []string{tree, structure.Wrap(tree)} {
		outputDirectory := testingInstance.TempDir()
		if _, runError := newTestRunner(nil, nil, nil).Materialize(strings.NewReader(document), outputDirectory); runError != nil {
			testingInstance.Fatalf("Materialize error: %v", runError)
		}
		for relativePath, expectedContent := range sourceFiles {
			content, readError := os.ReadFile(filepath.Join(outputDirectory, filepath.FromSlash(relativePath)))
			if readError != nil || string(content) != expectedContent {
				testingInstance.Fatalf("%s: unexpected content %q (%v)", relativePath, content, readError)
			}
		}
	}
}
