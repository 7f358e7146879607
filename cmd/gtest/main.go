package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/glc/pkg/codegen"
	"github.com/xplshn/glc/pkg/config"
	"github.com/xplshn/glc/pkg/ir"
	"github.com/xplshn/glc/pkg/util"
)

// Outcome is what running one program looks like from the outside.
type Outcome struct {
	Compiled bool          `json:"compiled"`
	Error    string        `json:"error,omitempty"`
	ExitCode int           `json:"exitCode"`
	Stderr   string        `json:"stderr,omitempty"`
	TimedOut bool          `json:"timed_out,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Golden is the on-disk expectation for a source file.
type Golden struct {
	Hash    string  `json:"hash"`
	Outcome Outcome `json:"outcome"`
}

type FileTestResult struct {
	File      string   `json:"file"`
	Hash      string   `json:"hash"`
	Status    string   `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message   string   `json:"message,omitempty"`
	Diff      string   `json:"diff,omitempty"`
	Reference *Outcome `json:"reference,omitempty"`
	Target    *Outcome `json:"target,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

var (
	generateGolden = flag.String("generate-golden", "", "Generate a golden .json file for a given source file.")
	testFiles      = flag.String("test-files", "tests/*.lisp", "Glob pattern(s) for files to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each command execution.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
	useCache       = flag.Bool("cached", false, "Reuse reference results from the previous report when the source hash matches.")
	jsonDir        = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to source file dir).")
	interpOnly     = flag.Bool("interp", false, "Run the target through the interpreter instead of assembling it.")
	frames         = flag.Int("frames", config.DefaultFrames, "Call frames available to each program.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	tempDir, err := os.MkdirTemp("", "gtest-*")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to create temp directory: %v\n", cRed, cNone, err)
	}
	defer os.RemoveAll(tempDir)
	setupInterruptHandler(tempDir)

	if *generateGolden != "" {
		handleGenerateGolden(*generateGolden)
		return
	}

	handleRunTestSuite(tempDir)
}

// setupInterruptHandler is used to clean up on CTRL+C
func setupInterruptHandler(tempDir string) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		os.RemoveAll(tempDir)
		fmt.Printf("\n%s[INTERRUPT]%s Test run cancelled. Cleaning up...\n", cYellow, cNone)
		os.Exit(1)
	}()
}

func newConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Frames = *frames
	if err := cfg.SetTarget(runtime.GOOS, runtime.GOARCH, ""); err != nil {
		log.Fatalf("%s[ERROR]%s %v\n", cRed, cNone, err)
	}
	return cfg
}

func getJSONPath(sourceFile string) string {
	jsonFileName := "." + filepath.Base(sourceFile) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, jsonFileName)
	}
	return filepath.Join(filepath.Dir(sourceFile), jsonFileName)
}

// hashSource computes the xxhash of a file's content
func hashSource(content []byte) string {
	return fmt.Sprintf("%x", xxhash.Sum64(content))
}

func handleGenerateGolden(sourceFile string) {
	log.Printf("Generating golden file for %s...\n", sourceFile)

	content, err := os.ReadFile(sourceFile)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Could not read source file %s: %v\n", cRed, cNone, sourceFile, err)
	}
	golden := Golden{Hash: hashSource(content), Outcome: interpret(string(content), newConfig())}

	jsonData, err := json.MarshalIndent(golden, "", "  ")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to marshal golden data to JSON: %v\n", cRed, cNone, err)
	}

	goldenFileName := getJSONPath(sourceFile)
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0o755); err != nil {
			log.Fatalf("%s[ERROR]%s Failed to create directory %s: %v\n", cRed, cNone, *jsonDir, err)
		}
	}
	if err := os.WriteFile(goldenFileName, jsonData, 0o644); err != nil {
		log.Fatalf("%s[ERROR]%s Failed to write golden file %s: %v\n", cRed, cNone, goldenFileName, err)
	}

	log.Printf("%s[SUCCESS]%s Golden file created at %s\n", cGreen, cNone, goldenFileName)
}

// native reports whether programs can be assembled and run on this host.
func native() bool {
	if *interpOnly || runtime.GOOS != "linux" || runtime.GOARCH != "amd64" {
		return false
	}
	for _, tool := range []string{"nasm", "ld"} {
		if _, err := exec.LookPath(tool); err != nil {
			return false
		}
	}
	return true
}

func handleRunTestSuite(tempDir string) {
	useNative := native()
	if !useNative && !*interpOnly {
		log.Printf("%s[WARN]%s nasm/ld not usable on this host. Only golden files can be checked.\n", cYellow, cNone)
	}

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return
	}

	previousResults := make(TestSuiteResults)
	outputFile := *outputJSON
	if *jsonDir != "" {
		outputFile = filepath.Join(*jsonDir, *outputJSON)
	}
	if prevData, err := os.ReadFile(outputFile); err == nil {
		if json.Unmarshal(prevData, &previousResults) != nil {
			log.Printf("%s[WARN]%s Could not parse previous results file %s. Cache will not be used.\n", cYellow, cNone, outputFile)
			previousResults = make(TestSuiteResults)
		}
	}

	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		skipList[f] = true
	}

	tasks := make(chan string, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				resultsChan <- testFile(file, tempDir, useNative, previousResults)
			}
		}()
	}

	for _, file := range files {
		if skipList[file] || skipList[filepath.Base(file)] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		tasks <- file
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var allResults []*FileTestResult
	for result := range resultsChan {
		allResults = append(allResults, result)
	}
	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].File < allResults[j].File
	})

	printSummary(allResults)
	resultsMap := writeJSONReport(allResults)

	if hasFailures(resultsMap) {
		os.Exit(1)
	}
}

// testFile picks the expectation (golden file, cached reference or a fresh
// interpreter run) and compares the target outcome against it.
func testFile(file, tempDir string, useNative bool, previousResults TestSuiteResults) *FileTestResult {
	content, err := os.ReadFile(file)
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file: %v", err)}
	}
	hash := hashSource(content)
	cfg := newConfig()

	var reference *Outcome
	source := "interpreter"
	if data, err := os.ReadFile(getJSONPath(file)); err == nil {
		var golden Golden
		if err := json.Unmarshal(data, &golden); err != nil {
			return &FileTestResult{File: file, Hash: hash, Status: "ERROR", Message: fmt.Sprintf("Could not parse golden file: %v", err)}
		}
		if golden.Hash != hash {
			return &FileTestResult{File: file, Hash: hash, Status: "ERROR", Message: "Golden file is stale; regenerate it with -generate-golden"}
		}
		reference, source = &golden.Outcome, "golden file"
	} else if prev, ok := previousResults[file]; *useCache && ok && prev.Hash == hash && prev.Reference != nil {
		reference, source = prev.Reference, "cached reference"
	}

	if reference == nil {
		if !useNative {
			return &FileTestResult{File: file, Hash: hash, Status: "SKIP", Message: "No golden file and no native toolchain to compare the interpreter against"}
		}
		out := interpret(string(content), cfg)
		reference = &out
	}

	var target Outcome
	if useNative {
		target = compileAndRun(string(content), cfg, tempDir, hash)
	} else {
		target = interpret(string(content), cfg)
	}

	if diff := compareOutcomes(*reference, target); diff != "" {
		return &FileTestResult{File: file, Hash: hash, Status: "FAIL", Message: "Outcome differs from the " + source, Diff: diff, Reference: reference, Target: &target}
	}
	return &FileTestResult{File: file, Hash: hash, Status: "PASS", Message: "Matches the " + source, Reference: reference, Target: &target}
}

// compareOutcomes ignores timing and returns a cmp diff of everything else.
func compareOutcomes(ref, target Outcome) string {
	ref.Duration, target.Duration = 0, 0
	return cmp.Diff(ref, target)
}

// errorKind names the most specific compile error class of err.
func errorKind(err error) string {
	kinds := []struct {
		kind error
		name string
	}{
		{util.ErrIncomplete, "incomplete"},
		{util.ErrSyntax, "syntax"},
		{util.ErrLimit, "limit"},
		{util.ErrStructure, "structure"},
		{util.ErrCapture, "capture"},
		{util.ErrUndeclared, "undeclared"},
	}
	for _, k := range kinds {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return "internal"
}

// interpret predicts the native outcome with the reference interpreter.
// Arithmetic faults and bad calls die by signal natively, which exec
// reports as exit code -1.
func interpret(source string, cfg *config.Config) Outcome {
	start := time.Now()
	prog, _, err := codegen.Compile(source, cfg)
	if err != nil {
		return Outcome{Error: errorKind(err), Duration: time.Since(start)}
	}

	value, err := ir.Run(prog, cfg.Frames)
	out := Outcome{Compiled: true, ExitCode: int(uint8(value))}
	switch {
	case errors.Is(err, ir.ErrFrameOverflow):
		out.ExitCode = cfg.OverflowStatus
		out.Stderr = "glc: frame overflow\n"
	case err != nil:
		out.ExitCode = -1
	}
	out.Duration = time.Since(start)
	return out
}

// executeCommand runs a command with a timeout and captures its output
func executeCommand(ctx context.Context, command string, args ...string) Outcome {
	startTime := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Outcome{Compiled: true, Stderr: stderr.String(), Duration: time.Since(startTime)}

	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
	} else if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -2
			result.Stderr += "\nExecution error: " + err.Error()
		}
	}
	return result
}

// compileAndRun compiles in process, assembles with nasm, links with ld
// and runs the binary.
func compileAndRun(source string, cfg *config.Config, tempDir, hash string) Outcome {
	prog, _, err := codegen.Compile(source, cfg)
	if err != nil {
		return Outcome{Error: errorKind(err)}
	}
	backend, err := codegen.SelectBackend("nasm")
	if err != nil {
		return Outcome{Error: "internal", Stderr: err.Error()}
	}
	asm, err := backend.Generate(prog, cfg)
	if err != nil {
		return Outcome{Error: "internal", Stderr: err.Error()}
	}

	base := filepath.Join(tempDir, hash)
	if err := os.WriteFile(base+".asm", asm.Bytes(), 0o644); err != nil {
		return Outcome{Error: "internal", Stderr: err.Error()}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	steps := [][]string{
		{"nasm", "-f", "elf64", "-o", base + ".o", base + ".asm"},
		{"ld", "-o", base, base + ".o"},
	}
	for _, step := range steps {
		if res := executeCommand(ctx, step[0], step[1:]...); res.ExitCode != 0 || res.TimedOut {
			return Outcome{Error: step[0], Stderr: res.Stderr}
		}
	}

	runCtx, runCancel := context.WithTimeout(context.Background(), *timeout)
	defer runCancel()
	return executeCommand(runCtx, base)
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%6dµs", d.Microseconds())
	}
	return fmt.Sprintf("%6dms", d.Milliseconds())
}

func printSummary(results []*FileTestResult) {
	var passed, failed, skipped, errored int
	for _, result := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s%s%s...\n", cCyan, result.File, cNone)

		switch result.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s\n", cGreen, cNone, result.Message)
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, result.Message)
			fmt.Println(formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s\n", cYellow, cNone, result.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, result.Message)
		}

		if *verbose && result.Target != nil && result.Reference != nil {
			fmt.Printf("  [exit %d | ref: %s | target: %s]\n", result.Target.ExitCode,
				formatDuration(result.Reference.Duration), formatDuration(result.Target.Duration))
		}
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results))
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if strings.HasPrefix(trimmedLine, "-") {
			builder.WriteString(cRed)
		} else if strings.HasPrefix(trimmedLine, "+") {
			builder.WriteString(cGreen)
		}
		builder.WriteString("    " + line)
		builder.WriteString(cNone)
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeJSONReport(results []*FileTestResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return resultsMap
	}

	outputFile := *outputJSON
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0o755); err != nil {
			log.Printf("%s[ERROR]%s Failed to create dir %s: %v\n", cRed, cNone, *jsonDir, err)
		}
		outputFile = filepath.Join(*jsonDir, *outputJSON)
	}

	if err := os.WriteFile(outputFile, jsonData, 0o644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, outputFile, err)
	} else {
		fmt.Printf("Full test report saved to %s\n", outputFile)
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			absFile, err := filepath.Abs(file)
			if err != nil {
				continue
			}
			if !seen[absFile] {
				if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
					allFiles = append(allFiles, absFile)
					seen[absFile] = true
				}
			}
		}
	}
	return allFiles, nil
}
