// Package buildpipeline lowers a batch of LLVM IR files with one resolved
// target machine.
package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"tmachine/internal/llvmenv"
	"tmachine/internal/trace"
)

// BuildRequest configures a batch code generation run.
type BuildRequest struct {
	Env       *llvmenv.Env // defaults to llvmenv.Global()
	Target    string       // target string, e.g. "llvm -mcpu=skylake"
	Inputs    []string     // LLVM IR files (.ll or .bc)
	OutputDir string       // "" writes next to each input
	FileType  llvmenv.FileType
	OptLevel  int
	Jobs      int // <= 0 means GOMAXPROCS
	Progress  ProgressSink
}

// Output is the outcome for one input.
type Output struct {
	Input   string
	Path    string
	Err     error
	Elapsed time.Duration
}

// BuildResult captures the machine, per-file outputs and timings.
type BuildResult struct {
	Machine llvmenv.Machine
	Outputs []Output // same order as BuildRequest.Inputs
	Timings Timings
}

// Failed returns the outputs that carry an error.
func (r BuildResult) Failed() []Output {
	var failed []Output
	for _, out := range r.Outputs {
		if out.Err != nil {
			failed = append(failed, out)
		}
	}
	return failed
}

// Build resolves req.Target once and emits every input concurrently.
// A failing input does not stop the others; the returned error joins every
// per-file failure.
func Build(ctx context.Context, req *BuildRequest) (BuildResult, error) {
	var result BuildResult
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, fmt.Errorf("missing build request")
	}
	if len(req.Inputs) == 0 {
		return result, fmt.Errorf("no input files")
	}
	env := req.Env
	if env == nil {
		env = llvmenv.Global()
	}
	outPaths, err := outputPaths(req)
	if err != nil {
		return result, err
	}

	ctx, span := trace.Start(ctx, trace.ScopeDriver, "build")
	defer span.End("")
	emitQueued(req.Progress, req.Inputs)

	resolveStart := time.Now()
	emitStage(req.Progress, req.Inputs, StageResolve, StatusWorking, nil, 0)
	machine, err := env.GetTargetMachine(ctx, req.Target, false)
	if err != nil {
		emitStage(req.Progress, req.Inputs, StageResolve, StatusError, err, time.Since(resolveStart))
		return result, err
	}
	result.Machine = machine
	result.Timings.Set(StageResolve, time.Since(resolveStart))
	emitStage(req.Progress, nil, StageResolve, StatusDone, nil, result.Timings.Duration(StageResolve))

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	result.Outputs = make([]Output, len(req.Inputs))
	codegenStart := time.Now()

	var g errgroup.Group
	g.SetLimit(min(jobs, len(req.Inputs)))
	for i, input := range req.Inputs {
		i, input := i, input
		g.Go(func() error {
			result.Outputs[i] = emitOne(ctx, req, machine, input, outPaths[i])
			return nil
		})
	}
	_ = g.Wait()
	result.Timings.Set(StageCodegen, time.Since(codegenStart))

	var errs []error
	for _, out := range result.Outputs {
		if out.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", out.Input, out.Err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		emitStage(req.Progress, nil, StageCodegen, StatusError, err, result.Timings.Duration(StageCodegen))
		return result, err
	}
	emitStage(req.Progress, nil, StageCodegen, StatusDone, nil, result.Timings.Duration(StageCodegen))
	return result, nil
}

func emitOne(ctx context.Context, req *BuildRequest, machine llvmenv.Machine, input, outPath string) Output {
	out := Output{Input: input, Path: outPath}
	start := time.Now()
	emitFile(req.Progress, input, StageCodegen, StatusWorking, nil, 0)

	if err := ctx.Err(); err != nil {
		out.Err = err
	} else if err := checkInput(input); err != nil {
		out.Err = err
	} else {
		fctx, span := trace.Start(ctx, trace.ScopeFile, "emit:"+filepath.Base(input))
		out.Err = machine.EmitFile(fctx, input, outPath, llvmenv.EmitOptions{
			FileType: req.FileType,
			OptLevel: req.OptLevel,
		})
		span.End("")
	}
	out.Elapsed = time.Since(start)
	if out.Err != nil {
		emitFile(req.Progress, input, StageCodegen, StatusError, out.Err, out.Elapsed)
	} else {
		emitFile(req.Progress, input, StageCodegen, StatusDone, nil, out.Elapsed)
	}
	return out
}

func checkInput(input string) error {
	info, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("failed to stat input: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input is a directory")
	}
	return nil
}

// outputPaths maps inputs to output files and rejects collisions.
func outputPaths(req *BuildRequest) ([]string, error) {
	if req.OutputDir != "" {
		if err := os.MkdirAll(req.OutputDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	paths := make([]string, len(req.Inputs))
	seen := make(map[string]string, len(req.Inputs))
	for i, input := range req.Inputs {
		base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + req.FileType.Ext()
		dir := req.OutputDir
		if dir == "" {
			dir = filepath.Dir(input)
		}
		p := filepath.Join(dir, base)
		if prev, ok := seen[p]; ok {
			return nil, fmt.Errorf("inputs %s and %s both write %s", prev, input, p)
		}
		seen[p] = input
		paths[i] = p
	}
	return paths, nil
}

func emitQueued(sink ProgressSink, files []string) {
	if sink == nil {
		return
	}
	for _, file := range files {
		sink.OnEvent(Event{File: file, Stage: StageResolve, Status: StatusQueued})
	}
}

func emitStage(sink ProgressSink, files []string, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{Stage: stage, Status: status, Err: err, Elapsed: elapsed})
	for _, file := range files {
		sink.OnEvent(Event{File: file, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
	}
}

func emitFile(sink ProgressSink, file string, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{File: file, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
}
