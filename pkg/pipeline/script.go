package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/matzehuels/stackbuild/pkg/cache"
	"github.com/matzehuels/stackbuild/pkg/dag"
	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/release"
	"github.com/matzehuels/stackbuild/pkg/scheduler"
)

// BuildLogName is the file each job's script output is written to, inside
// the job's working directory.
const BuildLogName = "build.log"

// ScriptOptions configures a [ScriptBuilder].
type ScriptOptions struct {
	// WorkDir is the root under which every job gets its own directory,
	// <WorkDir>/<release>/<arch>/<kind>/<name>.
	WorkDir string

	Release string
	Arch    string
	Naming  release.Naming

	// Graph supplies resolved versions and dependencies of the jobs.
	Graph *dag.DAG

	// Env is the base environment (default: the process environment).
	Env []string

	Logger *log.Logger
}

// ScriptBuilder builds jobs by interpreting a POSIX shell script once per
// job. The script sees the job through STACKBUILD_* variables and runs in
// the job's own working directory, so concurrent jobs never share files.
type ScriptBuilder struct {
	prog *syntax.File
	opts ScriptOptions
}

// NewScriptBuilder parses script. It fails with errors.ErrCodeInvalidConfig
// on a syntax error.
func NewScriptBuilder(script string, opts ScriptOptions) (*ScriptBuilder, error) {
	prog, err := parseScript(script, "build")
	if err != nil {
		return nil, err
	}
	if opts.WorkDir == "" {
		opts.WorkDir = "build"
	}
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	opts.Naming = opts.Naming.WithDefaults()
	return &ScriptBuilder{prog: prog, opts: opts}, nil
}

// Build runs the script for job. It implements [scheduler.BuildFunc].
func (b *ScriptBuilder) Build(ctx context.Context, job scheduler.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := b.JobDir(job)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	logPath := filepath.Join(dir, BuildLogName)
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("create build log: %w", err)
	}
	defer logFile.Close()

	b.opts.Logger.Debug("running build script", "job", job.ID, "dir", dir)
	err = runScript(ctx, b.prog, dir, b.Environ(job, dir), logFile)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var status interp.ExitStatus
	if stderrors.As(err, &status) {
		return fmt.Errorf("build script exited with status %d, see %s", status, logPath)
	}
	return fmt.Errorf("build script: %w", err)
}

// JobDir returns the working directory of job. Distinct jobs never share a
// directory.
func (b *ScriptBuilder) JobDir(job scheduler.Job) string {
	return filepath.Join(b.opts.WorkDir, b.opts.Release, b.opts.Arch, job.Kind.String(), jobDirName(job.Name()))
}

// jobDirName keeps plain names readable and suffixes names that
// normalization would alter with a hash of the original, so foo_bar and
// foo-bar stay apart.
func jobDirName(name string) string {
	dir := release.Normalize(name)
	if dir == name {
		return dir
	}
	return dir + "-" + cache.Hash([]byte(name))[:8]
}

// Environ returns the script environment for job.
func (b *ScriptBuilder) Environ(job scheduler.Job, dir string) []string {
	node := dag.Node{ID: job.ID, Name: job.Name(), Kind: job.Kind}
	var ver string
	if g := b.opts.Graph; g != nil {
		if n, ok := g.Node(job.ID); ok {
			node = *n
			ver, _ = n.Meta["version"].(string)
		}
	}
	pkg := ""
	if b.opts.Release != "" {
		pkg = b.opts.Naming.PackageName(b.opts.Release, node)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	env := append([]string(nil), b.opts.Env...)
	return append(env,
		"STACKBUILD_ID="+job.ID,
		"STACKBUILD_NAME="+node.Name,
		"STACKBUILD_KIND="+job.Kind.String(),
		"STACKBUILD_PACKAGE="+pkg,
		"STACKBUILD_RELEASE="+b.opts.Release,
		"STACKBUILD_ARCH="+b.opts.Arch,
		"STACKBUILD_VERSION="+ver,
		"STACKBUILD_DEPENDS="+strings.Join(job.Dependencies, " "),
		"STACKBUILD_WORKDIR="+abs,
	)
}

// ScriptKeepAlive returns a keep-alive callback running script, e.g. to
// refresh credentials during long builds. Failures are logged.
func ScriptKeepAlive(script string, logger *log.Logger) (scheduler.KeepAliveFunc, error) {
	prog, err := parseScript(script, "keep-alive")
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) {
		var out strings.Builder
		if err := runScript(ctx, prog, dir, os.Environ(), &out); err != nil {
			logger.Warn("keep-alive failed", "err", err, "output", strings.TrimSpace(out.String()))
		}
	}, nil
}

func parseScript(script, name string) (*syntax.File, error) {
	if strings.TrimSpace(script) == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "%s script is empty", name)
	}
	prog, err := syntax.NewParser().Parse(strings.NewReader(script), name)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s script", name)
	}
	return prog, nil
}

func runScript(ctx context.Context, prog *syntax.File, dir string, env []string, out io.Writer) error {
	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, out, out),
	)
	if err != nil {
		return fmt.Errorf("create interpreter: %w", err)
	}
	return runner.Run(ctx, prog)
}
