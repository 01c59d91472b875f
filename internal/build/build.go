// Package build drives the native toolchain for a configured addon: make
// on Unix-like systems, msbuild on Windows.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
)

// ErrToolNotFound is returned when the build command is not on PATH.
var ErrToolNotFound = errors.New("build tool not found")

// DefaultSolution is the msbuild solution used when no .sln argument is given.
const DefaultSolution = "bindings.sln"

// Options configures one build.
type Options struct {
	// Args are passed to the build tool before the generated arguments.
	Args []string
	// Debug selects the Debug configuration instead of Release.
	Debug bool
	// Verbose asks make for verbose output (V=1).
	Verbose bool
	// Jobs is the make job count. Zero leaves it to make.
	Jobs int
	// Solution is the msbuild solution. Defaults to DefaultSolution.
	Solution string
	// Dir is the working directory. Empty means the current directory.
	Dir string
}

// Driver runs the build tool for one OS.
type Driver struct {
	goos     string
	lookPath func(string) (string, error)
	stdout   io.Writer
	stderr   io.Writer
	log      zerolog.Logger
}

// New returns a driver for goos (runtime.GOOS values). Tool output goes to
// the process's stdout and stderr.
func New(goos string, log zerolog.Logger) *Driver {
	return &Driver{
		goos:     goos,
		lookPath: exec.LookPath,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		log:      log,
	}
}

// Command returns the build tool name for goos.
func Command(goos string) string {
	if goos == "windows" {
		return "msbuild"
	}
	return "make"
}

// Configuration returns "Debug" or "Release".
func Configuration(debug bool) string {
	if debug {
		return "Debug"
	}
	return "Release"
}

// Args assembles the build tool's argument list.
func Args(goos string, opts Options) []string {
	args := append([]string(nil), opts.Args...)
	config := Configuration(opts.Debug)

	if goos != "windows" {
		if opts.Verbose {
			args = append(args, "V=1")
		}
		args = append(args, "-f", "Makefile.gyp", "BUILDTYPE="+config)
		if opts.Jobs > 0 {
			args = append(args, "-j", strconv.Itoa(opts.Jobs))
		}
		return args
	}

	args = append(args, "/p:Configuration="+config)
	if !hasSolution(args) {
		sln := opts.Solution
		if sln == "" {
			sln = DefaultSolution
		}
		args = append([]string{sln}, args...)
	}
	return args
}

func hasSolution(args []string) bool {
	for _, a := range args {
		if strings.HasSuffix(a, ".sln") {
			return true
		}
	}
	return false
}

// Run locates the build tool and runs it to completion.
func (d *Driver) Run(ctx context.Context, opts Options) error {
	command := Command(d.goos)
	log := d.log.With().Str("command", command).Logger()

	path, err := d.lookPath(command)
	if err != nil {
		return fmt.Errorf("%w: `%s`: %w", ErrToolNotFound, command, err)
	}
	log.Debug().Str("path", path).Msg("which " + command)

	args := Args(d.goos, opts)
	log.Debug().Strs("args", args).Msg("build args")

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = opts.Dir
	cmd.Stdout = d.stdout
	cmd.Stderr = d.stderr

	if err := cmd.Run(); err != nil {
		return exitError(command, err)
	}
	return nil
}

// exitError describes how the build tool ended.
func exitError(command string, err error) error {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Errorf("`%s` failed to start: %w", command, err)
	}

	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return fmt.Errorf("`%s` got signal: %s", command, signalName(status.Signal()))
	}
	return fmt.Errorf("`%s` failed with exit code: %d", command, exitErr.ExitCode())
}

var signalNames = map[syscall.Signal]string{
	syscall.SIGHUP:  "SIGHUP",
	syscall.SIGINT:  "SIGINT",
	syscall.SIGQUIT: "SIGQUIT",
	syscall.SIGILL:  "SIGILL",
	syscall.SIGABRT: "SIGABRT",
	syscall.SIGKILL: "SIGKILL",
	syscall.SIGSEGV: "SIGSEGV",
	syscall.SIGPIPE: "SIGPIPE",
	syscall.SIGTERM: "SIGTERM",
}

func signalName(sig syscall.Signal) string {
	if name, ok := signalNames[sig]; ok {
		return name
	}
	return sig.String()
}
