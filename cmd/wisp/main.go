// Command wisp is the driver that binds pkg/lexer, pkg/compiler, pkg/heap
// and pkg/vm into a runnable interpreter: a file runner, a REPL, and a
// compile/disassemble pair for the binary chunk format pkg/bytecode
// supports.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/kristofer/wisp/internal/natives"
	"github.com/kristofer/wisp/pkg/bytecode"
	"github.com/kristofer/wisp/pkg/compiler"
	"github.com/kristofer/wisp/pkg/heap"
	"github.com/kristofer/wisp/pkg/vm"
)

const version = "0.1.0"

func main() {
	app := cli.NewApp()
	app.Name = "wisp"
	app.Usage = "run, compile and inspect wisp scripts"
	app.Version = version
	app.Commands = []cli.Command{
		runCommand(),
		replCommand(),
		compileCommand(),
		disassembleCommand(),
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var traceFlags = []cli.Flag{
	cli.BoolFlag{Name: "trace", Usage: "log every dispatched instruction"},
	cli.BoolFlag{Name: "log-gc", Usage: "log each GC cycle's before/after byte counts"},
	cli.BoolFlag{Name: "stress-gc", Usage: "run a full collection before every allocation"},
}

func runCommand() cli.Command {
	return cli.Command{
		Name:      "run",
		Usage:     "compile and execute a .wisp source file",
		ArgsUsage: "<file>",
		Flags:     traceFlags,
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.NewExitError("run: expected exactly one file argument", 1)
			}
			source, err := os.ReadFile(c.Args().First())
			if err != nil {
				return cli.NewExitError(errors.Wrapf(err, "reading %s", c.Args().First()).Error(), 1)
			}

			machine := newMachine(c)
			result, runErr := machine.Interpret(string(source))
			return exitForResult(result, runErr)
		},
	}
}

func replCommand() cli.Command {
	return cli.Command{
		Name:   "repl",
		Usage:  "start an interactive read-eval-print loop",
		Flags:  traceFlags,
		Action: func(c *cli.Context) error { return runREPL(newMachine(c)) },
	}
}

func compileCommand() cli.Command {
	return cli.Command{
		Name:      "compile",
		Usage:     "compile a .wisp source file to a .wsc bytecode file",
		ArgsUsage: "<in> [out]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.NewExitError("compile: expected an input file", 1)
			}
			in := c.Args().Get(0)
			out := c.Args().Get(1)
			if out == "" {
				out = strings.TrimSuffix(in, ".wisp") + ".wsc"
			}

			source, err := os.ReadFile(in)
			if err != nil {
				return cli.NewExitError(errors.Wrapf(err, "reading %s", in).Error(), 1)
			}

			h := heap.New()
			fn, ok := compiler.Compile(string(source), h)
			if !ok {
				return cli.NewExitError("compile: source has compile-time errors", 1)
			}

			f, err := os.Create(out)
			if err != nil {
				return cli.NewExitError(errors.Wrapf(err, "creating %s", out).Error(), 1)
			}
			defer f.Close()

			if err := bytecode.WriteChunk(f, fn); err != nil {
				return cli.NewExitError(errors.Wrap(err, "writing bytecode").Error(), 1)
			}
			fmt.Printf("compiled %s -> %s\n", in, out)
			return nil
		},
	}
}

func disassembleCommand() cli.Command {
	return cli.Command{
		Name:      "disassemble",
		Usage:     "print a human-readable listing of a compiled .wsc file",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.NewExitError("disassemble: expected exactly one file argument", 1)
			}
			f, err := os.Open(c.Args().First())
			if err != nil {
				return cli.NewExitError(errors.Wrapf(err, "reading %s", c.Args().First()).Error(), 1)
			}
			defer f.Close()

			h := heap.New()
			fn, err := bytecode.ReadChunk(f, h)
			if err != nil {
				return cli.NewExitError(errors.Wrap(err, "decoding bytecode").Error(), 1)
			}
			disassembleRecursive(fn)
			return nil
		},
	}
}

func disassembleRecursive(fn *bytecode.Function) {
	name := "<script>"
	if fn.Name != nil {
		name = fn.Name.Chars
	}
	bytecode.Disassemble(os.Stdout, fn.Chunk, name)
	for _, k := range fn.Chunk.Constants {
		if k.IsObjType(bytecode.ObjFunctionType) {
			disassembleRecursive(k.AsObject().(*bytecode.Function))
		}
	}
}

// newMachine builds the heap+VM pair shared by run and repl, wiring up the
// driver-level native registry and the optional zap-backed diagnostics.
func newMachine(c *cli.Context) *vm.VM {
	h := heap.New()
	h.StressGC = c.Bool("stress-gc")

	var logger *zap.Logger
	if c.Bool("trace") || c.Bool("log-gc") {
		logger, _ = zap.NewDevelopment()
	}
	if logger != nil {
		h.Logger = logger
	}

	machine := vm.New(h)
	machine.Trace = c.Bool("trace")
	machine.Logger = logger

	natives.Register(h, machine.DefineNative)
	return machine
}

func exitForResult(result vm.Result, err error) error {
	switch result {
	case vm.ResultOK:
		return nil
	case vm.ResultCompileError:
		return cli.NewExitError("compile error", 65)
	case vm.ResultRuntimeError:
		msg := "runtime error"
		if err != nil {
			msg = err.Error()
		}
		return cli.NewExitError(msg, 70)
	default:
		return nil
	}
}

// runREPL drives an interactive session: each input is fed to the same VM,
// so top-level variables and function/class declarations persist across
// lines, the way the language's top-level script scope would across one
// long Interpret call. Unterminated blocks (an open '{' with no matching
// '}') trigger the continuation prompt instead of being sent to the
// compiler half-finished.
func runREPL(machine *vm.VM) error {
	rl, err := readline.New("wisp> ")
	if err != nil {
		return errors.Wrap(err, "starting readline")
	}
	defer rl.Close()

	fmt.Printf("wisp %s (Ctrl-D to exit)\n", version)

	var buf strings.Builder
	for {
		prompt := "wisp> "
		if buf.Len() > 0 {
			prompt = "  ...> "
		}
		rl.SetPrompt(prompt)

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			buf.Reset()
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		buf.WriteString(line)
		buf.WriteString("\n")

		if braceDepth(buf.String()) > 0 {
			continue
		}

		source := buf.String()
		buf.Reset()
		if strings.TrimSpace(source) == "" {
			continue
		}

		if _, runErr := machine.Interpret(source); runErr != nil {
			fmt.Fprintln(os.Stderr, runErr)
		}
	}
}

// braceDepth is the REPL's multi-line heuristic: count unmatched '{' so an
// open class or function body keeps prompting for more input instead of
// being submitted (and failing) one line at a time. It does not try to
// understand string literals or comments; good enough for interactive use,
// not a substitute for the compiler's own diagnostics.
func braceDepth(s string) int {
	depth := 0
	for _, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
		}
	}
	return depth
}
