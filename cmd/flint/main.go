// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/peterh/liner"

	"github.com/flint-lang/flint"
)

const (
	exitOK        = 0
	exitFileError = 1
	exitToolchain = 2

	promptPrefix = ">>> "
)

func main() {
	flagset := flag.NewFlagSet("flint", flag.ExitOnError)
	dump := flagset.Bool("dump", false, "print the compiled module's disassembly instead of running it")
	timeout := flagset.Duration("timeout", 0, "abort execution after this duration (0 disables)")

	flagset.Usage = func() {
		fmt.Fprint(flagset.Output(),
			"Usage: flint [flags] [run] <source-path>\n\n",
			"If <source-path> is omitted, an interactive REPL starts.\n\nFlags:\n")
		flagset.PrintDefaults()
	}
	_ = flagset.Parse(os.Args[1:])

	args := flagset.Args()
	if len(args) > 0 && args[0] == "run" {
		args = args[1:]
	}

	if len(args) == 0 {
		if !hasMode(os.Stdout, os.ModeCharDevice) {
			fmt.Fprintln(os.Stderr, "flint: not a terminal, and no source path given")
			os.Exit(exitFileError)
		}
		runREPL()
		return
	}

	os.Exit(runFile(args[0], *dump, *timeout))
}

func hasMode(f *os.File, mode os.FileMode) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&mode != 0
}

func runFile(path string, dump bool, timeout time.Duration) int {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flint: %v\n", err)
		return exitFileError
	}

	module, err := compileSource(path, src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flint: %v\n", err)
		return exitToolchain
	}

	if dump {
		module.Fprint(os.Stdout)
		return exitOK
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	vm := flint.NewVM(module, os.Stdout)
	if err := vm.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "flint: %v\n", err)
		return exitToolchain
	}
	return exitOK
}

// compileSource runs the full front end + emitter pipeline: parse
// (with include resolution reading from the local filesystem) then
// compile to a Module (spec.md §4.2, §4.3).
func compileSource(path string, src []byte) (*flint.Module, error) {
	prog, err := flint.Parse(path, src, os.ReadFile)
	if err != nil {
		return nil, err
	}
	return flint.Compile(prog)
}

// runREPL is the expansion described in SPEC_FULL.md §4.6: a minimal
// line editor, not a debugger. One Compiler and one VM live for the
// whole session, so a `let`/`const`/`fun` entered on one line stays
// visible on the next; a bare expression's value is printed instead of
// being silently discarded the way a top-level statement normally is.
func runREPL() {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	compiler := flint.NewCompiler()
	vm := flint.NewVM(nil, os.Stdout)
	var lastModule *flint.Module

	fmt.Println("flint REPL — .bytecode shows the last module, .exit quits")
	for {
		text, err := line.Prompt(promptPrefix)
		if err != nil {
			return
		}
		line.AppendHistory(text)

		switch text {
		case "":
			continue
		case ".exit":
			return
		case ".bytecode":
			if lastModule == nil {
				fmt.Println("no module compiled yet")
			} else {
				lastModule.Fprint(os.Stdout)
			}
			continue
		}

		prog, err := flint.Parse("(repl)", []byte(text), os.ReadFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			continue
		}

		module, producedValue, err := compiler.CompileLine(prog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			continue
		}
		lastModule = module

		vm.LoadModule(module)
		if err := vm.Run(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			continue
		}
		if producedValue {
			if v, ok := vm.Top(); ok {
				fmt.Println(v.Render())
			}
			vm.PopDiscard()
		}
	}
}
