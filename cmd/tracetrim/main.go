package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "trim":
		err = cmdTrim(os.Args[2:])
	case "check":
		err = cmdCheck(os.Args[2:])
	case "process":
		err = cmdProcess(os.Args[2:])
	case "watch":
		err = cmdWatch(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `tracetrim — CPU trace fixture post-processor

Truncates reference emulator trace logs at the terminal self-loop jump and
prepares them as golden test fixtures.

Usage:
  tracetrim trim    --file <path>               Truncate one trace log in place
  tracetrim check   --dir <dir> [--json]         Dry-run: report cut points, modify nothing
  tracetrim process --dir <dir>                Truncate, compress and assemble a fixture directory
  tracetrim watch   --dir <dir>                Process trace logs as the emulator emits them

Flags:
  --file <path>       Trace log to truncate
  --dir <dir>           Fixture directory (non-recursive)
  --rev <name>          Trace format revision (bsnes-a, bsnes-b; default bsnes-a)
  --revisions <file>    YAML file with additional named revisions
  --rename              Relabel <stem>.txt to <stem>-trace.log before processing
  --asm                 Assemble *.asm test ROM sources with bass
  --jobs <n>            Process traces in parallel with n workers
  --strict              Treat a trace with no terminal self-loop as a failure
  --dry-run             Report the cut point without rewriting (trim)
  --json                Machine-readable report on stdout (check)
  --debug               Verbose logging
`)
}
