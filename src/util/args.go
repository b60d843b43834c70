package util

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Options defines the behaviour of a single compiler invocation.
type Options struct {
	Src         string // Path to source file. Empty means read stdin.
	Out         string // Path to output object file.
	Triple      string // Requested target triple. Empty means host target.
	Run         bool   // Set true if the module should be JIT executed instead of compiled.
	TargetInfo  bool   // Set true if the compiler should describe the build target and exit.
	TokenStream bool   // Set true if compiler should output token stream and exit.
	Verbose     bool   // Set by -vb. No compiler stage reads it; output is the same with or without it.
}

// ---------------------
// ----- Constants -----
// ---------------------

const appVersion = "jam compiler 1.0"

// ---------------------
// ----- functions -----
// ---------------------

// ParseArgs parses command line arguments.
func ParseArgs() (Options, error) {
	opt := Options{}
	args := os.Args[1:]
	for i1 := 0; i1 < len(args); i1++ {
		switch args[i1] {
		case "-h", "--h", "-help", "--help":
			// Help and usage.
			printHelp()
			os.Exit(0)
		case "--run":
			// JIT execute the module instead of emitting an object file.
			opt.Run = true
		case "--target-info":
			// Describe the build target and exit.
			opt.TargetInfo = true
		case "-o", "-triple":
			if i1+1 >= len(args) {
				return opt, fmt.Errorf("got flag %s but no argument", args[i1])
			}
			if strings.HasPrefix(args[i1+1], "-") {
				return opt, fmt.Errorf("expected argument for flag %s, got new flag %s", args[i1], args[i1+1])
			}
			switch args[i1] {
			case "-o":
				// Output file.
				opt.Out = args[i1+1]
			case "-triple":
				// Target triple.
				opt.Triple = args[i1+1]
			}
			i1++
		case "-ts":
			// Output token stream.
			opt.TokenStream = true
		case "-v", "--v", "-version", "--version":
			// Application version.
			fmt.Println(appVersion)
			os.Exit(0)
		case "-vb":
			// Verbose mode.
			opt.Verbose = true
		default:
			if strings.HasPrefix(args[i1], "-") {
				return opt, fmt.Errorf("unexpected flag: %s", args[i1])
			}
			if len(opt.Src) > 0 {
				return opt, fmt.Errorf("multiple input files: %s and %s", opt.Src, args[i1])
			}
			opt.Src = args[i1]
		}
	}
	return opt, nil
}

// printHelp prints a helpful usage message to stdout.
func printHelp() {
	w := tabwriter.NewWriter(os.Stdout, 6, 1, 1, 0, 0)
	_, _ = fmt.Fprintln(w, "-h, -help\tPrints this help message and exits the application.")
	_, _ = fmt.Fprintln(w, "--h, --help")
	_, _ = fmt.Fprintln(w, "--run\tJIT execute the program and exit with its return value.")
	_, _ = fmt.Fprintln(w, "--target-info\tPrint a description of the build target and exit.")
	_, _ = fmt.Fprintln(w, "-o\tPath and name of the output object file.")
	_, _ = fmt.Fprintln(w, "-triple\tTarget triple to compile for. Defaults to the host target.")
	_, _ = fmt.Fprintln(w, "-ts\tOutput the tokens of the source code and exit.")
	_, _ = fmt.Fprintln(w, "-v, -version\tPrints application version and exits the application.")
	_, _ = fmt.Fprintln(w, "--v, --version")
	_, _ = fmt.Fprintln(w, "-vb\tVerbose mode flag. It is accepted but does not change the output.")
	_ = w.Flush()
}
