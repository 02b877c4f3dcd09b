// Mocha runs, checks and formats MochaScript programs.
//
// Usage:
//
//	# Run a program and print its final value
//	mocha run hello.mocha
//
//	# Run a program read from stdin, printing the value as JSON
//	echo 'say "hi"; 1 to 3' | mocha run - --json
//
//	# Report unbound names and duplicate parameters without running
//	mocha check hello.mocha
//
//	# Rewrite a file in canonical form
//	mocha fmt --write hello.mocha
//
//	# Interactive session
//	mocha repl
package main

import "os"

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
