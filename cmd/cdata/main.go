package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/ffi-runtime/cdata"
)

func main() {
	var (
		declFile    = flag.String("decl", "", "Path to a YAML file with type declarations")
		witFile     = flag.String("wit", "", "Path to a WIT package (.wit, or .json from wasm-tools) whose types to import")
		typeName    = flag.String("type", "", "Type of the object to allocate (e.g. \"struct point\")")
		sets        = flag.String("set", "", "Assignments to apply (path=value,path=value)")
		gets        = flag.String("get", "", "Paths to print (path,path)")
		list        = flag.Bool("list", false, "List declared type names and exit")
		backend     = flag.String("backend", "arena", "Memory backend: arena or wazero")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Log allocations to stderr")
	)
	flag.Parse()

	if *verbose {
		if l, err := zap.NewDevelopment(); err == nil {
			cdata.SetLogger(l)
			defer l.Sync() //nolint:errcheck
		}
	}

	if *typeName == "" && !*list && !*interactive {
		fmt.Fprintln(os.Stderr, "Usage: cdata [-decl types.yaml] [-wit types.wit] -type <ctype> [-set p=v,...] [-get p,...]")
		fmt.Fprintln(os.Stderr, "       cdata [-decl types.yaml] [-wit types.wit] -list")
		fmt.Fprintln(os.Stderr, "       cdata [-decl types.yaml] [-wit types.wit] [-type <ctype>] -i  (interactive mode)")
		os.Exit(1)
	}

	ctx := context.Background()
	s, err := openSession(ctx, *backend, sources{decl: *declFile, wit: *witFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer s.close(ctx)

	switch {
	case *list:
		err = listTypes(os.Stdout, s)
	case *interactive && term.IsTerminal(int(os.Stdin.Fd())):
		err = runInteractive(s, *typeName)
	case *interactive:
		err = runLines(os.Stdin, os.Stdout, s, *typeName)
	default:
		err = run(os.Stdout, s, *typeName, *sets, *gets)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		s.close(ctx)
		os.Exit(1)
	}
}

func listTypes(w io.Writer, s *session) error {
	out, err := s.exec("types")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func run(w io.Writer, s *session, typeName, sets, gets string) error {
	out, err := s.alloc(typeName)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "new %s => %s\n", typeName, out)

	for _, assign := range splitList(sets) {
		out, err := s.exec(assign)
		if err != nil {
			return fmt.Errorf("set %s: %w", assign, err)
		}
		fmt.Fprintf(w, "%s => %s\n", assign, out)
	}
	for _, path := range splitList(gets) {
		out, err := s.exec(path)
		if err != nil {
			return fmt.Errorf("get %s: %w", path, err)
		}
		fmt.Fprintf(w, "%s = %s\n", path, out)
	}
	return nil
}

// runLines is the inspector without a terminal: one command per line.
func runLines(r io.Reader, w io.Writer, s *session, typeName string) error {
	if typeName != "" {
		if _, err := s.alloc(typeName); err != nil {
			return err
		}
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "quit" || line == "exit" {
			break
		}
		out, err := s.exec(line)
		switch {
		case err != nil:
			fmt.Fprintf(w, "error: %v\n", err)
		case out != "":
			fmt.Fprintln(w, out)
		}
	}
	return sc.Err()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
