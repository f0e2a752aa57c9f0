package main

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cc2wasm/cc2wasm/internal/clog"
	"github.com/cc2wasm/cc2wasm/internal/compiler"
)

//go:embed testdata/golden/*.c testdata/golden/*.out
var goldenFS embed.FS

// goldenCase is one bundled C program and the observable trace a correct
// compile+run must reproduce. A case's header comments declare the
// expectation: `expect-exit: N`, and either `expect-stdout: "..."` (a
// Go-quoted string literal) or `expect-stdout-file: name.out` (a sibling
// fixture, for traces too long to read comfortably inline).
type goldenCase struct {
	name       string
	source     string
	wantExit   int32
	wantStdout string
}

// runSelftest compiles and runs every bundled golden program concurrently
// and reports a pass/fail summary; it returns true iff every case passed.
func runSelftest(log *clog.Logger) bool {
	cases, err := loadGoldenCases()
	if err != nil {
		fmt.Printf("selftest: failed to load golden cases: %s\n", err)
		return false
	}

	results := make([]string, len(cases))
	failed := make([]bool, len(cases))

	var eg errgroup.Group
	ctx := context.Background()
	for i, c := range cases {
		i, c := i, c
		eg.Go(func() error {
			ok, msg := runGoldenCase(ctx, c, log)
			results[i] = msg
			failed[i] = !ok
			return nil
		})
	}
	_ = eg.Wait() // each goroutine records its own outcome; never returns an error

	allOK := true
	for i, c := range cases {
		status := "PASS"
		if failed[i] {
			status = "FAIL"
			allOK = false
		}
		fmt.Printf("[%s] %s\n", status, c.name)
		if failed[i] {
			fmt.Print(results[i])
		}
	}
	fmt.Println()
	if allOK {
		fmt.Printf("%d/%d golden programs passed.\n", len(cases), len(cases))
	} else {
		fmt.Printf("some golden programs failed (see above).\n")
	}
	return allOK
}

func runGoldenCase(ctx context.Context, c goldenCase, log *clog.Logger) (bool, string) {
	var b strings.Builder

	_, runRes, err := compiler.CompileAndRun(ctx, c.name, c.source, compiler.DefaultOptions, log)
	if err != nil {
		fmt.Fprintf(&b, "  error: %s\n", err)
		return false, b.String()
	}
	if runRes == nil {
		fmt.Fprintf(&b, "  compilation rejected the source\n")
		return false, b.String()
	}

	ok := true
	if runRes.ExitCode != c.wantExit {
		fmt.Fprintf(&b, "  exit code: want %d, got %d\n", c.wantExit, runRes.ExitCode)
		ok = false
	}
	if runRes.Stdout != c.wantStdout {
		fmt.Fprintf(&b, "  stdout mismatch:\n    want %q\n    got  %q\n", c.wantStdout, runRes.Stdout)
		ok = false
	}

	// Re-run with every optimization disabled; the observable trace must
	// be identical (semantics preservation across stack packing and TCO).
	unopt := compiler.Options{PackStack: false, TailCall: false}
	_, unoptRes, err := compiler.CompileAndRun(ctx, c.name, c.source, unopt, log)
	if err != nil {
		fmt.Fprintf(&b, "  unoptimized build error: %s\n", err)
		return false, b.String()
	}
	if unoptRes != nil {
		if unoptRes.ExitCode != runRes.ExitCode || unoptRes.Stdout != runRes.Stdout {
			fmt.Fprintf(&b, "  unoptimized trace differs: exit %d stdout %q\n", unoptRes.ExitCode, unoptRes.Stdout)
			ok = false
		}
	}

	return ok, b.String()
}

func loadGoldenCases() ([]goldenCase, error) {
	entries, err := goldenFS.ReadDir("testdata/golden")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".c") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var cases []goldenCase
	for _, name := range names {
		raw, err := goldenFS.ReadFile(path.Join("testdata/golden", name))
		if err != nil {
			return nil, err
		}
		c, err := parseGoldenCase(name, string(raw))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// parseGoldenCase reads a case's `expect-*` header comments. Lines are
// plain `// key: value` comments at the top of the file; scanning stops at
// the first non-comment, non-blank line.
func parseGoldenCase(name, source string) (goldenCase, error) {
	c := goldenCase{name: name, source: source, wantExit: 0}

	lines := strings.Split(source, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "//") {
			break
		}
		directive := strings.TrimSpace(strings.TrimPrefix(trimmed, "//"))
		key, val, found := strings.Cut(directive, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		switch key {
		case "expect-exit":
			n, err := strconv.ParseInt(val, 10, 32)
			if err != nil {
				return c, fmt.Errorf("bad expect-exit value %q: %w", val, err)
			}
			c.wantExit = int32(n)
		case "expect-stdout":
			s, err := strconv.Unquote(val)
			if err != nil {
				return c, fmt.Errorf("bad expect-stdout value %q: %w", val, err)
			}
			c.wantStdout = s
		case "expect-stdout-file":
			data, err := goldenFS.ReadFile(path.Join("testdata/golden", val))
			if err != nil {
				return c, fmt.Errorf("reading %s: %w", val, err)
			}
			c.wantStdout = string(bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n")))
		}
	}
	return c, nil
}
