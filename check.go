package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"squiggle/engine"
	"squiggle/parser"
	"squiggle/report"
	"squiggle/surface"
	"squiggle/text"
	"squiggle/types"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// exitCode ends the process with a status but no error message
type exitCode int

func (e exitCode) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

var checkCmd = &cobra.Command{
	Use:   "check [flags] <file>...",
	Short: "Run the highlight pipeline over files and print a report for each",
	Long: `check parses each file, prints every diagnostic, and shows the text
with the first in-source diagnostic highlighted. It exits with status 1 when
any file has a highlighted diagnostic.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().Int("jobs", 0, "max parallel workers (0=auto)")
	checkCmd.Flags().Bool("no-color", false, "disable colored output")
	checkCmd.Flags().String("source-line-ending", "auto", "line ending of the files (auto|crlf|lf|cr)")
	checkCmd.Flags().String("parser", "go", "diagnostics source (go|remote)")
	checkCmd.Flags().String("parser-url", "", "diagnostics service endpoint for the remote parser")
}

type checkOptions struct {
	jobs             int
	noColor          bool
	sourceLineEnding string
	parserType       types.ParserType
	parserURL        string
}

// checkResult is the outcome for one file
type checkResult struct {
	path      string
	content   string
	cycle     *engine.Cycle
	surface   *surface.Text
	err       error
	highlight bool
}

func runCheck(cmd *cobra.Command, args []string) error {
	jobs, _ := cmd.Flags().GetInt("jobs")
	noColor, _ := cmd.Flags().GetBool("no-color")
	lineEnding, _ := cmd.Flags().GetString("source-line-ending")
	parserType, _ := cmd.Flags().GetString("parser")
	parserURL, _ := cmd.Flags().GetString("parser-url")

	opts := checkOptions{
		jobs:             jobs,
		noColor:          noColor,
		sourceLineEnding: lineEnding,
		parserType:       types.ParserType(parserType),
		parserURL:        parserURL,
	}
	results, err := checkFiles(cmd.Context(), args, opts)
	if err != nil {
		return err
	}

	highlighted, err := writeResults(cmd.OutOrStdout(), results, opts)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if highlighted {
		return exitCode(1)
	}
	return nil
}

// checkFiles runs one recompute cycle per file, in parallel. Per-file
// failures are recorded in the result rather than aborting the run.
func checkFiles(ctx context.Context, paths []string, opts checkOptions) ([]checkResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.sourceLineEnding == "" {
		opts.sourceLineEnding = "auto"
	}
	if opts.sourceLineEnding != "auto" {
		if _, err := text.ParseConvention(opts.sourceLineEnding); err != nil {
			return nil, err
		}
	}

	jobs := opts.jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	// indexes are unique per goroutine, no mutex needed
	results := make([]checkResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, max(1, len(paths))))

	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			results[i] = checkFile(gctx, path, opts)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func checkFile(ctx context.Context, path string, opts checkOptions) checkResult {
	result := checkResult{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		result.err = err
		return result
	}
	result.content = string(data)

	p, err := parser.New(opts.parserType, &types.ParserConfig{URL: opts.parserURL, FilePath: path}, nil)
	if err != nil {
		result.err = err
		return result
	}

	result.surface = surface.NewText()
	controller := engine.NewController(result.surface, engine.ControllerConfig{
		SourceLineEnding:  opts.sourceLineEnding,
		DisplayLineEnding: text.LF.Name,
		HighlightFg:       "#ffff00",
		HighlightBg:       "#ff0000",
	})

	cycle, err := controller.Recompute(ctx, p, result.content, detectLineEnding(result.content))
	if err != nil {
		result.err = err
		return result
	}
	if cycle.ParseErr != nil {
		result.err = cycle.ParseErr
	}
	result.cycle = cycle
	result.highlight = cycle.Directive.Kind != types.DirectiveHide
	return result
}

// detectLineEnding guesses a file's convention from its first line break
func detectLineEnding(content string) string {
	i := strings.IndexAny(content, "\r\n")
	switch {
	case i < 0:
		return text.LF.Name
	case content[i] == '\n':
		return text.LF.Name
	case i+1 < len(content) && content[i+1] == '\n':
		return text.CRLF.Name
	default:
		return text.CR.Name
	}
}

// writeResults prints every report in argument order and reports whether any
// file had something highlighted
func writeResults(w io.Writer, results []checkResult, opts checkOptions) (bool, error) {
	highlighted := false
	for _, r := range results {
		if r.err != nil {
			if _, err := fmt.Fprintf(w, "%s: %v\n", r.path, r.err); err != nil {
				return highlighted, err
			}
		}
		if r.cycle == nil {
			continue
		}
		if err := report.Write(w, r.content, r.cycle.Diagnostics, report.Options{Name: r.path, NoColor: opts.noColor}); err != nil {
			return highlighted, err
		}
		if r.surface != nil {
			if _, err := fmt.Fprint(w, r.surface.String()); err != nil {
				return highlighted, err
			}
		}
		highlighted = highlighted || r.highlight
	}
	return highlighted, nil
}
