package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/extpath/internal/build"
	"github.com/standardbeagle/extpath/internal/debug"
	"github.com/standardbeagle/extpath/internal/outputs"
	"github.com/standardbeagle/extpath/internal/types"
	"github.com/standardbeagle/extpath/internal/version"
	"github.com/standardbeagle/extpath/pkg/pathutil"
)

func openSession(c *cli.Context) (*build.Session, error) {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, err
	}
	return build.NewSession(cfg)
}

// selectFiles returns the files named on the command line, or every configured source
func selectFiles(c *cli.Context, s *build.Session) ([]string, error) {
	if c.NArg() == 0 {
		return s.Files()
	}
	files := make([]string, 0, c.NArg())
	for _, arg := range c.Args().Slice() {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %q: %w", arg, err)
		}
		files = append(files, abs)
	}
	return files, nil
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	parent := c.Context
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func resolveCommand(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	files, err := selectFiles(c, s)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(c)
	defer stop()

	toStdout := c.Bool("stdout")
	if toStdout {
		debug.SetQuietMode(true)
	}
	root := s.Config().Project.Root
	warnings := 0

	stats, err := s.Run(ctx, files, func(res build.FileResult) error {
		for _, d := range pathutil.ToRelativeDiagnostics(res.Result.Diagnostics, root) {
			if d.Severity == types.SeverityWarning {
				warnings++
			}
			fmt.Fprintln(c.App.ErrWriter, d.String())
		}
		if toStdout {
			_, err := fmt.Fprint(c.App.Writer, res.Result.Code)
			return err
		}
		return s.Write(res)
	})
	if err != nil {
		return err
	}

	if !toStdout {
		fmt.Fprintf(c.App.ErrWriter, "Resolved %d files (%d rewritten, %d warnings) into %s in %v\n",
			stats.Files, stats.Changed, warnings, pathutil.ToRelative(s.Config().OutPath(), root), stats.Duration.Round(time.Millisecond))
	}
	if c.Bool("strict") && warnings > 0 {
		return cli.Exit(fmt.Sprintf("%d warnings reported", warnings), 2)
	}
	return nil
}

type spanReport struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type referenceReport struct {
	File       string     `json:"file"`
	Span       spanReport `json:"span"`
	Category   string     `json:"category"`
	Declared   string     `json:"declared"`
	Normalized string     `json:"normalized"`
	Resolved   string     `json:"resolved,omitempty"`
	OK         bool       `json:"ok"`
}

type diagnosticReport struct {
	File       string `json:"file"`
	Line       int    `json:"line,omitempty"`
	Column     int    `json:"column,omitempty"`
	Kind       string `json:"kind"`
	Severity   string `json:"severity"`
	Path       string `json:"path,omitempty"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

type refsReport struct {
	Version     string             `json:"version"`
	Browser     string             `json:"browser"`
	Files       int                `json:"files"`
	References  []referenceReport  `json:"references"`
	Diagnostics []diagnosticReport `json:"diagnostics"`
}

func newReferenceReport(ref types.ResourceReference) referenceReport {
	return referenceReport{
		File:       ref.File,
		Span:       spanReport{Start: ref.Span.Start, End: ref.Span.End},
		Category:   string(ref.Category),
		Declared:   ref.DeclaredPath,
		Normalized: ref.NormalizedPath,
		Resolved:   ref.ResolvedPath,
		OK:         ref.Resolved,
	}
}

func newDiagnosticReport(d types.Diagnostic) diagnosticReport {
	return diagnosticReport{
		File:       d.File,
		Line:       d.Line,
		Column:     d.Column,
		Kind:       d.Kind.String(),
		Severity:   d.Severity.String(),
		Path:       d.Path,
		Message:    d.Message,
		Suggestion: d.Suggestion,
	}
}

func refsCommand(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	files, err := selectFiles(c, s)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(c)
	defer stop()

	root := s.Config().Project.Root
	report := refsReport{
		Version:     version.Version,
		Browser:     s.Config().Browser,
		References:  []referenceReport{},
		Diagnostics: []diagnosticReport{},
	}
	onlyUnresolved := c.Bool("unresolved")

	stats, err := s.Run(ctx, files, func(res build.FileResult) error {
		for _, ref := range pathutil.ToRelativeReferences(res.Result.References, root) {
			if onlyUnresolved && ref.Resolved {
				continue
			}
			report.References = append(report.References, newReferenceReport(ref))
		}
		for _, d := range pathutil.ToRelativeDiagnostics(res.Result.Diagnostics, root) {
			report.Diagnostics = append(report.Diagnostics, newDiagnosticReport(d))
		}
		return nil
	})
	if err != nil {
		return err
	}
	report.Files = stats.Files

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func watchCommand(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(c)
	defer stop()

	files, err := s.Files()
	if err != nil {
		return err
	}
	stats, err := s.Run(ctx, files, s.Write)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.ErrWriter, "Resolved %d files (%d rewritten) in %v, watching for changes...\n",
		stats.Files, stats.Changed, stats.Duration.Round(time.Millisecond))

	w, err := build.NewWatcher(s, s.Write)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	root := s.Config().Project.Root
	w.OnBatch(func(b build.Batch, st build.Stats, err error) {
		if err != nil {
			fmt.Fprintf(c.App.ErrWriter, "Rebuild failed: %v\n", err)
			return
		}
		reason := fmt.Sprintf("%d changed, %d removed", len(b.Changed), len(b.Removed))
		if b.ManifestChanged {
			reason = "manifest changed"
		}
		fmt.Fprintf(c.App.ErrWriter, "Re-resolved %d files (%s) in %v\n", st.Files, reason, st.Duration.Round(time.Millisecond))
		for _, path := range b.Changed {
			if res, err := s.ResolveFile(path); err == nil {
				for _, d := range pathutil.ToRelativeDiagnostics(res.Result.Diagnostics, root) {
					fmt.Fprintln(c.App.ErrWriter, d.String())
				}
			}
		}
	})
	if err := w.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	return w.Stop()
}

func planCommand(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	table, ok := s.Resolver().Table().(*outputs.MapTable)
	if !ok {
		return fmt.Errorf("output table of type %T cannot be printed", s.Resolver().Table())
	}
	data, err := outputs.EncodePlan(table, c.Bool("json"))
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	_, err = c.App.Writer.Write(data)
	return err
}
