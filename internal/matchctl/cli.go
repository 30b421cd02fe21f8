// Package matchctl is a command-line client for the draft matching API.
package matchctl

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// ErrUsage is returned for a missing or unknown subcommand.
var ErrUsage = errors.New("usage error")

// File permission constants.
const (
	exportFilePermission = 0o600
)

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// CLI runs subcommands against a Client.
type CLI struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Run parses args (without the program name) and executes the subcommand.
func (c *CLI) Run(ctx context.Context, args []string) error {
	global := flag.NewFlagSet("matchctl", flag.ContinueOnError)
	global.SetOutput(c.Stderr)
	cfg := Config{}
	global.StringVar(&cfg.BaseURL, "url", DefaultBaseURL, "Base URL of the service")
	global.DurationVar(&cfg.Timeout, "timeout", DefaultTimeout, "HTTP request timeout")
	global.BoolVar(&cfg.Verbose, "verbose", false, "Log every request")
	global.Usage = func() { ShowHelp(c.Stderr) }
	if err := global.Parse(args); err != nil {
		return err
	}

	rest := global.Args()
	if len(rest) == 0 {
		ShowHelp(c.Stderr)
		return ErrUsage
	}
	client := NewClient(cfg)

	switch rest[0] {
	case "import":
		return c.runImport(ctx, client, rest[1:])
	case "export":
		return c.runExport(ctx, client, rest[1:])
	case "finalize":
		return c.runFinalize(ctx, client, rest[1:])
	case "applicants":
		return c.runApplicants(ctx, client, rest[1:])
	case "sync":
		n, err := client.Sync(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.Stdout, "synced %d assignments\n", n)
		return nil
	case "stats":
		stats, err := client.Stats(ctx)
		if err != nil {
			return err
		}
		return c.printJSON(stats)
	case "help":
		ShowHelp(c.Stdout)
		return nil
	default:
		ShowHelp(c.Stderr)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, rest[0])
	}
}

func (c *CLI) printJSON(v any) error {
	enc := json.NewEncoder(c.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *CLI) runImport(ctx context.Context, client *Client, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(c.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: import needs at least one file", ErrUsage)
	}

	for _, path := range fs.Args() {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		report, err := client.Import(ctx, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		fmt.Fprintf(c.Stdout, "%s: applied %d, skipped %d, guarantees %d, notes %d\n",
			path, report.Applied, len(report.Skipped), report.Guarantees, report.Notes)
		for _, sk := range report.Skipped {
			fmt.Fprintf(c.Stdout, "  skipped %s: %s\n", sk.Key, sk.Reason)
		}
	}
	return nil
}

func (c *CLI) runExport(ctx context.Context, client *Client, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(c.Stderr)
	var keys stringList
	out := fs.String("o", "", "Write to this file instead of stdout")
	fs.Var(&keys, "key", "Export only this match key (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *out == "" {
		return client.Export(ctx, c.Stdout, keys)
	}
	f, err := os.OpenFile(*out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, exportFilePermission)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	if err := client.Export(ctx, f, keys); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (c *CLI) runFinalize(ctx context.Context, client *Client, args []string) error {
	fs := flag.NewFlagSet("finalize", flag.ContinueOnError)
	fs.SetOutput(c.Stderr)
	var keys stringList
	all := fs.Bool("all", false, "Finalize every staged draft")
	fs.Var(&keys, "key", "Match key to finalize (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *all {
		drafts, err := client.Drafts(ctx)
		if err != nil {
			return err
		}
		for _, d := range drafts {
			keys = append(keys, d.Key())
		}
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: finalize needs -key or -all", ErrUsage)
	}

	report, err := client.Finalize(ctx, keys)
	var apiErr *APIError
	if errors.As(err, &apiErr) && len(apiErr.Conflicts) > 0 {
		if apiErr.Report != nil {
			fmt.Fprintf(c.Stdout, "finalized %d of %d\n", len(apiErr.Report.Removed), len(keys))
		}
		for _, it := range apiErr.Conflicts {
			fmt.Fprintf(c.Stdout, "  conflict %s: %s\n", it.Key, it.Reason)
		}
		return err
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Stdout, "finalized %d of %d\n", len(report.Removed), len(keys))
	return nil
}

func (c *CLI) runApplicants(ctx context.Context, client *Client, args []string) error {
	fs := flag.NewFlagSet("applicants", flag.ContinueOnError)
	fs.SetOutput(c.Stderr)
	var filters, sorts stringList
	position := fs.String("position", "", "Position code")
	search := fs.String("q", "", "Search name or utorid")
	asJSON := fs.Bool("json", false, "Print JSON instead of a table")
	fs.Var(&filters, "filter", `Filter as "type:v1,v2" (repeatable)`)
	fs.Var(&sorts, "sort", `Sort as "field[:desc]" (repeatable)`)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *position == "" {
		return fmt.Errorf("%w: applicants needs -position", ErrUsage)
	}

	rows, err := client.Applicants(ctx, *position, *search, filters, sorts)
	if err != nil {
		return err
	}
	if *asJSON {
		return c.printJSON(rows)
	}

	tw := tabwriter.NewWriter(c.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UTORID\tNAME\tDEPT\tYEAR\tPREF\tHOURS\tOWED\tSTATUS")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%d\t%d\t%g\t%g\t%s\n",
			r.Applicant.Utorid, r.Applicant.FirstName, r.Applicant.LastName,
			r.Application.Department, r.Application.YearInProgram, r.Preference,
			r.HoursAssigned, r.HoursOwed, status(r))
	}
	return tw.Flush()
}

func status(r Applicant) string {
	var parts []string
	if m := r.Match; m != nil {
		switch {
		case m.Assigned():
			parts = append(parts, "assigned")
		case m.StagedAssigned:
			parts = append(parts, "staged")
		}
		if m.Starred {
			parts = append(parts, "starred")
		}
		if m.Hidden {
			parts = append(parts, "hidden")
		}
	}
	if r.AssignedElsewhere {
		parts = append(parts, "elsewhere")
	}
	return strings.Join(parts, ",")
}

// ShowHelp prints usage information.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `matchctl: command-line client for the TAPP draft matching service

Usage:
  matchctl [global options] <command> [options]

Global options:
  -url string        Base URL of the service (default "http://localhost:9080")
  -timeout duration  HTTP request timeout (default 30s)
  -verbose           Log every request

Commands:
  import FILE...                       Merge exported files into the service
  export [-o FILE] [-key K]...         Download matches; all of them without -key
  finalize (-all | -key K...)          Persist drafts as assignments
  applicants -position CODE [-q TEXT] [-filter T:V,V]... [-sort F[:desc]]... [-json]
  sync                                 Mirror persisted assignments into the service
  stats                                Print service statistics

Examples:
  matchctl import matches.json
  matchctl applicants -position CSC108 -filter status:staged -sort hours_owed:desc
  matchctl finalize -key 'CSC108|abc123'
`)
}
