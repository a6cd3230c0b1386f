// Package cli implements invoicekeeper-cli, a one-shot command runner over
// the same store, numbering, import and settings components the HTTP API
// uses.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dmitrijs2005/invoicekeeper/internal/common"
	"github.com/dmitrijs2005/invoicekeeper/internal/importer"
	"github.com/dmitrijs2005/invoicekeeper/internal/models"
	"github.com/dmitrijs2005/invoicekeeper/internal/server/services"
)

type DocumentStore interface {
	ListDocuments(ctx context.Context, t models.DocumentType) ([]models.Document, error)
	GetDocumentByID(ctx context.Context, id string) (models.Document, error)
}

type NumberService interface {
	NextNumber(ctx context.Context, t models.DocumentType) (int, error)
}

type BatchImporter interface {
	ImportBatch(ctx context.Context, payload []byte) (importer.Result, error)
}

type SettingsService interface {
	Get(ctx context.Context) (services.SettingsView, error)
	Update(ctx context.Context, u models.SettingsUpdate) (services.SettingsView, error)
}

// ErrUsage is returned for an unknown command or missing arguments.
var ErrUsage = errors.New("usage error")

const usage = `Usage: invoicekeeper-cli [flags] <command>

Commands:
  list <type>      list invoices, estimates or receipts, newest first
  get <id>         print one document as JSON
  next <type>      show the next free number for a type
  import <file>    import a JSON array of documents
  settings         show and edit the WebDAV connection`

type Runner struct {
	Store    DocumentStore
	Numbers  NumberService
	Importer BatchImporter
	Settings SettingsService

	in  *bufio.Reader
	out io.Writer
}

func NewRunner(store DocumentStore, numbers NumberService, imp BatchImporter, settings SettingsService, in io.Reader, out io.Writer) *Runner {
	return &Runner{
		Store:    store,
		Numbers:  numbers,
		Importer: imp,
		Settings: settings,
		in:       bufio.NewReader(in),
		out:      out,
	}
}

// Run executes the command named by args[0].
func (r *Runner) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(r.out, usage)
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "help", "-h", "--help":
		fmt.Fprintln(r.out, usage)
		return nil
	case "list":
		if len(rest) != 1 {
			return r.usageError("list <type>")
		}
		return r.list(ctx, rest[0])
	case "get":
		if len(rest) != 1 {
			return r.usageError("get <id>")
		}
		return r.get(ctx, rest[0])
	case "next":
		if len(rest) != 1 {
			return r.usageError("next <type>")
		}
		return r.next(ctx, rest[0])
	case "import":
		if len(rest) != 1 {
			return r.usageError("import <file>")
		}
		return r.importFile(ctx, rest[0])
	case "settings":
		return r.settings(ctx)
	default:
		fmt.Fprintln(r.out, "Unknown command:", cmd)
		fmt.Fprintln(r.out, usage)
		return ErrUsage
	}
}

func (r *Runner) usageError(form string) error {
	fmt.Fprintln(r.out, "Usage:", form)
	return ErrUsage
}

func parsePrimaryType(s string) (models.DocumentType, error) {
	t, ok := models.ParseType(s)
	if !ok || !t.Primary() {
		return "", fmt.Errorf("%w: unknown document type %q", common.ErrValidation, s)
	}
	return t, nil
}

func (r *Runner) list(ctx context.Context, typ string) error {
	t, err := parsePrimaryType(typ)
	if err != nil {
		return err
	}

	docs, err := r.Store.ListDocuments(ctx, t)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintf(r.out, "No %s found\n", t.Container())
		return nil
	}

	tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tCUSTOMER\tSTATUS\tTOTAL")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\n", d.ID, d.Date, d.Customer.Name, d.Status, d.Total)
	}
	return tw.Flush()
}

func (r *Runner) get(ctx context.Context, id string) error {
	doc, err := r.Store.GetDocumentByID(ctx, id)
	if err != nil {
		return err
	}
	return r.printJSON(doc)
}

func (r *Runner) next(ctx context.Context, typ string) error {
	t, err := parsePrimaryType(typ)
	if err != nil {
		return err
	}
	n, err := r.Numbers.NextNumber(ctx, t)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%d %s\n", n, models.FormatID(t, n))
	return nil
}

type importReport struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Errors  int    `json:"errors"`
	Error   string `json:"error,omitempty"`
}

func (r *Runner) importFile(ctx context.Context, path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	res, err := r.Importer.ImportBatch(ctx, payload)
	if err != nil {
		report := importReport{Error: err.Error()}
		var partial *importer.PartialImportError
		if errors.As(err, &partial) {
			report.Count, report.Errors = partial.Imported, partial.Skipped
		}
		if perr := r.printJSON(report); perr != nil {
			return perr
		}
		return err
	}
	return r.printJSON(importReport{Success: true, Count: res.Imported, Errors: res.Skipped})
}

// settings prints the current connection and prompts for new values. An
// empty answer keeps the current value; "-" clears it.
func (r *Runner) settings(ctx context.Context) error {
	cur, err := r.Settings.Get(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Backend: %s\nURL: %s\nUsername: %s\nPassword set: %t\n",
		cur.Backend, cur.WebDAVURL, cur.WebDAVUsername, cur.PasswordSet)

	var u models.SettingsUpdate

	url, err := GetSimpleText(r.in, "WebDAV URL (empty keeps, - clears)", r.out)
	if err != nil {
		return err
	}
	u.WebDAVURL = answer(url)

	user, err := GetSimpleText(r.in, "WebDAV username (empty keeps, - clears)", r.out)
	if err != nil {
		return err
	}
	u.WebDAVUsername = answer(user)

	pw, err := GetPassword("WebDAV password (empty keeps)", r.out)
	if err != nil {
		return err
	}
	if len(pw) > 0 {
		s := string(pw)
		u.WebDAVPassword = &s
		clear(pw)
	}

	if u.WebDAVURL == nil && u.WebDAVUsername == nil && u.WebDAVPassword == nil {
		fmt.Fprintln(r.out, "Nothing changed")
		return nil
	}

	saved, err := r.Settings.Update(ctx, u)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Saved. Backend: %s\n", saved.Backend)
	return nil
}

func answer(s string) *string {
	switch s {
	case "":
		return nil
	case "-":
		empty := ""
		return &empty
	default:
		return &s
	}
}

func (r *Runner) printJSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
