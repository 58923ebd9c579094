package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/obligations/internal/importer"
	"github.com/nhle/obligations/internal/model"
	"github.com/nhle/obligations/internal/sheet"
)

type importOptions struct {
	sheet      string
	due        string
	department string
	audience   string
	portfolio  string
	forceOwner bool
	dryRun     bool
	provision  bool
}

func newImportCmd(a *app) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Reconcile a spreadsheet (.xlsx or .csv) into clients, templates and tasks",
		Long: "Rows name a client by tax id and one or more templates by id or name.\n" +
			"Templates that do not exist yet are created from the frequency, day and\n" +
			"weekday columns of the same sheet; contradictory or missing configuration\n" +
			"rejects the whole file before anything is written.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, a, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.sheet, "sheet", "", "Worksheet name (default: first sheet)")
	f.StringVar(&opts.due, "due", "", "Due date for rows without one")
	f.StringVar(&opts.department, "department", "", "Department for new templates whose rows name none")
	f.StringVar(&opts.audience, "audience", "", "Audience for new templates whose rows name none (default client-facing)")
	f.StringVar(&opts.portfolio, "portfolio", "", "Portfolio for new clients")
	f.BoolVar(&opts.forceOwner, "force-owner", false, "Replace existing clients' owners with the owner named in the sheet")
	f.BoolVar(&opts.dryRun, "dry-run", false, "Report what would happen without writing")
	f.BoolVar(&opts.provision, "provision", false, "Provision deliverable folders for created tasks")
	return cmd
}

func runImport(cmd *cobra.Command, a *app, path string, opts importOptions) error {
	ctx := cmd.Context()

	d := importer.Defaults{
		Portfolio:          opts.portfolio,
		ForceOverrideOwner: opts.forceOwner || a.cfg.Import.ForceOverrideOwner,
		DryRun:             opts.dryRun,
		ChunkSize:          a.cfg.Import.ChunkSize,
		Workers:            a.cfg.Generation.Workers,
	}
	due, err := parseDateFlag("due", opts.due)
	if err != nil {
		return err
	}
	d.DueDate = due
	if opts.department != "" {
		if d.Department, err = parseDepartmentFlag(opts.department); err != nil {
			return err
		}
	}
	if opts.audience != "" {
		if d.Audience, err = model.ParseAudience(opts.audience); err != nil {
			return withCode(exitUsage, err)
		}
	}

	rows, err := sheet.ReadFile(path, opts.sheet)
	if err != nil {
		return withCode(exitValidation, err)
	}

	s, err := a.open()
	if err != nil {
		return err
	}
	res, importErr := importer.New(s).ImportRows(ctx, rows, d)
	if importErr != nil && len(res.Rows) == 0 {
		return classify(importErr)
	}

	out := cmd.OutOrStdout()
	if a.jsonOut {
		if err := writeJSON(out, res); err != nil {
			return err
		}
	} else if err := printImport(out, res); err != nil {
		return err
	}
	if importErr != nil {
		return classify(importErr)
	}

	if opts.provision && len(res.CreatedTasks) > 0 {
		return provisionCreated(cmd, a, res.CreatedTasks)
	}
	return nil
}

func printImport(w io.Writer, res importer.Result) error {
	rows := make([][]string, 0, len(res.Rows))
	for _, r := range res.Rows {
		valid := "ok"
		if !r.Valid {
			valid = "invalid"
		}
		notes := append(append([]string{}, r.Errors...), r.Warnings...)
		rows = append(rows, []string{
			fmt.Sprint(r.Line), valid, r.TaxID, string(r.ClientStatus),
			fmt.Sprintf("%d/%d", r.TemplatesResolved, r.TemplatesRequested),
			r.DueDate, fmt.Sprint(r.Created), fmt.Sprint(r.Skipped), strings.Join(notes, "; "),
		})
	}
	if err := table(w, "ROW\tSTATUS\tTAX_ID\tCLIENT\tTEMPLATES\tDUE\tCREATED\tSKIPPED\tNOTES", rows); err != nil {
		return err
	}

	mode := ""
	if res.DryRun {
		mode = " (dry run)"
	}
	_, err := fmt.Fprintf(w, "\n%d rows, %d invalid; %d staged, %d created, %d skipped, %d failed%s\n",
		res.RowsTotal, res.RowsInvalid, res.Staged, res.Created, res.Skipped, res.Failed, mode)
	if err != nil {
		return err
	}
	if len(res.ClientsCreated) > 0 {
		fmt.Fprintf(w, "new clients: %s\n", strings.Join(res.ClientsCreated, ", "))
	}
	for _, t := range res.TemplatesCreated {
		fmt.Fprintf(w, "new template %d: %s (%s, %s)\n", t.ID, t.Name, t.Frequency, t.Department)
	}
	if len(res.OwnersUpdated) > 0 {
		fmt.Fprintf(w, "owners replaced: %s\n", strings.Join(res.OwnersUpdated, ", "))
	}
	return nil
}
