package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/obligations/internal/exclusion"
	"github.com/nhle/obligations/internal/generator"
	"github.com/nhle/obligations/internal/model"
)

type generateOptions struct {
	department string
	period     string
	priority   string
	audience   string
	portfolio  string
	provision  bool
}

func newGenerateCmd(a *app) *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Create the period's tasks for every client of a department",
		Example: "  obligations generate --department TAX --period 2025-03\n" +
			"  obligations generate --department PAYROLL --period 2025-04 --priority templateDefault",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, a, opts)
		},
	}

	cmd.Flags().StringVar(&opts.department, "department", "", "Department (required)")
	cmd.Flags().StringVar(&opts.period, "period", "", "Period as YYYY-MM (required)")
	cmd.Flags().StringVar(&opts.priority, "priority", "", "Owner priority: clientOwner or templateDefault (default from config)")
	cmd.Flags().StringVar(&opts.audience, "audience", "", "Templates to include: client-facing, internal or all (default from config)")
	cmd.Flags().StringVar(&opts.portfolio, "portfolio", "", "Only clients of this portfolio")
	cmd.Flags().BoolVar(&opts.provision, "provision", false, "Provision deliverable folders for created tasks")
	_ = cmd.MarkFlagRequired("department")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func runGenerate(cmd *cobra.Command, a *app, opts generateOptions) error {
	ctx := cmd.Context()

	dept, err := parseDepartmentFlag(opts.department)
	if err != nil {
		return err
	}
	year, month, err := parsePeriod(opts.period)
	if err != nil {
		return err
	}
	if opts.priority == "" {
		opts.priority = a.cfg.Generation.AssignmentPriority
	}
	priority, err := model.ParseAssignmentPriority(opts.priority)
	if err != nil {
		return withCode(exitUsage, err)
	}
	if opts.audience == "" {
		opts.audience = a.cfg.Generation.Audience
	}
	audience, err := model.ParseAudienceFilter(opts.audience)
	if err != nil {
		return withCode(exitUsage, err)
	}

	s, err := a.open()
	if err != nil {
		return err
	}
	reg := exclusion.NewRegistry(s, exclusion.WithReactivateOnClear(a.cfg.Exclusions.ReactivateOnClear))
	req := generator.Request{
		Department: dept,
		Year:       year,
		Month:      month,
		Options: generator.Options{
			AssignmentPriority: priority,
			Audience:           audience,
			Workers:            a.cfg.Generation.Workers,
			ChunkSize:          a.cfg.Import.ChunkSize,
		},
	}
	if opts.portfolio != "" {
		req.Options.Portfolio = &opts.portfolio
	}

	res, err := generator.New(s, reg).GenerateForPeriod(ctx, req)
	if err != nil {
		return classify(err)
	}

	out := cmd.OutOrStdout()
	if opts.provision && len(res.CreatedTasks) > 0 {
		if err := provisionCreated(cmd, a, res.CreatedTasks); err != nil {
			return err
		}
	}
	if a.jsonOut {
		return writeJSON(out, res)
	}
	fmt.Fprintf(out, "%s %d-%02d: %s\n", dept, year, month, res.Message)
	return table(out, "TEMPLATES\tCLIENTS\tSTAGED\tEXCLUDED\tCREATED\tEXISTING\tFAILED", [][]string{{
		fmt.Sprint(res.Templates), fmt.Sprint(res.Clients), fmt.Sprint(res.Staged),
		fmt.Sprint(res.Excluded), fmt.Sprint(res.Created), fmt.Sprint(res.AlreadyExisted),
		fmt.Sprint(res.Failed),
	}})
}
