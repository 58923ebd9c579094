package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/obligations/internal/deliverable"
	"github.com/nhle/obligations/internal/model"
	"github.com/nhle/obligations/internal/store"
)

func newProvisionCmd(a *app) *cobra.Command {
	var department, period string

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create missing deliverable folders for a period's tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := parsePeriod(period)
			if err != nil {
				return err
			}
			from := model.Date(year, month, 1)
			to := from.AddDate(0, 1, -1)
			filter := store.AssignmentFilter{
				DueFrom:  &from,
				DueTo:    &to,
				Statuses: model.ActiveStatuses,
			}
			if department != "" {
				d, err := parseDepartmentFlag(department)
				if err != nil {
					return err
				}
				filter.Department = &d
			}

			s, err := a.open()
			if err != nil {
				return err
			}
			list, err := s.ListAssignments(cmd.Context(), filter)
			if err != nil {
				return classify(err)
			}
			return provisionCreated(cmd, a, list)
		},
	}
	cmd.Flags().StringVar(&department, "department", "", "Only tasks of this department")
	cmd.Flags().StringVar(&period, "period", "", "Period as YYYY-MM (required)")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

// provisionCreated provisions folders for tasks. Failures are printed and
// left for a later `provision` run; they never fail the command that
// created the tasks.
func provisionCreated(cmd *cobra.Command, a *app, tasks []model.AssignedTask) error {
	ctx := cmd.Context()
	if a.cfg.Drive.CredentialsFile == "" || a.cfg.Drive.ParentFolderID == "" {
		return withCode(exitUsage, fmt.Errorf("drive.credentials_file and drive.parent_folder_id must be configured to provision folders"))
	}
	p, err := deliverable.NewDriveProvisioner(ctx, a.cfg.Drive.CredentialsFile, a.cfg.Drive.ParentFolderID)
	if err != nil {
		return withCode(exitUsage, err)
	}
	s, err := a.open()
	if err != nil {
		return err
	}

	rep, err := deliverable.ProvisionFolders(ctx, s, p, tasks)
	if err != nil {
		return withCode(exitDBWrite, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "folders: %d provisioned, %d skipped, %d failed\n",
		rep.Provisioned, rep.Skipped, len(rep.Failures))
	for _, f := range rep.Failures {
		fmt.Fprintf(cmd.ErrOrStderr(), "  task %s (%s, template %d): %v\n",
			f.Task.ID, f.Task.ClientTaxID, f.Task.TemplateID, f.Err)
	}
	return nil
}
