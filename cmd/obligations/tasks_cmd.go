package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/obligations/internal/model"
	"github.com/nhle/obligations/internal/normalize"
	"github.com/nhle/obligations/internal/store"
	"github.com/nhle/obligations/internal/tasks"
)

type taskListOptions struct {
	department string
	client     string
	owner      string
	statuses   []string
	from       string
	to         string
	overdue    bool
	sort       string
	desc       bool
	limit      int
	offset     int
}

func (o taskListOptions) filter() (store.AssignmentFilter, error) {
	f := store.AssignmentFilter{SortBy: o.sort, SortDesc: o.desc, Limit: o.limit, Offset: o.offset}
	if o.department != "" {
		d, err := parseDepartmentFlag(o.department)
		if err != nil {
			return f, err
		}
		f.Department = &d
	}
	if o.client != "" {
		taxID := normalize.TaxID(o.client)
		f.ClientTaxID = &taxID
	}
	if o.owner != "" {
		f.OwnerID = &o.owner
	}
	for _, st := range o.statuses {
		status := model.Status(strings.ToUpper(strings.TrimSpace(st)))
		if !status.Stored() {
			return f, withCode(exitUsage, fmt.Errorf("invalid --status %q", st))
		}
		f.Statuses = append(f.Statuses, status)
	}
	var err error
	if f.DueFrom, err = parseDateFlag("from", o.from); err != nil {
		return f, err
	}
	if f.DueTo, err = parseDateFlag("to", o.to); err != nil {
		return f, err
	}
	return f, nil
}

func newTasksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List assigned tasks and move them through their lifecycle",
	}
	cmd.AddCommand(newTaskListCmd(a))
	cmd.AddCommand(newTaskSummaryCmd(a))
	cmd.AddCommand(newTaskTransitionCmd(a, "start", "Start working on a task", (*tasks.Service).Start))
	cmd.AddCommand(newTaskTransitionCmd(a, "reopen", "Reopen a completed or inapplicable task", (*tasks.Service).Reopen))
	cmd.AddCommand(newTaskTransitionCmd(a, "skip", "Mark one task not applicable", (*tasks.Service).MarkNotApplicable))
	cmd.AddCommand(newTaskCompleteCmd(a))
	return cmd
}

func addListFlags(cmd *cobra.Command, o *taskListOptions) {
	f := cmd.Flags()
	f.StringVar(&o.department, "department", "", "Department")
	f.StringVar(&o.client, "client", "", "Client tax id")
	f.StringVar(&o.owner, "owner", "", "Owner agent id")
	f.StringSliceVar(&o.statuses, "status", nil, "Stored statuses (PENDING, IN_PROGRESS, COMPLETED, NOT_APPLICABLE)")
	f.StringVar(&o.from, "from", "", "Due on or after")
	f.StringVar(&o.to, "to", "", "Due on or before")
}

func newTaskListCmd(a *app) *cobra.Command {
	var opts taskListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks with their effective status",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := opts.filter()
			if err != nil {
				return err
			}
			s, err := a.open()
			if err != nil {
				return err
			}
			svc := tasks.NewService(s)
			var views []tasks.View
			if opts.overdue {
				views, err = svc.Overdue(cmd.Context(), filter)
			} else {
				views, err = svc.List(cmd.Context(), filter)
			}
			if err != nil {
				return classify(err)
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), views)
			}
			return printTasks(cmd.OutOrStdout(), views)
		},
	}
	addListFlags(cmd, &opts)
	cmd.Flags().BoolVar(&opts.overdue, "overdue", false, "Only open tasks past their due date")
	cmd.Flags().StringVar(&opts.sort, "sort", "due_date", "Sort by due_date, created_at, updated_at, status or client_tax_id")
	cmd.Flags().BoolVar(&opts.desc, "desc", false, "Sort descending")
	cmd.Flags().IntVar(&opts.limit, "limit", 100, "Maximum rows (0 for all)")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Rows to skip")
	return cmd
}

func newTaskSummaryCmd(a *app) *cobra.Command {
	var opts taskListOptions

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Count tasks by effective status",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := opts.filter()
			if err != nil {
				return err
			}
			s, err := a.open()
			if err != nil {
				return err
			}
			counts, err := tasks.NewService(s).Summary(cmd.Context(), filter)
			if err != nil {
				return classify(err)
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), counts)
			}
			order := []model.Status{
				model.StatusPending, model.StatusInProgress, model.StatusOverdue,
				model.StatusCompleted, model.StatusNotApplicable,
			}
			rows := make([][]string, len(order))
			for i, st := range order {
				rows[i] = []string{string(st), fmt.Sprint(counts[st])}
			}
			return table(cmd.OutOrStdout(), "STATUS\tTASKS", rows)
		},
	}
	addListFlags(cmd, &opts)
	return cmd
}

type transitionFunc func(*tasks.Service, context.Context, string) (*model.AssignedTask, error)

func newTaskTransitionCmd(a *app, use, short string, fn transitionFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " TASK_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open()
			if err != nil {
				return err
			}
			t, err := fn(tasks.NewService(s), cmd.Context(), args[0])
			if err != nil {
				return classify(err)
			}
			return printTask(cmd.OutOrStdout(), a, t)
		},
	}
}

func newTaskCompleteCmd(a *app) *cobra.Command {
	var on string

	cmd := &cobra.Command{
		Use:   "complete TASK_ID",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDateFlag("on", on)
			if err != nil {
				return err
			}
			s, err := a.open()
			if err != nil {
				return err
			}
			var completed time.Time
			if day != nil {
				completed = *day
			}
			t, err := tasks.NewService(s).Complete(cmd.Context(), args[0], completed)
			if err != nil {
				return classify(err)
			}
			return printTask(cmd.OutOrStdout(), a, t)
		},
	}
	cmd.Flags().StringVar(&on, "on", "", "Completion date (default: today)")
	return cmd
}

func printTask(w io.Writer, a *app, t *model.AssignedTask) error {
	if a.jsonOut {
		return writeJSON(w, t)
	}
	_, err := fmt.Fprintf(w, "task %s (%s, template %d, due %s): %s\n",
		t.ID, t.ClientTaxID, t.TemplateID, model.FormatDate(t.DueDate), t.Status)
	return err
}

func printTasks(w io.Writer, views []tasks.View) error {
	rows := make([][]string, len(views))
	for i, v := range views {
		rows[i] = []string{
			v.ID, model.FormatDate(v.DueDate), v.ClientTaxID, fmt.Sprint(v.TemplateID),
			string(v.Effective), orDash(v.OwnerID), orDash(v.FolderRef),
		}
	}
	return table(w, "ID\tDUE\tCLIENT\tTEMPLATE\tSTATUS\tOWNER\tFOLDER", rows)
}
