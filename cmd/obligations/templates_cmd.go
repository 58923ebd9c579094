package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nhle/obligations/internal/model"
	"github.com/nhle/obligations/internal/normalize"
	"github.com/nhle/obligations/internal/store"
)

func newTemplatesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage the task template catalog",
	}
	cmd.AddCommand(newTemplateListCmd(a))
	cmd.AddCommand(newTemplateAddCmd(a))
	cmd.AddCommand(newTemplateDeactivateCmd(a))
	return cmd
}

func newTemplateListCmd(a *app) *cobra.Command {
	var department, audience string
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.TemplateFilter{ActiveOnly: !all}
			if department != "" {
				d, err := parseDepartmentFlag(department)
				if err != nil {
					return err
				}
				filter.Department = &d
			}
			af, err := model.ParseAudienceFilter(audience)
			if err != nil {
				return withCode(exitUsage, err)
			}
			filter.Audience = af

			s, err := a.open()
			if err != nil {
				return err
			}
			list, err := s.ListTemplates(cmd.Context(), filter)
			if err != nil {
				return classify(err)
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			rows := make([][]string, len(list))
			for i, t := range list {
				anchor := "-"
				if n := t.Anchor(); n > 0 {
					anchor = strconv.Itoa(n)
				}
				active := "yes"
				if !t.Active {
					active = "no"
				}
				rows[i] = []string{
					fmt.Sprint(t.ID), t.Name, string(t.Department), string(t.Frequency),
					anchor, string(t.Audience), strconv.FormatBool(t.RequiresFolder), active,
				}
			}
			return table(cmd.OutOrStdout(), "ID\tNAME\tDEPARTMENT\tFREQUENCY\tANCHOR\tAUDIENCE\tFOLDER\tACTIVE", rows)
		},
	}
	cmd.Flags().StringVar(&department, "department", "", "Only this department")
	cmd.Flags().StringVar(&audience, "audience", "all", "client-facing, internal or all")
	cmd.Flags().BoolVar(&all, "all", false, "Include inactive templates")
	return cmd
}

func newTemplateAddCmd(a *app) *cobra.Command {
	var (
		name, department, frequency, audience string
		documentCode, detail, owner           string
		day, weekday                          int
		requiresFolder                        bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a template",
		Example: "  obligations templates add --name \"VAT Filing\" --department TAX --frequency MONTHLY --day 12\n" +
			"  obligations templates add --name \"Bank Reconciliation\" --department ACCOUNTING --frequency WEEKLY --weekday 5",
		RunE: func(cmd *cobra.Command, args []string) error {
			dept, err := parseDepartmentFlag(department)
			if err != nil {
				return err
			}
			freq, err := model.ParseFrequency(frequency)
			if err != nil {
				return withCode(exitUsage, err)
			}
			aud, err := model.ParseAudience(audience)
			if err != nil {
				return withCode(exitUsage, err)
			}
			tpl := model.TaskTemplate{
				Department:     dept,
				Name:           name,
				NameKey:        normalize.NameKey(name),
				Frequency:      freq,
				Audience:       aud,
				RequiresFolder: requiresFolder,
				DocumentCode:   documentCode,
				Detail:         detail,
				Active:         true,
			}
			if cmd.Flags().Changed("day") {
				tpl.DayOfMonth = &day
			}
			if cmd.Flags().Changed("weekday") {
				tpl.Weekday = &weekday
			}

			s, err := a.open()
			if err != nil {
				return err
			}
			if owner != "" {
				id, err := resolveAgent(cmd, s, owner)
				if err != nil {
					return err
				}
				tpl.DefaultOwnerID = &id
			}
			if err := s.CreateTemplate(cmd.Context(), &tpl); err != nil {
				return classify(err)
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), tpl)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "template %d created: %s\n", tpl.ID, tpl.Name)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "Template name (required)")
	f.StringVar(&department, "department", "", "Department (required)")
	f.StringVar(&frequency, "frequency", "", "MONTHLY, WEEKLY or ONE_OFF (required)")
	f.IntVar(&day, "day", 0, "Day of month for MONTHLY templates")
	f.IntVar(&weekday, "weekday", 0, "ISO weekday for WEEKLY templates (1 = Monday)")
	f.StringVar(&audience, "audience", string(model.AudienceClient), "client-facing or internal")
	f.StringVar(&owner, "owner", "", "Default owner agent id or email")
	f.BoolVar(&requiresFolder, "requires-folder", false, "Tasks need a deliverable folder")
	f.StringVar(&documentCode, "document-code", "", "Form or document code")
	f.StringVar(&detail, "detail", "", "Free text description")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("department")
	_ = cmd.MarkFlagRequired("frequency")
	return cmd
}

func newTemplateDeactivateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate TEMPLATE_ID",
		Short: "Stop generating a template; existing tasks are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("invalid template id %q", args[0]))
			}
			s, err := a.open()
			if err != nil {
				return err
			}
			if err := s.DeactivateTemplate(cmd.Context(), id); err != nil {
				return classify(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "template %d deactivated\n", id)
			return nil
		},
	}
}
