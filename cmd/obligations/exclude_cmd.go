package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/obligations/internal/exclusion"
	"github.com/nhle/obligations/internal/model"
	"github.com/nhle/obligations/internal/normalize"
)

func newExcludeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exclude",
		Short: "Manage per-client template exclusions",
	}
	cmd.AddCommand(newExclusionSetCmd(a, true))
	cmd.AddCommand(newExclusionSetCmd(a, false))
	cmd.AddCommand(newExclusionListCmd(a))
	return cmd
}

func newExclusionSetCmd(a *app, excluded bool) *cobra.Command {
	var from, reason string

	use, short := "set CLIENT_TAX_ID TEMPLATE_ID", "Stop a template applying to a client"
	if !excluded {
		use, short = "lift CLIENT_TAX_ID TEMPLATE_ID", "Make a template apply to a client again"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			taxID, templateID, err := parsePair(args)
			if err != nil {
				return err
			}
			effective, err := parseDateFlag("from", from)
			if err != nil {
				return err
			}

			s, err := a.open()
			if err != nil {
				return err
			}
			reg := exclusion.NewRegistry(s, exclusion.WithReactivateOnClear(a.cfg.Exclusions.ReactivateOnClear))
			res, err := reg.SetExclusion(cmd.Context(), exclusion.SetRequest{
				ClientTaxID:   taxID,
				TemplateID:    templateID,
				Excluded:      excluded,
				Reason:        reason,
				EffectiveFrom: effective,
			})
			if err != nil {
				return classify(err)
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				return writeJSON(out, res)
			}
			state := "applies"
			if res.Exclusion.Excluded {
				state = "excluded"
			}
			fmt.Fprintf(out, "%s / template %d: %s from %s\n", taxID, templateID, state, effectiveLabel(res.Exclusion.EffectiveFrom))
			fmt.Fprintf(out, "%d tasks marked not applicable, %d reactivated\n", res.MarkedNotApplicable, res.Reactivated)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Effective date (default: always)")
	cmd.Flags().StringVar(&reason, "reason", "", "Why the exclusion changed")
	return cmd
}

func newExclusionListCmd(a *app) *cobra.Command {
	var on string

	cmd := &cobra.Command{
		Use:   "list CLIENT_TAX_ID",
		Short: "List active templates and whether each applies to a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day := model.DateOnly(time.Now())
			if d, err := parseDateFlag("on", on); err != nil {
				return err
			} else if d != nil {
				day = *d
			}

			s, err := a.open()
			if err != nil {
				return err
			}
			list, err := exclusion.NewRegistry(s).ApplicableTemplates(cmd.Context(), normalize.TaxID(args[0]), day)
			if err != nil {
				return classify(err)
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				return writeJSON(out, list)
			}
			rows := make([][]string, 0, len(list))
			for _, ap := range list {
				applies, reason := "yes", ""
				if !ap.Applies {
					applies = "no"
				}
				if ap.Exclusion != nil {
					reason = ap.Exclusion.Reason
				}
				rows = append(rows, []string{
					fmt.Sprint(ap.Template.ID), ap.Template.Name, string(ap.Template.Department),
					string(ap.Template.Frequency), applies, reason,
				})
			}
			return table(out, "ID\tTEMPLATE\tDEPARTMENT\tFREQUENCY\tAPPLIES\tREASON", rows)
		},
	}
	cmd.Flags().StringVar(&on, "on", "", "Evaluate on this date (default: today)")
	return cmd
}

func parsePair(args []string) (string, int64, error) {
	taxID := normalize.TaxID(args[0])
	if !normalize.ValidTaxID(taxID) {
		return "", 0, withCode(exitUsage, fmt.Errorf("invalid tax id %q", args[0]))
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return "", 0, withCode(exitUsage, fmt.Errorf("invalid template id %q", args[1]))
	}
	return taxID, id, nil
}

func effectiveLabel(t *time.Time) string {
	if t == nil {
		return "always"
	}
	return model.FormatDate(*t)
}
