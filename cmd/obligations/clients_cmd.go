package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/obligations/internal/model"
	"github.com/nhle/obligations/internal/normalize"
	"github.com/nhle/obligations/internal/store"
)

func newClientsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "Manage the client roster",
	}
	cmd.AddCommand(newClientListCmd(a))
	cmd.AddCommand(newClientAddCmd(a))
	cmd.AddCommand(newClientOwnerCmd(a))
	cmd.AddCommand(newClientDeactivateCmd(a))
	return cmd
}

func newClientListCmd(a *app) *cobra.Command {
	var portfolio, query string
	var all bool
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.ClientFilter{ActiveOnly: !all, Limit: limit}
			if portfolio != "" {
				filter.Portfolio = &portfolio
			}
			if query != "" {
				filter.Query = &query
			}
			s, err := a.open()
			if err != nil {
				return err
			}
			list, err := s.ListClients(cmd.Context(), filter)
			if err != nil {
				return classify(err)
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			rows := make([][]string, len(list))
			for i, c := range list {
				rows[i] = []string{c.TaxID, c.Name, c.Portfolio, orDash(c.OwnerID)}
			}
			return table(cmd.OutOrStdout(), "TAX ID\tNAME\tPORTFOLIO\tOWNER", rows)
		},
	}
	cmd.Flags().StringVar(&portfolio, "portfolio", "", "Only this portfolio")
	cmd.Flags().StringVar(&query, "query", "", "Match name or tax id")
	cmd.Flags().BoolVar(&all, "all", false, "Include inactive clients")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows")
	return cmd
}

func newClientAddCmd(a *app) *cobra.Command {
	var portfolio, owner string

	cmd := &cobra.Command{
		Use:   "add TAX_ID NAME",
		Short: "Add a client",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			taxID := normalize.TaxID(args[0])
			if !normalize.ValidTaxID(taxID) {
				return withCode(exitUsage, fmt.Errorf("invalid tax id %q", args[0]))
			}
			s, err := a.open()
			if err != nil {
				return err
			}
			c := model.Client{TaxID: taxID, Name: strings.TrimSpace(args[1]), Portfolio: portfolio, Active: true}
			if owner != "" {
				id, err := resolveAgent(cmd, s, owner)
				if err != nil {
					return err
				}
				c.OwnerID = &id
			}
			if err := s.CreateClient(cmd.Context(), c); err != nil {
				return classify(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "client %s created\n", taxID)
			return nil
		},
	}
	cmd.Flags().StringVar(&portfolio, "portfolio", "", "Portfolio code")
	cmd.Flags().StringVar(&owner, "owner", "", "Owner agent id or email")
	return cmd
}

func newClientOwnerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-owner TAX_ID [AGENT]",
		Short: "Set or clear a client's owner",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open()
			if err != nil {
				return err
			}
			var owner *string
			if len(args) == 2 {
				id, err := resolveAgent(cmd, s, args[1])
				if err != nil {
					return err
				}
				owner = &id
			}
			taxID := normalize.TaxID(args[0])
			if err := s.SetClientOwner(cmd.Context(), taxID, owner); err != nil {
				return classify(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "client %s owner: %s\n", taxID, orDash(owner))
			return nil
		},
	}
}

func newClientDeactivateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate TAX_ID",
		Short: "Stop servicing a client; existing tasks are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open()
			if err != nil {
				return err
			}
			taxID := normalize.TaxID(args[0])
			if err := s.DeactivateClient(cmd.Context(), taxID); err != nil {
				return classify(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "client %s deactivated\n", taxID)
			return nil
		},
	}
}

func newAgentsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Manage the agent directory",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add NAME EMAIL",
		Short: "Add an agent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open()
			if err != nil {
				return err
			}
			email := strings.ToLower(strings.TrimSpace(args[1]))
			if err := s.CreateAgent(cmd.Context(), model.Agent{Name: args[0], Email: email, Active: true}); err != nil {
				return classify(err)
			}
			ag, err := s.GetAgentByEmail(cmd.Context(), email)
			if err != nil {
				return classify(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "agent %s created: %s\n", ag.ID, ag.Email)
			return nil
		},
	})
	return cmd
}

// resolveAgent accepts an agent id or email and returns the id.
func resolveAgent(cmd *cobra.Command, s store.AgentStore, ref string) (string, error) {
	var (
		ag  *model.Agent
		err error
	)
	if strings.Contains(ref, "@") {
		ag, err = s.GetAgentByEmail(cmd.Context(), ref)
	} else {
		ag, err = s.GetAgent(cmd.Context(), ref)
	}
	if err != nil {
		return "", classify(err)
	}
	return ag.ID, nil
}
