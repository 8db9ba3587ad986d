package cli

import (
	"fmt"
	"io"
	"strconv"

	"reservation-service/internal/models"
	"reservation-service/internal/service"

	"github.com/spf13/cobra"
)

func depositPoliciesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deposit-policies",
		Aliases: []string{"deposits"},
		Short:   "Manage group booking deposit policies",
	}
	cmd.AddCommand(depositListCmd(a))
	cmd.AddCommand(depositAddCmd(a))
	cmd.AddCommand(depositToggleCmd(a, "enable", true))
	cmd.AddCommand(depositToggleCmd(a, "disable", false))
	return cmd
}

func depositListCmd(a *app) *cobra.Command {
	var onlyActive bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deposit policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.get(cmd.Context())
			if err != nil {
				return err
			}
			list, err := b.Catalog.ListDepositPolicies(cmd.Context(), onlyActive)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), list, func(w io.Writer) error {
				return printPolicies(w, list)
			})
		},
	}
	cmd.Flags().BoolVar(&onlyActive, "active", false, "Only active policies")
	return cmd
}

func depositAddCmd(a *app) *cobra.Command {
	var (
		in       service.DepositPolicyInput
		kind     string
		inactive bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a deposit policy for a rooms range",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Type = models.DepositType(kind)
			in.IsActive = !inactive

			b, err := a.get(cmd.Context())
			if err != nil {
				return err
			}
			p, err := b.Catalog.CreateDepositPolicy(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), p, func(w io.Writer) error {
				return printPolicies(w, []models.DepositPolicy{*p})
			})
		},
	}
	cmd.Flags().IntVar(&in.MinRooms, "min", 0, "Minimum rooms, inclusive")
	cmd.Flags().IntVar(&in.MaxRooms, "max", 0, "Maximum rooms, inclusive")
	cmd.Flags().StringVar(&kind, "type", string(models.DepositPercent), "PERCENT or FIXED")
	cmd.Flags().Float64Var(&in.Value, "value", 0, "Percent of total or fixed amount in minor units")
	cmd.Flags().StringVar(&in.Description, "description", "", "Free text")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Create the policy disabled")
	_ = cmd.MarkFlagRequired("min")
	_ = cmd.MarkFlagRequired("max")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func depositToggleCmd(a *app, use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: use + " a deposit policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "deposit policy")
			if err != nil {
				return err
			}
			b, err := a.get(cmd.Context())
			if err != nil {
				return err
			}
			p, err := b.Catalog.SetDepositPolicyActive(cmd.Context(), id, active)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), p, func(w io.Writer) error {
				return printPolicies(w, []models.DepositPolicy{*p})
			})
		},
	}
}

func printPolicies(w io.Writer, list []models.DepositPolicy) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No deposit policies found.")
		return err
	}
	t := newTable(w)
	fmt.Fprintln(t, "ID\tROOMS\tTYPE\tVALUE\tACTIVE")
	for _, p := range list {
		fmt.Fprintf(t, "%s\t%d-%d\t%s\t%s\t%t\n",
			p.ID, p.MinRooms, p.MaxRooms, p.Type, strconv.FormatFloat(p.Value, 'f', -1, 64), p.IsActive)
	}
	return t.Flush()
}
