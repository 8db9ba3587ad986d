package cli

import (
	"fmt"
	"io"
	"strconv"

	"reservation-service/internal/models"
	"reservation-service/internal/service"
	"reservation-service/internal/stay"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func specialDaysCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "special-days",
		Aliases: []string{"days"},
		Short:   "Manage blocked dates and special rates",
	}
	cmd.AddCommand(specialDaysListCmd(a))
	cmd.AddCommand(specialDaysAddCmd(a))
	cmd.AddCommand(specialDaysToggleCmd(a, "enable", true))
	cmd.AddCommand(specialDaysToggleCmd(a, "disable", false))
	return cmd
}

func specialDaysListCmd(a *app) *cobra.Command {
	var (
		category   string
		from       string
		to         string
		onlyActive bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List special days",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := models.SpecialDayFilter{OnlyActive: onlyActive, WithWildcard: true}
			if category != "" {
				id, err := parseID(category, "category")
				if err != nil {
					return err
				}
				f.RoomCategoryID = &id
			}
			var err error
			if from != "" {
				if f.From, err = parseDateInput(from); err != nil {
					return err
				}
			}
			if to != "" {
				if f.To, err = parseDateInput(to); err != nil {
					return err
				}
			}
			if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
				return fmt.Errorf("--from must be on or before --to")
			}

			b, err := a.get(cmd.Context())
			if err != nil {
				return err
			}
			list, err := b.Catalog.ListSpecialDays(cmd.Context(), f)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), list, func(w io.Writer) error {
				return printSpecialDays(w, list)
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Room category id (wildcard rules are included)")
	cmd.Flags().StringVar(&from, "from", "", "From date (YYYY-MM-DD|today|tomorrow)")
	cmd.Flags().StringVar(&to, "to", "", "To date, exclusive")
	cmd.Flags().BoolVar(&onlyActive, "active", false, "Only active rules")
	return cmd
}

func specialDaysAddCmd(a *app) *cobra.Command {
	var (
		date        string
		category    string
		kind        string
		multiplier  float64
		fixed       int64
		description string
		inactive    bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a BLOCKED or SPECIAL_RATE rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDateInput(date)
			if err != nil {
				return err
			}
			in := service.SpecialDayInput{
				Date:        day,
				Kind:        models.SpecialDayKind(kind),
				IsActive:    !inactive,
				Description: description,
			}
			if category != "" {
				id, err := parseID(category, "category")
				if err != nil {
					return err
				}
				in.RoomCategoryID = &id
			}
			if cmd.Flags().Changed("multiplier") {
				in.Multiplier = &multiplier
			}
			if cmd.Flags().Changed("fixed") {
				in.FixedPriceCents = &fixed
			}

			b, err := a.get(cmd.Context())
			if err != nil {
				return err
			}
			d, err := b.Catalog.CreateSpecialDay(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), d, func(w io.Writer) error {
				return printSpecialDays(w, []models.SpecialDay{*d})
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Night (YYYY-MM-DD|today|tomorrow)")
	cmd.Flags().StringVar(&category, "category", "", "Room category id, empty for all categories")
	cmd.Flags().StringVar(&kind, "kind", string(models.SpecialDayBlocked), "BLOCKED or SPECIAL_RATE")
	cmd.Flags().Float64Var(&multiplier, "multiplier", 0, "Price multiplier for SPECIAL_RATE")
	cmd.Flags().Int64Var(&fixed, "fixed", 0, "Fixed nightly price for SPECIAL_RATE, minor units")
	cmd.Flags().StringVar(&description, "description", "", "Free text")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Create the rule disabled")
	_ = cmd.MarkFlagRequired("date")
	cmd.MarkFlagsMutuallyExclusive("multiplier", "fixed")
	return cmd
}

func specialDaysToggleCmd(a *app, use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: use + " a special day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "special day")
			if err != nil {
				return err
			}
			b, err := a.get(cmd.Context())
			if err != nil {
				return err
			}
			d, err := b.Catalog.SetSpecialDayActive(cmd.Context(), id, active)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), d, func(w io.Writer) error {
				return printSpecialDays(w, []models.SpecialDay{*d})
			})
		},
	}
}

func printSpecialDays(w io.Writer, list []models.SpecialDay) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No special days found.")
		return err
	}
	t := newTable(w)
	fmt.Fprintln(t, "ID\tDATE\tCATEGORY\tKIND\tPRICE\tACTIVE")
	for _, d := range list {
		fmt.Fprintf(t, "%s\t%s\t%s\t%s\t%s\t%t\n",
			d.ID, d.Date.Format(stay.DateLayout), scopeLabel(d.RoomCategoryID), d.Kind, priceLabel(d), d.IsActive)
	}
	return t.Flush()
}

func scopeLabel(id *uuid.UUID) string {
	if id == nil {
		return "*"
	}
	return id.String()
}

func priceLabel(d models.SpecialDay) string {
	switch {
	case d.FixedPriceCents != nil:
		return strconv.FormatInt(*d.FixedPriceCents, 10)
	case d.Multiplier != nil:
		return "x" + strconv.FormatFloat(*d.Multiplier, 'f', -1, 64)
	default:
		return "-"
	}
}
