package cli

import (
	"fmt"
	"io"

	"reservation-service/internal/models"
	"reservation-service/internal/service"

	"github.com/spf13/cobra"
)

func categoriesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"category"},
		Short:   "Manage room categories",
	}
	cmd.AddCommand(categoriesListCmd(a))
	cmd.AddCommand(categoriesCreateCmd(a))
	cmd.AddCommand(categoriesUpdateCmd(a))
	return cmd
}

func categoriesListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List room categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.get(cmd.Context())
			if err != nil {
				return err
			}
			list, err := b.Catalog.ListRoomCategories(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), list, func(w io.Writer) error {
				return printCategories(w, list)
			})
		},
	}
}

func categoriesCreateCmd(a *app) *cobra.Command {
	var in service.RoomCategoryInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a room category",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.get(cmd.Context())
			if err != nil {
				return err
			}
			c, err := b.Catalog.CreateRoomCategory(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), c, func(w io.Writer) error {
				return printCategories(w, []models.RoomCategory{*c})
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "Category name")
	cmd.Flags().IntVar(&in.TotalRooms, "rooms", 0, "Total rooms")
	cmd.Flags().Int64Var(&in.BasePriceCents, "price", 0, "Base price per night, minor units")
	cmd.Flags().StringVar(&in.CurrencyCode, "currency", "", "ISO 4217 currency code (default RUB)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func categoriesUpdateCmd(a *app) *cobra.Command {
	var (
		name  string
		rooms int
		price int64
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change name, total rooms or base price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "category")
			if err != nil {
				return err
			}
			var patch service.RoomCategoryPatchInput
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("rooms") {
				patch.TotalRooms = &rooms
			}
			if cmd.Flags().Changed("price") {
				patch.BasePriceCents = &price
			}
			if patch.Name == nil && patch.TotalRooms == nil && patch.BasePriceCents == nil {
				return fmt.Errorf("nothing to update: set --name, --rooms or --price")
			}

			b, err := a.get(cmd.Context())
			if err != nil {
				return err
			}
			c, err := b.Catalog.UpdateRoomCategory(cmd.Context(), id, patch)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), c, func(w io.Writer) error {
				return printCategories(w, []models.RoomCategory{*c})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().IntVar(&rooms, "rooms", 0, "New total rooms")
	cmd.Flags().Int64Var(&price, "price", 0, "New base price, minor units")
	return cmd
}

func printCategories(w io.Writer, list []models.RoomCategory) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No room categories found.")
		return err
	}
	t := newTable(w)
	fmt.Fprintln(t, "ID\tNAME\tROOMS\tBASE PRICE")
	for _, c := range list {
		fmt.Fprintf(t, "%s\t%s\t%d\t%s\n", c.ID, c.Name, c.TotalRooms, formatMoney(c.BasePriceCents, c.CurrencyCode))
	}
	return t.Flush()
}
