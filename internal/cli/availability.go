package cli

import (
	"fmt"
	"io"

	"reservation-service/internal/stay"

	"github.com/spf13/cobra"
)

func availabilityCmd(a *app) *cobra.Command {
	var (
		category string
		from     string
		to       string
	)

	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Show rooms left per night",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(category, "category")
			if err != nil {
				return err
			}
			start, err := parseDateInput(from)
			if err != nil {
				return err
			}
			end, err := parseDateInput(to)
			if err != nil {
				return err
			}

			b, err := a.get(cmd.Context())
			if err != nil {
				return err
			}
			nights, err := b.Bookings.GetAvailability(cmd.Context(), id, start, end)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), nights, func(w io.Writer) error {
				t := newTable(w)
				fmt.Fprintln(t, "NIGHT\tAVAILABLE\tBLOCKED")
				for _, n := range nights {
					fmt.Fprintf(t, "%s\t%d\t%t\n", n.Night.Format(stay.DateLayout), n.AvailableRooms, n.Blocked)
				}
				return t.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Room category id")
	cmd.Flags().StringVar(&from, "from", "today", "First night")
	cmd.Flags().StringVar(&to, "to", "", "Check-out date, exclusive")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
