package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// ErrIntegrityIssues: проверка нашла нарушения; процесс завершается с ненулевым кодом.
var ErrIntegrityIssues = errors.New("integrity issues found")

func integrityCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "integrity",
		Short: "Check deposit policy overlaps, duplicate special days and ledger drift",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.get(cmd.Context())
			if err != nil {
				return err
			}
			report, err := b.Checker.Run(cmd.Context())
			if err != nil {
				return err
			}
			err = a.print(cmd.OutOrStdout(), report, func(w io.Writer) error {
				if report.OK() {
					_, err := fmt.Fprintln(w, "OK: no integrity issues.")
					return err
				}
				t := newTable(w)
				fmt.Fprintln(t, "KIND\tMESSAGE")
				for _, issue := range report.Issues {
					fmt.Fprintf(t, "%s\t%s\n", issue.Kind, issue.Message)
				}
				return t.Flush()
			})
			if err != nil {
				return err
			}
			if !report.OK() {
				return ErrIntegrityIssues
			}
			return nil
		},
	}
}
