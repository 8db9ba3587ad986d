package cli

import (
	"context"
	"fmt"
	"io"

	"reservation-service/internal/integrity"
	"reservation-service/internal/service"

	"github.com/spf13/cobra"
)

// Backend: сервисы, с которыми работают команды. Close освобождает соединения.
type Backend struct {
	Catalog  *service.CatalogService
	Bookings *service.ReservationService
	Checker  *integrity.Checker
	Close    func()
}

// Opener поднимает Backend лениво: --help не должен ходить в базу.
type Opener func(ctx context.Context) (*Backend, error)

type app struct {
	open       Opener
	backend    *Backend
	outputJSON bool
}

func (a *app) get(ctx context.Context) (*Backend, error) {
	if a.backend != nil {
		return a.backend, nil
	}
	b, err := a.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open backend: %w", err)
	}
	a.backend = b
	return b, nil
}

func (a *app) close() {
	if a.backend != nil && a.backend.Close != nil {
		a.backend.Close()
	}
	a.backend = nil
}

func NewRootCmd(open Opener) *cobra.Command {
	root, _ := newRoot(open)
	return root
}

func newRoot(open Opener) (*cobra.Command, *app) {
	a := &app{open: open}

	root := &cobra.Command{
		Use:          "reservationctl",
		Short:        "Administration of room categories, special days and deposit policies",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&a.outputJSON, "json", false, "Output JSON")

	root.AddCommand(categoriesCmd(a))
	root.AddCommand(specialDaysCmd(a))
	root.AddCommand(depositPoliciesCmd(a))
	root.AddCommand(availabilityCmd(a))
	root.AddCommand(integrityCmd(a))
	return root, a
}

func Execute(open Opener) error {
	root, a := newRoot(open)
	defer a.close()
	return root.Execute()
}

func (a *app) print(w io.Writer, v any, table func(w io.Writer) error) error {
	if a.outputJSON {
		return writeJSON(w, v)
	}
	return table(w)
}
