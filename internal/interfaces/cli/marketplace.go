package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"garagelink.app/client/internal/core/domain"
)

// newProfileCommand creates the profile command
func newProfileCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show your marketplace profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.container.API.GetProfile(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), user)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\nRole: %s\nID:   %s\n", user.Name, user.Email, user.Role, user.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

// newAppointmentsCommand creates the appointments command group
func newAppointmentsCommand(a *app) *cobra.Command {
	var status string
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "appointments",
		Aliases: []string{"appts"},
		Short:   "List and manage service appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			appts, err := a.container.API.ListAppointments(cmd.Context(), domain.AppointmentStatus(status))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), appts)
			}
			if len(appts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No appointments")
				return nil
			}
			return writeAppointments(cmd.OutOrStdout(), appts)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (requested, confirmed, completed, cancelled)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	cmd.AddCommand(newBookCommand(a))
	cmd.AddCommand(newCancelCommand(a))
	return cmd
}

func newBookCommand(a *app) *cobra.Command {
	var in domain.NewAppointment
	var at string

	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book a service with a mechanic",
		Example: `  garagelink appointments book --mechanic m-7 --service "oil change" --at 2026-11-02T09:30:00Z`,
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return fmt.Errorf("invalid --at, want RFC 3339: %w", err)
			}
			in.ScheduledAt = when

			appt, err := a.container.API.CreateAppointment(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "📅 Booked %s (%s)\n", appt.ID, appt.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.MechanicID, "mechanic", "", "Mechanic ID")
	cmd.Flags().StringVar(&in.Service, "service", "", "Requested service")
	cmd.Flags().StringVar(&in.Notes, "notes", "", "Notes for the mechanic")
	cmd.Flags().StringVar(&at, "at", "", "Start time, RFC 3339")
	_ = cmd.MarkFlagRequired("mechanic")
	_ = cmd.MarkFlagRequired("service")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func newCancelCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <appointment-id>",
		Short: "Cancel an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appt, err := a.container.API.CancelAppointment(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %s\n", appt.ID)
			return nil
		},
	}
}

// newWalletCommand creates the wallet command
func newWalletCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "wallet",
		Short: "Show your wallet balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			wallet, err := a.container.API.GetWallet(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "💳 %d.%02d %s\n", wallet.BalanceCents/100, wallet.BalanceCents%100, wallet.Currency)
			return nil
		},
	}
}

func writeAppointments(w io.Writer, appts []domain.Appointment) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSERVICE\tWHEN\tSTATUS")
	for _, a := range appts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.ID, a.Service, a.ScheduledAt.Local().Format("2006-01-02 15:04"), a.Status)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
