package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/readmit/dashboard/internal/config"
	"github.com/readmit/dashboard/internal/domain/directory"
	"github.com/readmit/dashboard/internal/domain/discharge"
	"github.com/readmit/dashboard/internal/platform/predictionapi"
)

func patientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patients",
		Short: "Inspect and discharge patients from the terminal",
	}

	// patients list
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List patients with their latest risk band",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			filter, err := directory.ParseFilter(status)
			if err != nil {
				return err
			}

			cfg, logger, err := loadCLI()
			if err != nil {
				return err
			}
			svc := directory.NewService(newRemote(cfg), cfg.RiskFetchConcurrency, logger)
			listing, err := svc.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load patients: %w", err)
			}
			printListing(cmd.OutOrStdout(), filter, listing)
			return nil
		},
	}
	listCmd.Flags().String("status", "all", "Filter by status: all, discharged or not_discharged")
	cmd.AddCommand(listCmd)

	// patients show
	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a patient's details and a fresh risk analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadCLI()
			if err != nil {
				return err
			}
			w := discharge.NewWorkflow(newRemote(cfg), args[0], logger)
			if err := w.Load(cmd.Context()); err != nil {
				return fmt.Errorf("failed to load patient %s: %w", args[0], err)
			}
			printPatient(cmd.OutOrStdout(), w.View())
			return nil
		},
	})

	// patients discharge
	dischargeCmd := &cobra.Command{
		Use:   "discharge <id>",
		Short: "Discharge a patient after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")

			cfg, logger, err := loadCLI()
			if err != nil {
				return err
			}
			w := discharge.NewWorkflow(newRemote(cfg), args[0], logger)
			return runDischarge(cmd.Context(), w, cmd.InOrStdin(), cmd.OutOrStdout(), yes)
		},
	}
	dischargeCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	cmd.AddCommand(dischargeCmd)

	return cmd
}

func loadCLI() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), err
	}
	logger, _ := newLogger(cfg.Env, "")
	return cfg, logger.Level(zerolog.WarnLevel), nil
}

// runDischarge walks the confirm-then-discharge flow with a y/N prompt.
func runDischarge(ctx context.Context, w *discharge.Workflow, in io.Reader, out io.Writer, yes bool) error {
	if err := w.LoadDetail(ctx); err != nil {
		return fmt.Errorf("failed to load patient: %w", err)
	}
	if err := w.RequestDischarge(); err != nil {
		return err
	}

	name := w.View().Patient.Name
	if !yes {
		fmt.Fprintf(out, "Are you sure you want to discharge %s? [y/N] ", name)
		answer, _ := bufio.NewReader(in).ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			w.CancelDischarge()
			fmt.Fprintln(out, "Discharge cancelled.")
			return nil
		}
	}

	err := w.ConfirmDischarge(ctx)
	if notice := w.View().Notice; notice != nil {
		noticeColor(notice.Level).Fprintf(out, "%s %s\n", notice.Title, notice.Message)
	}
	return err
}

func bandColor(band string) *color.Color {
	switch strings.ToLower(band) {
	case "low":
		return color.New(color.FgGreen)
	case "medium":
		return color.New(color.FgYellow)
	case "high":
		return color.New(color.FgRed, color.Bold)
	}
	return color.New(color.FgHiBlack)
}

func noticeColor(level discharge.NoticeLevel) *color.Color {
	if level == discharge.NoticeSuccess {
		return color.New(color.FgGreen, color.Bold)
	}
	return color.New(color.FgRed, color.Bold)
}

func statusLabel(s predictionapi.Status) string {
	if s.Discharged() {
		return "Discharged"
	}
	return "Active"
}

func printListing(w io.Writer, filter directory.Filter, listing *directory.Listing) {
	rows := filter.Apply(listing.Rows)
	fmt.Fprintf(w, "%-12s %-28s %-12s %-8s %s\n", "ID", "NAME", "STATUS", "RISK", "BAND")
	for _, r := range rows {
		risk, band := "-", "N/A"
		if r.Risk != nil {
			risk = fmt.Sprintf("%.2f", r.Risk.RiskScore)
			band = r.Risk.Band
		}
		fmt.Fprintf(w, "%-12s %-28s %-12s %-8s ", r.ID, r.Name, statusLabel(r.Status), risk)
		bandColor(band).Fprintln(w, band)
	}

	s := directory.Summarize(listing.Rows)
	fmt.Fprintf(w, "\n%d patients, %d active, %d discharged, %d male\n", s.Total, s.Active, s.Discharged, s.Male)
	if listing.RiskFailures > 0 {
		color.New(color.FgYellow).Fprintf(w, "risk unavailable for %d patient(s)\n", listing.RiskFailures)
	}
}

func printPatient(w io.Writer, v discharge.View) {
	p := v.Patient
	fmt.Fprintf(w, "%s (%s) - %s\n", p.Name, p.ID, statusLabel(p.Status))

	a := v.Analysis
	switch a.State {
	case discharge.AnalysisReady:
		fmt.Fprintf(w, "\nRisk score: %.2f ", a.RiskScore)
		bandColor(a.Band).Fprintf(w, "(%s)\n", a.Band)
		if a.Explanation != "" {
			fmt.Fprintln(w, a.Explanation)
		}
		for _, f := range a.TopFeatures {
			fmt.Fprintf(w, "  %-32s %+.3f\n", f.Name, f.Weight)
		}
		for _, n := range a.Nudges {
			fmt.Fprintf(w, "  * %s\n", n.Suggestion)
		}
	default:
		fmt.Fprintln(w, "\nRisk analysis unavailable.")
	}

	for _, sec := range v.Sections {
		fmt.Fprintf(w, "\n%s\n", sec.Title)
		if len(sec.Items) == 0 {
			fmt.Fprintln(w, "  none")
		}
		for _, it := range sec.Items {
			fmt.Fprintf(w, "  %-36s %s\n", it.Label, it.Value)
		}
	}
}
