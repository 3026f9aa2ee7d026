package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/class-booking/internal/application"
	"github.com/example/class-booking/internal/config"
	"github.com/example/class-booking/internal/logging"
)

// withStore loads the configuration, opens the store and runs fn against it.
// Command logs go to stderr so stdout stays machine readable.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, cfg config.Config, st store, logger *slog.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())

	ctx := cmd.Context()
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Error("failed to close store", "error", cerr)
		}
	}()

	return fn(ctx, cfg, st, logger)
}

func newCountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Print the number of reservations per date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, cfg config.Config, st store, logger *slog.Logger) error {
				reports := application.NewReportServiceWithLogger(newSlotStoreAdapter(st), nil, cfg.ExternalTimeout, logger)
				counts, err := reports.CountsByDate(ctx)
				if err != nil {
					return err
				}
				dates := make([]string, 0, len(counts))
				for date := range counts {
					dates = append(dates, date)
				}
				slices.Sort(dates)
				out := cmd.OutOrStdout()
				for _, date := range dates {
					fmt.Fprintf(out, "%s\t%d\n", date, counts[date])
				}
				return nil
			})
		},
	}
}

func newClosedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "closed",
		Short: "Manage the dates closed for booking",
	}
	cmd.AddCommand(newClosedListCmd())
	cmd.AddCommand(newClosedAddCmd())
	cmd.AddCommand(newClosedRemoveCmd())
	return cmd
}

func closedDateService(cfg config.Config, st store, logger *slog.Logger) *application.ClosedDateService {
	return application.NewClosedDateServiceWithLogger(newClosedDateRepositoryAdapter(st, nil), time.Now, cfg.ExternalTimeout, logger)
}

func newClosedListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List closed dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, cfg config.Config, st store, logger *slog.Logger) error {
				dates, err := closedDateService(cfg, st, logger).List(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, d := range dates {
					fmt.Fprintf(out, "%s\t%s\n", d.Date, d.Reason)
				}
				return nil
			})
		},
	}
}

func newClosedAddCmd() *cobra.Command {
	var reason string

	c := &cobra.Command{
		Use:   "add DATE",
		Short: "Close a date (YYYY-MM-DD) for booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, cfg config.Config, st store, logger *slog.Logger) error {
				added, err := closedDateService(cfg, st, logger).Add(ctx, application.ClosedDateInput{Date: args[0], Reason: reason})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "closed %s\n", added.Date)
				return nil
			})
		},
	}

	c.Flags().StringVar(&reason, "reason", "", "reason shown to administrators")
	return c
}

func newClosedRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove DATE",
		Short: "Reopen a closed date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, cfg config.Config, st store, logger *slog.Logger) error {
				if err := closedDateService(cfg, st, logger).Remove(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reopened %s\n", args[0])
				return nil
			})
		},
	}
}

func newHashPasswordCmd() *cobra.Command {
	var password string

	c := &cobra.Command{
		Use:   "hash-password",
		Short: "Print an argon2id hash for BOOKING_ADMIN_PASSWORD_HASH",
		Long:  "Hashes --password, or the first line of stdin when the flag is omitted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				line, err := readLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
				password = line
			}
			hash, err := application.HashAdminPassword(password, application.DefaultArgon2idParams)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	c.Flags().StringVar(&password, "password", "", "password to hash")
	return c
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
