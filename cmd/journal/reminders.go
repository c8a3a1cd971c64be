package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"substance-journal/internal/model"
	"substance-journal/internal/notify"
	"substance-journal/internal/service"
)

func remindersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Manage ingestion reminders",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List reminders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := fromContext(cmd.Context())
			reminders, err := a.reminders.List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, reminders)
		},
	}

	var (
		input   service.ReminderInput
		policy  string
		weekday int
		date    string
		dose    float64
		route   string
	)
	add := &cobra.Command{
		Use:   "add TITLE",
		Short: "Create a reminder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd.Context())
			if len(args) == 1 {
				input.Title = args[0]
			}
			input.RepeatPolicy = model.RepeatPolicy(strings.ToUpper(policy))
			input.Weekday = time.Weekday(weekday)
			input.IsEnabled = true
			if date != "" {
				d, err := time.ParseInLocation("2006-01-02", date, time.Local)
				if err != nil {
					return fmt.Errorf("parse --date: %w", err)
				}
				input.Date = &d
			}
			if cmd.Flags().Changed("dose") {
				input.Dose = &dose
			}
			if route != "" {
				r, err := model.ParseRoute(route)
				if err != nil {
					return err
				}
				input.Route = r
			}
			r, err := a.reminders.Create(cmd.Context(), input)
			if err != nil {
				return err
			}
			return printJSON(cmd, r)
		},
	}
	add.Flags().StringVar(&input.Time, "time", "", "local time HH:MM")
	add.Flags().StringVar(&policy, "repeat", string(model.RepeatDaily), "ONCE, DAILY or WEEKLY")
	add.Flags().IntVar(&weekday, "weekday", 0, "weekday for WEEKLY, 0 is Sunday")
	add.Flags().StringVar(&date, "date", "", "date for ONCE, YYYY-MM-DD")
	add.Flags().StringVar(&input.SubstanceName, "substance", "", "substance to take")
	add.Flags().Float64Var(&dose, "dose", 0, "dose to take")
	add.Flags().StringVar(&input.Units, "units", "", "dose units")
	add.Flags().StringVar(&route, "route", "", "administration route")
	_ = add.MarkFlagRequired("time")

	remove := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			return fromContext(cmd.Context()).reminders.Delete(cmd.Context(), uint(id))
		},
	}

	digest := &cobra.Command{
		Use:   "digest",
		Short: "Print today's summary as it would be sent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := fromContext(cmd.Context()).reminders.DailyDigest(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), notify.PlainText(text))
			return nil
		},
	}

	cmd.AddCommand(list, add, remove, digest)
	return cmd
}
