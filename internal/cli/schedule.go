package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/worklog/internal/analytics"
	"github.com/sadopc/worklog/internal/store"
)

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func parseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(s)
	if len(s) >= 3 {
		if d, ok := weekdays[s[:3]]; ok {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

func (a *app) newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage the weekly work schedule",
	}

	var disabled bool
	set := &cobra.Command{
		Use:   "set WEEKDAY START END",
		Short: "Set working hours for a weekday (times as HH:MM)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseWeekday(args[0])
			if err != nil {
				return err
			}
			ws := store.WorkSchedule{Weekday: day, Start: args[1], End: args[2], Enabled: !disabled}
			if err := a.store.SetWorkSchedule(ws); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s-%s\n", day, ws.Start, ws.End)
			return nil
		},
	}
	set.Flags().BoolVar(&disabled, "disabled", false, "store the hours but do not count the day")

	list := &cobra.Command{
		Use:   "list",
		Short: "Show the schedule and this week's progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schedule, err := a.store.ListWorkSchedule()
			if err != nil {
				return err
			}
			if len(schedule) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No schedule set.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, ws := range schedule {
				state := "on"
				if !ws.Enabled {
					state = "off"
				}
				fmt.Fprintf(tw, "%s\t%s-%s\t%s\n", ws.Weekday, ws.Start, ws.End, state)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			return a.printWeekProgress(cmd, schedule)
		},
	}

	cmd.AddCommand(set, list)
	return cmd
}

func (a *app) printWeekProgress(cmd *cobra.Command, schedule []store.WorkSchedule) error {
	ts, err := a.store.GetSettings()
	if err != nil {
		return err
	}
	now := time.Now()
	from := analytics.PeriodStart(store.PeriodWeekly, now, ts.FirstDayOfWeek)
	to := analytics.PeriodEnd(store.PeriodWeekly, now, ts.FirstDayOfWeek)
	tracked, err := a.store.GetTotalBetween(from, to)
	if err != nil {
		return err
	}
	off, err := a.store.ListOffTime()
	if err != nil {
		return err
	}
	res := analytics.ScheduleProgress(schedule, off, tracked, from, to)
	fmt.Fprintf(cmd.OutOrStdout(), "\nThis week: %s of %s (%.0f%%), %d work days, %d off\n",
		time.Duration(res.TrackedSeconds)*time.Second, time.Duration(res.ExpectedSeconds)*time.Second,
		res.Percent, res.WorkDays, res.OffDays)
	return nil
}

func (a *app) newOffTimeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offtime",
		Short: "Manage vacations, sick days and holidays",
	}

	var from, to, kind, note string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add an off-time range (dates as YYYY-MM-DD, inclusive)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := time.ParseInLocation(time.DateOnly, from, time.Local)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			t := f
			if to != "" {
				t, err = time.ParseInLocation(time.DateOnly, to, time.Local)
				if err != nil {
					return fmt.Errorf("--to: %w", err)
				}
			}
			switch kind {
			case "vacation", "sick", "holiday", "other":
			default:
				return fmt.Errorf("unknown kind %q (want vacation, sick, holiday or other)", kind)
			}
			o, err := a.store.AddOffTime(store.OffTime{From: f, To: t, Kind: kind, Note: note})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s..%s (%s)\n", o.Kind,
				o.From.Format(time.DateOnly), o.To.Format(time.DateOnly), o.ID)
			return nil
		},
	}
	add.Flags().StringVar(&from, "from", "", "first day")
	add.Flags().StringVar(&to, "to", "", "last day (defaults to --from)")
	add.Flags().StringVar(&kind, "kind", "vacation", "vacation, sick, holiday or other")
	add.Flags().StringVar(&note, "note", "", "free text")
	_ = add.MarkFlagRequired("from")

	list := &cobra.Command{
		Use:   "list",
		Short: "List off-time ranges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.store.ListOffTime()
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No off time.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, o := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s..%s\t%s\n", o.ID, o.Kind,
					o.From.Format(time.DateOnly), o.To.Format(time.DateOnly), o.Note)
			}
			return tw.Flush()
		},
	}

	rm := &cobra.Command{
		Use:   "rm ID",
		Short: "Remove an off-time range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.DeleteOffTime(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Removed", args[0])
			return nil
		},
	}

	cmd.AddCommand(add, list, rm)
	return cmd
}
