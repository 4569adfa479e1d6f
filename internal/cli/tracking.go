package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/worklog/internal/tracker"
)

func (a *app) newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running timer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tr, err := a.newTracker()
			if err != nil {
				return err
			}
			sess, ok := tr.Current()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing is being tracked.")
				return nil
			}
			entry, err := tr.Stop(tracker.ReasonManual)
			if errors.Is(err, tracker.ErrNoOpenEntry) {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing is being tracked.")
				return nil
			}
			if err != nil {
				return err
			}
			name := sess.ActivityID
			if act, err := a.store.GetActivity(sess.ActivityID); err == nil && act != nil {
				name = act.Name
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stopped %s: %s recorded.\n", name,
				time.Duration(entry.Seconds())*time.Second)
			return nil
		},
	}
}

func (a *app) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the running timer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tr, err := a.newTracker()
			if err != nil {
				return err
			}
			sess, ok := tr.Current()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Idle.")
				return nil
			}
			name := sess.ActivityID
			if act, err := a.store.GetActivity(sess.ActivityID); err == nil && act != nil {
				name = act.Name
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tracking %s since %s (%s elapsed, %s left).\n",
				name, sess.StartTime.Local().Format("15:04"),
				tr.Elapsed().Truncate(time.Second), tr.Remaining().Truncate(time.Second))
			return nil
		},
	}
}
