package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/coach/internal/core"
)

// meetDateLayout is the date format of meet flags.
const meetDateLayout = "2006-01-02"

func newMeetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meet",
		Short: "Manage meets",
	}
	cmd.AddCommand(newMeetAddCmd(a), newMeetShowCmd(a), newMeetWithResultsCmd(a))
	return cmd
}

func newMeetAddCmd(a *app) *cobra.Command {
	var id, name, start, end, course string

	cmd := &cobra.Command{
		Use:   "add --id ID --name NAME --start YYYY-MM-DD --end YYYY-MM-DD --course SHORT|LONG",
		Short: "Create or update a meet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			meet, err := buildMeet(id, name, start, end, course)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.SaveMeet(ctx, meet); err != nil {
				return err
			}
			return writeMeet(cmd.OutOrStdout(), meet, a.format)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Meet id (required)")
	cmd.Flags().StringVar(&name, "name", "", "Meet name (required)")
	cmd.Flags().StringVar(&start, "start", "", "First day, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&end, "end", "", "Last day, YYYY-MM-DD (defaults to --start)")
	cmd.Flags().StringVar(&course, "course", string(core.CourseShort), "Pool course: SHORT or LONG")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("start")
	return cmd
}

func newMeetShowCmd(a *app) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "show --id ID",
		Short: "Show one meet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			meet, err := st.FindMeet(ctx, id)
			if err != nil {
				return fmt.Errorf("meet %q: %w", id, err)
			}
			return writeMeet(cmd.OutOrStdout(), meet, a.format)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Meet id (required)")
	cmd.MarkFlagRequired("id")
	return cmd
}

func newMeetWithResultsCmd(a *app) *cobra.Command {
	var except string

	cmd := &cobra.Command{
		Use:   "with-results [--except ID]",
		Short: "List meets that have results loaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			meets, err := a.service(st).MeetsWithResults(ctx, except)
			if err != nil {
				return err
			}
			return writeMeets(cmd.OutOrStdout(), meets, a.format)
		},
	}

	cmd.Flags().StringVar(&except, "except", "", "Meet id to leave out")
	return cmd
}

func buildMeet(id, name, start, end, course string) (core.Meet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Meet{}, fmt.Errorf("--id must not be empty")
	}

	startDate, err := time.Parse(meetDateLayout, start)
	if err != nil {
		return core.Meet{}, fmt.Errorf("invalid --start %q: %w", start, err)
	}
	endDate := startDate
	if end != "" {
		if endDate, err = time.Parse(meetDateLayout, end); err != nil {
			return core.Meet{}, fmt.Errorf("invalid --end %q: %w", end, err)
		}
	}
	if endDate.Before(startDate) {
		return core.Meet{}, fmt.Errorf("--end %s is before --start %s", end, start)
	}

	c := core.Course(strings.ToUpper(strings.TrimSpace(course)))
	if !c.Valid() {
		return core.Meet{}, fmt.Errorf("invalid --course %q (must be SHORT or LONG)", course)
	}

	return core.Meet{
		ID:        id,
		Name:      strings.TrimSpace(name),
		StartDate: startDate,
		EndDate:   endDate,
		Course:    c,
	}, nil
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Schema ready (%s).\n", a.cfg.Database.Driver)
			return nil
		},
	}
}
