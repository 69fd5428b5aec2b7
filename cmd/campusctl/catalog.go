package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fastygo/campus/domain"
)

func table(header string) *tabwriter.Writer {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, header)
	return w
}

func printCourses(flags *globalFlags, courses []domain.Course) error {
	if flags.json {
		return printJSON(courses)
	}
	w := table("ID\tNAME\tLEVEL\tFIELD\tYEARS\tTUITION")
	for _, c := range courses {
		fee := "-"
		if c.TuitionFee > 0 {
			fee = strings.TrimSpace(fmt.Sprintf("%.0f %s", c.TuitionFee, c.Currency))
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%g\t%s\n", c.ID, c.Name, c.Level, c.Field, c.DurationYrs, fee)
	}
	return w.Flush()
}

func universitiesCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "universities",
		Short: "List universities",
		RunE: run(flags, func(ctx context.Context, a *app, _ []string) error {
			unis, err := a.catalog.ListUniversities(ctx)
			if err != nil {
				return err
			}
			if flags.json {
				return printJSON(unis)
			}
			w := table("ID\tNAME\tCITY\tCOUNTRY\tRANK")
			for _, u := range unis {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", u.ID, u.Name, u.City, u.Country, u.Ranking)
			}
			return w.Flush()
		}),
	}
}

func coursesCmd(flags *globalFlags) *cobra.Command {
	var filter domain.CourseFilter

	cmd := &cobra.Command{
		Use:   "courses",
		Short: "List and search courses",
		RunE: run(flags, func(ctx context.Context, a *app, _ []string) error {
			courses, err := a.catalog.ListCourses(ctx, filter)
			if err != nil {
				return err
			}
			return printCourses(flags, courses)
		}),
	}
	cmd.Flags().Int64Var(&filter.UniversityID, "university", 0, "only courses of this university id")
	cmd.Flags().StringVar(&filter.Level, "level", "", "study level, e.g. bachelor")
	cmd.Flags().StringVar(&filter.Field, "field", "", "field of study")
	cmd.Flags().StringVarP(&filter.Search, "search", "q", "", "free text search")
	return cmd
}

func compareCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <course-id> <course-id> [course-id...]",
		Short: "Compare two to four courses side by side",
		Args:  cobra.RangeArgs(2, 4),
		RunE: run(flags, func(ctx context.Context, a *app, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("course id %q is not a number", arg)
				}
				ids = append(ids, id)
			}
			courses, err := a.catalog.CompareCourses(ctx, ids)
			if err != nil {
				return err
			}
			return printCourses(flags, courses)
		}),
	}
}

func feedbackCmd(flags *globalFlags) *cobra.Command {
	var fb domain.Feedback

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Send feedback to the site team",
		RunE: run(flags, func(ctx context.Context, a *app, _ []string) error {
			if err := a.catalog.SubmitFeedback(ctx, fb); err != nil {
				return err
			}
			if flags.json {
				return printJSON(map[string]bool{"submitted": true})
			}
			success("Feedback sent, thank you")
			return nil
		}),
	}
	cmd.Flags().StringVar(&fb.Name, "name", "", "your name")
	cmd.Flags().StringVar(&fb.Email, "email", "", "reply address")
	cmd.Flags().StringVar(&fb.Subject, "subject", "", "subject")
	cmd.Flags().StringVarP(&fb.Message, "message", "m", "", "message")
	cmd.Flags().IntVar(&fb.Rating, "rating", 0, "rating from 1 to 5")
	return cmd
}

func chatCmd(flags *globalFlags) *cobra.Command {
	var conversation string

	cmd := &cobra.Command{
		Use:   "chat <message...>",
		Short: "Ask the course assistant",
		Args:  cobra.MinimumNArgs(1),
		RunE: run(flags, func(ctx context.Context, a *app, args []string) error {
			reply, err := a.catalog.Chat(ctx, strings.Join(args, " "), conversation)
			if err != nil {
				return err
			}
			if flags.json {
				return printJSON(reply)
			}
			fmt.Println(reply.Reply)
			if reply.ConversationID != "" {
				info("conversation %s", reply.ConversationID)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&conversation, "conversation", "", "continue an earlier conversation")
	return cmd
}
