package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"drinkup/internal/app"
	"drinkup/internal/intake"
	"drinkup/internal/profile"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newOnboardCmd(e *env) *cobra.Command {
	var (
		name   string
		age    int
		gender string
		active bool
	)

	cmd := &cobra.Command{
		Use:     "onboard",
		Short:   "Save your profile and compute your daily goal",
		Example: `  drinkup onboard --name Ana --age 22 --gender female --active`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := profile.ParseGender(gender)
			if err != nil {
				return err
			}

			st, err := e.open()
			if err != nil {
				return err
			}
			defer st.Close()

			status, err := st.app.Onboard(cmd.Context(), profile.Profile{Name: name, Age: age, Gender: g, Active: active})
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "your name")
	cmd.Flags().IntVar(&age, "age", 0, "your age in years")
	cmd.Flags().StringVar(&gender, "gender", "", "male or female")
	cmd.Flags().BoolVar(&active, "active", false, "you practice sport")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("gender")
	return cmd
}

func newDrinkCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "drink [liters]",
		Short: "Record a drink (one 0.2 L serving by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			liters := intake.DefaultServing
			if len(args) == 1 {
				v, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("invalid amount %q: %w", args[0], err)
				}
				liters = v
			}

			out := cmd.OutOrStdout()
			celebrate := app.CelebratorFunc(func(_ context.Context, s app.Status) {
				fmt.Fprintf(out, "🎉 Goal reached! %.1f L today.\n", s.Today.TotalLiters())
			})
			st, err := e.open(app.WithCelebrator(celebrate))
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := st.app.Drink(cmd.Context(), liters)
			if errors.Is(err, app.ErrNotOnboarded) {
				return fmt.Errorf("%w: run \"drinkup onboard\" first", err)
			}
			if err != nil {
				return err
			}
			printStatus(out, res.Status)
			return nil
		},
	}
}

func newStatusCmd(e *env) *cobra.Command {
	var showLog bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show today's progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := e.open()
			if err != nil {
				return err
			}
			defer st.Close()

			status, err := st.app.Status(cmd.Context())
			if errors.Is(err, app.ErrNotOnboarded) {
				return fmt.Errorf("%w: run \"drinkup onboard\" first", err)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printStatus(out, status)
			if showLog {
				for _, ev := range status.Today.Events {
					fmt.Fprintf(out, "  %s  %.2f L  (%s)\n", ev.At.Format("15:04"), ev.Liters, humanize.Time(ev.At))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showLog, "log", false, "list today's drinks")
	return cmd
}

func printStatus(w io.Writer, st app.Status) {
	fmt.Fprintf(w, "%s: %.2f / %.1f L (%d%%) %s\n",
		st.Profile.Name, st.Today.TotalLiters(), st.Goal, st.Percent(), st.Phase)
}
