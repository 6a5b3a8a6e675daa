package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"laundry/internal/booking"
	"laundry/pkg/availability"
	"laundry/pkg/client"
	"laundry/pkg/config"
	"laundry/pkg/logger"
	"laundry/pkg/model"

	"github.com/spf13/cobra"
)

const (
	EnvServer      = "LAUNDRY_SERVER"
	DefaultServer  = "http://localhost:8080"
	commandTimeout = 30 * time.Second
)

type cli struct {
	out      io.Writer
	server   string
	timezone string
	slots    string
	verbose  bool

	log     *logger.Logger
	loc     *time.Location
	client  *client.LaundryClient
	booker  *booking.Booker
	nowFunc func() time.Time
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, nowFunc: time.Now}

	root := &cobra.Command{
		Use:           "laundryctl",
		Short:         "Book the building's washers and dryers",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(errOut)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	server := os.Getenv(EnvServer)
	if server == "" {
		server = DefaultServer
	}
	timezone := os.Getenv(config.EnvTimezone)
	if timezone == "" {
		timezone = config.DefaultTimezone
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.server, "server", server, "reservation service base URL")
	flags.StringVar(&c.timezone, "timezone", timezone, "building time zone (IANA name)")
	flags.StringVar(&c.slots, "slots", os.Getenv(config.EnvSlotCatalogue), "offered start times, e.g. 06:00,08:00 (default from SLOT_FIRST_START, SLOT_LAST_START and SLOT_INTERVAL)")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log requests to stderr")

	root.AddCommand(
		c.machinesCmd(),
		c.overviewCmd(),
		c.dayCmd(),
		c.bookCmd(),
		c.cancelCmd(),
		c.showCmd(),
		c.statusCmd(),
		c.mineCmd(),
		c.pingCmd(),
	)
	return root
}

func (c *cli) init(errOut io.Writer) error {
	if c.verbose {
		c.log = logger.New(logger.Config{Level: logger.DEBUG, Format: logger.TEXT, Output: errOut, Service: "laundryctl"})
	} else {
		c.log = logger.Discard()
	}

	loc, err := time.LoadLocation(c.timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.timezone, err)
	}
	c.loc = loc

	catalogue, err := c.catalogue()
	if err != nil {
		return err
	}

	c.client = client.NewLaundryClient(c.server)
	c.booker = booking.NewBooker(c.client, catalogue, c.log)
	return nil
}

func (c *cli) catalogue() (*availability.Catalogue, error) {
	if strings.TrimSpace(c.slots) != "" {
		return availability.ParseCatalogue(c.slots)
	}
	return config.CatalogueFromEnv()
}

func (c *cli) now() time.Time {
	return c.nowFunc().In(c.loc)
}

// parseDay reads YYYY-MM-DD in the building's zone; empty means today.
func (c *cli) parseDay(s string) (time.Time, error) {
	if s == "" {
		y, m, d := c.now().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, c.loc), nil
	}
	day, err := time.ParseInLocation(time.DateOnly, s, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", s)
	}
	return day, nil
}

func (c *cli) machinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "machines",
		Short: "List machines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			machines, err := c.client.ListMachines(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSTATUS")
			for _, m := range machines {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, m.Name, m.Type, m.Status)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) overviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Show which machines are in use right now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			overview, err := c.client.Overview(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSTATUS\tIN USE UNTIL\tAPARTMENT")
			for _, o := range overview {
				until, apartment := "-", "-"
				if o.CurrentReservation != nil {
					until = o.CurrentReservation.EndTime.In(c.loc).Format("15:04")
					apartment = o.CurrentReservation.ApartmentNumber
				}
				status := "available"
				if !o.Available {
					status = "busy"
					if o.CurrentReservation == nil {
						status = o.Status
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.Name, status, until, apartment)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) dayCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "day MACHINE_ID",
		Short: "Show a machine's slots and reservations for one day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := c.parseDay(date)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			view, err := c.booker.Preview(ctx, args[0], day)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.out, "%s  %s\n", args[0], view.Date)
			for _, s := range view.Slots {
				fmt.Fprintf(c.out, "  %s  %s\n", s.Label, s.Status)
			}
			if len(view.Reservations) > 0 {
				fmt.Fprintln(c.out, "Reservations:")
				for _, r := range view.Reservations {
					fmt.Fprintf(c.out, "  %s-%s  %s (%s)  %s\n",
						r.StartTime.In(c.loc).Format("15:04"),
						r.EndTime.In(c.loc).Format("15:04"),
						r.ResidentName, r.ApartmentNumber, r.ID)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to show, YYYY-MM-DD (default today)")
	return cmd
}

func (c *cli) bookCmd() *cobra.Command {
	var (
		date, start, name, apartment, resident string
		hours                                  int
		checkOnly                              bool
	)
	cmd := &cobra.Command{
		Use:   "book MACHINE_ID",
		Short: "Book a machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := c.parseDay(date)
			if err != nil {
				return err
			}
			tod, err := availability.ParseTimeOfDay(start)
			if err != nil {
				return err
			}
			req := booking.Request{
				MachineID:       args[0],
				Start:           tod.On(day),
				Hours:           hours,
				ResidentName:    name,
				ApartmentNumber: apartment,
				ResidentID:      resident,
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			if checkOnly {
				end, err := c.booker.Check(ctx, req)
				if err != nil {
					return describe(err)
				}
				fmt.Fprintf(c.out, "Free: %s %s-%s\n", req.MachineID,
					req.Start.Format("2006-01-02 15:04"), end.Format("15:04"))
				return nil
			}

			r, err := c.booker.Book(ctx, req)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(c.out, "Booked %s %s-%s (id %s)\n", r.MachineID,
				r.StartTime.In(c.loc).Format("2006-01-02 15:04"),
				r.EndTime.In(c.loc).Format("15:04"), r.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&date, "date", "", "day, YYYY-MM-DD (default today)")
	f.StringVar(&start, "start", "", "start time, HH:MM")
	f.IntVar(&hours, "hours", 1, "duration in hours")
	f.StringVar(&name, "name", "", "resident name")
	f.StringVar(&apartment, "apartment", "", "apartment number")
	f.StringVar(&resident, "resident", "", "resident ID, used by 'mine'")
	f.BoolVar(&checkOnly, "check", false, "only check whether the slot is free")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("apartment")
	return cmd
}

func (c *cli) cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel RESERVATION_ID",
		Short: "Cancel a reservation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			if err := c.booker.Cancel(ctx, args[0]); err != nil {
				if errors.Is(err, booking.ErrNotFound) {
					return fmt.Errorf("reservation %s does not exist (already cancelled?)", args[0])
				}
				return err
			}
			fmt.Fprintf(c.out, "Cancelled %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show RESERVATION_ID",
		Short: "Show one reservation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			r, err := c.client.GetReservation(ctx, args[0])
			if err != nil {
				if errors.Is(err, client.ErrNotFound) {
					return fmt.Errorf("reservation %s does not exist", args[0])
				}
				return err
			}
			c.printReservation(r)
			return nil
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "status RESERVATION_ID",
		Short: "Change a reservation's status, e.g. --set cancelled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status = model.NormalizeStatus(status)
			if !model.IsValidStatus(status) {
				return fmt.Errorf("invalid status %q (expected active, completed or cancelled)", status)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			r, err := c.client.UpdateStatus(ctx, args[0], status)
			if err != nil {
				var conflict *client.ConflictError
				switch {
				case errors.Is(err, client.ErrNotFound):
					return fmt.Errorf("reservation %s does not exist", args[0])
				case errors.As(err, &conflict):
					return fmt.Errorf("cannot reactivate, the time is taken now: %w", err)
				}
				return err
			}
			c.printReservation(r)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "set", "", "new status: active, completed or cancelled")
	_ = cmd.MarkFlagRequired("set")
	return cmd
}

func (c *cli) printReservation(r *model.Reservation) {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", r.ID)
	fmt.Fprintf(tw, "MACHINE\t%s\n", r.MachineID)
	fmt.Fprintf(tw, "WHEN\t%s-%s\n",
		r.StartTime.In(c.loc).Format("2006-01-02 15:04"), r.EndTime.In(c.loc).Format("15:04"))
	fmt.Fprintf(tw, "RESIDENT\t%s (%s)\n", r.ResidentName, r.ApartmentNumber)
	fmt.Fprintf(tw, "STATUS\t%s\n", r.Status)
	_ = tw.Flush()
}

func (c *cli) pingCmd() *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Wait until the reservation service reports healthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.client.WaitForHealthy(cmd.Context(), wait); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s is healthy\n", c.server)
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "how long to keep polling")
	return cmd
}

func (c *cli) mineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mine RESIDENT_ID",
		Short: "List a resident's reservations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			views, err := c.booker.Mine(ctx, args[0])
			if err != nil {
				return err
			}
			if len(views) == 0 {
				fmt.Fprintln(c.out, "No reservations")
				return nil
			}

			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tMACHINE\tSTART\tEND\tSTATUS")
			for _, v := range views {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.ID, v.MachineID,
					v.StartTime.In(c.loc).Format("2006-01-02 15:04"),
					v.EndTime.In(c.loc).Format("15:04"),
					v.DisplayStatus)
			}
			return tw.Flush()
		},
	}
}

// describe turns booking errors into messages a resident can act on.
func describe(err error) error {
	switch {
	case errors.Is(err, booking.ErrSlotTaken):
		return fmt.Errorf("someone else just booked this slot, pick another time: %w", err)
	case errors.Is(err, booking.ErrConflict):
		return fmt.Errorf("this time overlaps an existing reservation: %w", err)
	case errors.Is(err, booking.ErrNotOffered):
		return fmt.Errorf("%w; run 'laundryctl day' to see offered slots", err)
	}
	return err
}
