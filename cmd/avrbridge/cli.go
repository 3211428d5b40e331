package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-avr/internal/avr"
	"github.com/nerrad567/gray-logic-avr/internal/discovery"
	"github.com/nerrad567/gray-logic-avr/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-avr/internal/infrastructure/logging"
)

// defaultSendWindow is how long send collects replies after the last command.
const defaultSendWindow = 2 * time.Second

// newRootCmd builds the command tree. Running the root command without a
// subcommand starts the bridge.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "avrbridge",
		Short:         "Bridge a Denon/Marantz-style AV receiver to the Gray Logic state store",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(),
		"configuration file (env AVRBRIDGE_CONFIG)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Start the bridge",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), configPath)
			},
		},
		newDiscoverCmd(),
		newSendCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "avrbridge %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

func newDiscoverCmd() *cobra.Command {
	var (
		timeout time.Duration
		all     bool
	)
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List receivers answering an SSDP search on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			opts := discovery.Options{
				Timeout:      timeout,
				SearchTarget: cfg.Discovery.SearchTarget,
			}
			if !all {
				opts.Match = discovery.MatchReceivers
			}
			devices, err := discovery.NewScanner(opts).Scan(cmd.Context())
			if err != nil {
				return fmt.Errorf("scanning: %w", err)
			}
			return printDevices(cmd.OutOrStdout(), devices)
		},
	}
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", discovery.DefaultTimeout, "scan window")
	cmd.Flags().BoolVar(&all, "all", false, "list every UPnP device, not only receivers")
	return cmd
}

// printDevices writes discovered devices as an aligned table.
func printDevices(w io.Writer, devices []discovery.Device) error {
	if len(devices) == 0 {
		_, err := fmt.Fprintln(w, "no receivers found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tNAME\tMANUFACTURER\tMODEL")
	for _, d := range devices {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Address, d.Name, d.Manufacturer, d.Model)
	}
	return tw.Flush()
}

func newSendCmd() *cobra.Command {
	var (
		host   string
		port   int
		window time.Duration
	)
	cmd := &cobra.Command{
		Use:   "send COMMAND...",
		Short: "Send raw commands to a receiver and print the replies",
		Example: `  avrbridge send --host 192.168.1.50 PW? MV?
  avrbridge send --host 192.168.1.50 MV45`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			rc := cfg.Receiver
			if host != "" {
				rc.Host = host
			}
			if port != 0 {
				rc.Port = port
			}
			if rc.Host == "" {
				return fmt.Errorf("receiver host is required (--host or AVRBRIDGE_RECEIVER_HOST)")
			}
			log := logging.New(config.LoggingConfig{Level: "warn", Format: "text", Output: "stderr"}, version)
			return sendCommands(cmd.Context(), rc, nil, log, args, window, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "receiver address (default from AVRBRIDGE_RECEIVER_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "telnet port")
	cmd.Flags().DurationVarP(&window, "window", "w", defaultSendWindow, "time to collect replies")
	return cmd
}

// sendCommands opens a one-shot session, sends cmds and prints every line
// received within window. Status polling and reconnects are disabled.
//
// Returns:
//   - error: avr.ErrNotConnected when the receiver cannot be reached
func sendCommands(ctx context.Context, rc config.ReceiverConfig, dialer avr.Dialer, log avr.Logger,
	cmds []string, window time.Duration, out io.Writer,
) error {
	conn := avr.NewConn(avr.ConnOptions{
		Address:        rc.Address(),
		ConnectTimeout: rc.GetConnectTimeout(),
		IdleTimeout:    -1,
		PollInterval:   -1,
		ReconnectDelay: time.Hour,
		CommandDelay:   rc.GetCommandDelay(),
		Dialer:         dialer,
		Logger:         log,
	})
	defer conn.Close()

	if err := conn.Open(ctx); err != nil {
		return err
	}

	if err := awaitConnected(ctx, conn, rc.GetConnectTimeout()); err != nil {
		return err
	}
	conn.Send(cmds...)

	timer := time.NewTimer(window)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			return nil
		case ev := <-conn.Events():
			switch ev.Type {
			case avr.EventLine:
				fmt.Fprintln(out, ev.Line)
			case avr.EventDisconnected:
				return notConnected(conn, ev.Err)
			}
		}
	}
}

// awaitConnected waits for the first connect outcome.
func awaitConnected(ctx context.Context, conn *avr.Conn, timeout time.Duration) error {
	deadline := time.NewTimer(timeout + time.Second)
	defer deadline.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return notConnected(conn, nil)
		case ev := <-conn.Events():
			switch ev.Type {
			case avr.EventConnected:
				return nil
			case avr.EventDisconnected:
				return notConnected(conn, ev.Err)
			}
		}
	}
}

func notConnected(conn *avr.Conn, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", avr.ErrNotConnected, conn.Address())
	}
	return fmt.Errorf("%w: %s: %w", avr.ErrNotConnected, conn.Address(), cause)
}
