package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	client "delayq/clients/go"
	"delayq/config"
	"delayq/pkg/logging"
	"delayq/pkg/poller"
)

// dial connects to the server and returns a request-scoped context.
func dial() (*client.Client, context.Context, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	c, err := client.New(ctx, serverAddr, nil)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return c, ctx, cancel, nil
}

func pushCmd() *cobra.Command {
	var (
		id    string
		delay time.Duration
	)

	cmd := &cobra.Command{
		Use:   "push <topic> <body>",
		Short: "Schedule a message on a topic",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := dial()
			if err != nil {
				return err
			}
			defer cancel()
			defer c.Close()

			topic := c.Topic(args[0])
			var got string
			if cmd.Flags().Changed("delay") {
				got, err = topic.PushDelay(ctx, delay, id, []byte(args[1]))
			} else {
				got, err = topic.PushID(ctx, id, []byte(args[1]))
			}
			if err != nil {
				return err
			}

			if got == "" {
				fmt.Println("Skipped: empty body")
				return nil
			}
			fmt.Printf("Message ID: %s\n", got)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Message id; pushing an existing id refreshes it")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Delay before the message becomes visible (server default if unset)")

	return cmd
}

func popCmd() *cobra.Command {
	var batch int

	cmd := &cobra.Command{
		Use:   "pop <topic>",
		Short: "Pop due messages from a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := dial()
			if err != nil {
				return err
			}
			defer cancel()
			defer c.Close()

			bodies, err := c.Topic(args[0]).PopN(ctx, batch)
			if err != nil {
				return err
			}

			if len(bodies) == 0 {
				fmt.Println("No messages due")
				return nil
			}
			for _, body := range bodies {
				fmt.Println(string(body))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&batch, "batch", 0, "Maximum messages to pop (server default if 0)")

	return cmd
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <topic> <id>",
		Short: "Cancel a pending message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := dial()
			if err != nil {
				return err
			}
			defer cancel()
			defer c.Close()

			if err := c.Topic(args[0]).Cancel(ctx, args[1]); err != nil {
				return err
			}
			fmt.Printf("Cancelled %s\n", args[1])
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <topic>",
		Short: "Show topic statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel, err := dial()
			if err != nil {
				return err
			}
			defer cancel()
			defer c.Close()

			st, err := c.Topic(args[0]).Stats(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Topic: %s\n", st.Topic)
			fmt.Printf("Pending: %d\n", st.Pending)
			fmt.Printf("Due: %d\n", st.Due)
			kinds := make([]string, 0, len(st.Events))
			for k := range st.Events {
				kinds = append(kinds, k)
			}
			sort.Strings(kinds)
			for _, k := range kinds {
				fmt.Printf("  %s: %d\n", k, st.Events[k])
			}
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	var (
		configPath string
		interval   time.Duration
		workers    int
		batch      int
	)

	cmd := &cobra.Command{
		Use:   "watch <topic>",
		Short: "Poll a topic and print messages as they become due",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return err
			}

			opts := append(poller.FromConfig(cfg.Poller), poller.WithLogger(logger), poller.WithBatchSize(batch))
			if cmd.Flags().Changed("interval") {
				opts = append(opts, poller.WithInterval(interval))
			}
			if cmd.Flags().Changed("workers") {
				opts = append(opts, poller.WithWorkers(workers))
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := client.New(ctx, serverAddr, nil)
			if err != nil {
				return err
			}
			defer c.Close()

			p := poller.New(c.Topic(args[0]), func(_ context.Context, body []byte) error {
				fmt.Println(string(body))
				return nil
			}, opts...)
			return p.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to configuration file (poller and logging sections)")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Poll interval (overrides poller.interval_ms)")
	cmd.Flags().IntVar(&workers, "workers", 1, "Concurrent poll loops (overrides poller.workers)")
	cmd.Flags().IntVar(&batch, "batch", 0, "Maximum messages per poll (server default if 0)")

	return cmd
}
