package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"shop-service/internal/broker"

	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the shop event stream",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print shop events as they are published",
	Args:  cobra.NoArgs,
	RunE:  runEventsTail,
}

var (
	fromStart  bool
	eventTypes []string
)

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)

	eventsTailCmd.Flags().BoolVar(&fromStart, "from-start", false, "Read the topic from the oldest retained event")
	eventsTailCmd.Flags().StringSliceVar(&eventTypes, "type", nil, "Only print events of these types, e.g. ORDER_TOTAL_CHANGED")
}

func runEventsTail(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicShop, cfg.Kafka.ConsumerGroup, fromStart)
	defer consumer.Close()

	err := consumer.StartConsuming(ctx, printEvent(cmd.OutOrStdout(), eventTypes))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// printEvent writes one line per event: type, key, id and the raw payload.
func printEvent(out io.Writer, types []string) broker.MessageHandler {
	wanted := make(map[string]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}
	return func(_ context.Context, msg kafka.Message) error {
		event, err := broker.DecodeMessage(msg)
		if err != nil {
			return err
		}
		if len(wanted) > 0 && !wanted[event.EventType] {
			return nil
		}
		_, err = fmt.Fprintf(out, "%s %s key=%s id=%s %s\n",
			event.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			event.EventType, event.Key, event.EventID, event.Payload)
		return err
	}
}
