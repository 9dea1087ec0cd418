// Package notifycmder provides the notify command: a live view over the
// server push channel, as a TUI or a plain line tail.
package notifycmder

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/irobothq/irobot/pkg/cliui"
	"github.com/irobothq/irobot/pkg/config"
	"github.com/irobothq/irobot/pkg/credentials"
	"github.com/irobothq/irobot/pkg/eventstream"
	"github.com/irobothq/irobot/pkg/eventstream/kafka"
	"github.com/irobothq/irobot/pkg/eventstream/nop"
	"github.com/irobothq/irobot/pkg/logger"
	"github.com/irobothq/irobot/pkg/notify"
	"github.com/irobothq/irobot/pkg/stream"
)

const notifyLongDesc string = `Watch the live notification stream.

Connects to the server push channel and displays events as they arrive.
The default view is an interactive TUI; --tail prints one line per event
instead, which suits piping and terminal multiplexer panes.

Channels:
  user        Your own notifications (default)
  admin       Admin broadcast channel
  dashboard   Live dashboard metric updates

With --publish, every observed event is also forwarded to the configured
event publisher (events.publisher: nop or kafka) for downstream analytics.

Examples:
  irobot notify
  irobot notify --tail
  irobot notify --channel dashboard
  irobot notify --tail --publish --publisher kafka --kafka-brokers localhost:9092`

const notifyShortDesc string = "Watch the live notification stream"

type notifyCommander struct {
	server        string
	channel       string
	tail          bool
	publish       bool
	publisher     string
	kafkaBrokers  string
	kafkaTopic    string
	heartbeat     uint
	maxReconnects uint
	baseDelay     uint
	debug         bool
}

func NewNotifyCmd() *cobra.Command {
	cmder := &notifyCommander{}

	cmd := &cobra.Command{
		Use:   "notify",
		Short: notifyShortDesc,
		Long:  notifyLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.preRun(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(cmd.Context(), configDir)
		},
	}

	cmd.Flags().BoolVar(&cmder.tail, "tail", false, "Print one line per event instead of the TUI")
	cmd.Flags().StringVar(&cmder.channel, "channel", "user", "Channel to watch: user, admin or dashboard")
	cmd.Flags().BoolVar(&cmder.publish, "publish", false, "Forward observed events to the configured event publisher")
	config.AddStringFlag(cmd, config.Flags, config.FlagServer, &cmder.server)
	config.AddStringFlag(cmd, config.Flags, config.FlagPublisher, &cmder.publisher)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	config.AddUintFlag(cmd, config.Flags, config.FlagHeartbeat, &cmder.heartbeat)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxReconnects, &cmder.maxReconnects)
	config.AddUintFlag(cmd, config.Flags, config.FlagBaseDelay, &cmder.baseDelay)

	return cmd
}

func (c *notifyCommander) preRun(cmd *cobra.Command) error {
	configDir, _ := cmd.Flags().GetString("config-dir")
	c.debug, _ = cmd.Flags().GetBool("debug")

	v, err := config.InitViper(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, []string{
		config.FlagServer,
		config.FlagPublisher,
		config.FlagKafkaBrokers,
		config.FlagKafkaTopic,
		config.FlagHeartbeat,
		config.FlagMaxReconnects,
		config.FlagBaseDelay,
	})

	c.server = v.GetString("server.base_url")
	c.publisher = v.GetString("events.publisher")
	c.kafkaBrokers = v.GetString("events.kafka_brokers")
	c.kafkaTopic = v.GetString("events.kafka_topic")
	c.heartbeat = v.GetUint("stream.heartbeat_seconds")
	c.maxReconnects = v.GetUint("stream.max_reconnect_attempts")
	c.baseDelay = v.GetUint("stream.base_delay_ms")

	return nil
}

func (c *notifyCommander) endpoint() (string, error) {
	switch c.channel {
	case "user":
		return notify.EndpointNotifications(c.server), nil
	case "admin":
		return notify.EndpointAdmin(c.server), nil
	case "dashboard":
		return notify.EndpointDashboard(c.server), nil
	default:
		return "", fmt.Errorf("unknown channel %q (expected user, admin or dashboard)", c.channel)
	}
}

func (c *notifyCommander) policy() stream.Policy {
	policy := stream.DefaultPolicy()
	if c.maxReconnects > 0 {
		policy.MaxAttempts = int(c.maxReconnects)
	}
	if c.baseDelay > 0 {
		policy.BaseDelay = time.Duration(c.baseDelay) * time.Millisecond
	}
	return policy
}

// newPublisher builds the outbound event publisher named in the config.
func (c *notifyCommander) newPublisher(log *slog.Logger) (eventstream.Publisher, error) {
	if !c.publish {
		return nop.NewPublisher(), nil
	}

	switch c.publisher {
	case "", "nop":
		return nop.NewPublisher(), nil
	case "kafka":
		return kafka.NewPublisher(kafka.Config{
			Brokers: strings.Split(c.kafkaBrokers, ","),
			Topic:   c.kafkaTopic,
			Logger:  log,
		})
	default:
		return nil, fmt.Errorf("unknown events publisher %q (expected nop or kafka)", c.publisher)
	}
}

func (c *notifyCommander) run(parent context.Context, configDir string) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	endpoint, err := c.endpoint()
	if err != nil {
		return err
	}

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	log := logger.Nop()
	if c.debug {
		log = logger.New(logger.WithDebug(true), logger.WithPretty(true))
	}

	publisher, err := c.newPublisher(log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	consumer := notify.NewConsumer(endpoint,
		notify.WithTokenSource(credentials.DefaultSource(mgr)),
		notify.WithHeartbeatTimeout(time.Duration(c.heartbeat)*time.Second),
		notify.WithPolicy(c.policy()),
		notify.WithLogger(log),
	)

	if c.publish {
		consumer.OnAny(func(ev notify.Event) {
			forwarded := &eventstream.NotificationObservedEvent{
				SchemaVersion: eventstream.SchemaVersionV1,
				EventType:     eventstream.EventTypeNotificationObserved,
				EventID:       uuid.NewString(),
				EmittedAt:     time.Now().UTC(),
				Name:          ev.Name,
				Payload:       ev.Raw,
				ReceivedAt:    ev.ReceivedAt,
			}
			if err := publisher.PublishNotification(ctx, forwarded); err != nil {
				log.Warn("publishing observed event", "err", err)
			}
		})
	}

	if c.tail {
		return c.runTail(ctx, consumer)
	}

	return runNotifyTUI(ctx, consumer, c.channel)
}

func (c *notifyCommander) runTail(ctx context.Context, consumer *notify.Consumer) error {
	down := make(chan error, 1)

	consumer.OnAny(func(ev notify.Event) {
		fmt.Println(formatEventLine(ev))
	})
	consumer.OnStateChange(func(s stream.State) {
		fmt.Printf("%s\n", cliui.DimStyle.Render("-- "+s.String()))
	})
	consumer.OnDown(func(err error) {
		down <- err
	})

	if err := consumer.Connect(ctx); err != nil {
		return fmt.Errorf("opening notification stream: %w", err)
	}
	defer consumer.Disconnect()

	select {
	case <-ctx.Done():
		return nil
	case err := <-down:
		return fmt.Errorf("notification stream failed: %w", err)
	}
}

// formatEventLine renders one event as a single tail line.
func formatEventLine(ev notify.Event) string {
	ts := cliui.DimStyle.Render(ev.ReceivedAt.Format("15:04:05"))

	switch {
	case ev.Notification != nil:
		return fmt.Sprintf("%s %s %s %s",
			ts,
			cliui.KeyStyle.Render(ev.Notification.Type),
			cliui.NameStyle.Render(ev.Notification.Title),
			ev.Notification.Body,
		)
	case ev.Feedback != nil:
		return fmt.Sprintf("%s %s %s on message %s",
			ts,
			cliui.KeyStyle.Render("feedback"),
			string(ev.Feedback.Rating),
			ev.Feedback.MessageID,
		)
	case ev.Dashboard != nil:
		return fmt.Sprintf("%s %s users=%d conversations=%d feedback=%d/%d",
			ts,
			cliui.KeyStyle.Render("dashboard"),
			ev.Dashboard.ActiveUsers,
			ev.Dashboard.Conversations,
			ev.Dashboard.Feedback.ThumbsUp,
			ev.Dashboard.Feedback.ThumbsDown,
		)
	case ev.DocumentStatus != nil:
		return fmt.Sprintf("%s %s %s is %s",
			ts,
			cliui.KeyStyle.Render("document"),
			ev.DocumentStatus.DocumentID,
			ev.DocumentStatus.Status,
		)
	default:
		name := ev.Name
		if name == "" {
			name = "message"
		}
		return fmt.Sprintf("%s %s %s", ts, cliui.KeyStyle.Render(name), cliui.Truncate(ev.Raw, 100))
	}
}
