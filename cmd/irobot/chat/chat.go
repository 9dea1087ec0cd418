// Package chatcmder provides the chat command: an interactive session with
// the IroBot assistant over the streaming chat channel.
package chatcmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	historycmder "github.com/irobothq/irobot/cmd/irobot/history"
	"github.com/irobothq/irobot/pkg/chat"
	"github.com/irobothq/irobot/pkg/cliui"
	"github.com/irobothq/irobot/pkg/config"
	"github.com/irobothq/irobot/pkg/credentials"
	"github.com/irobothq/irobot/pkg/dotdir"
	"github.com/irobothq/irobot/pkg/eventstream"
	"github.com/irobothq/irobot/pkg/eventstream/kafka"
	"github.com/irobothq/irobot/pkg/eventstream/nop"
	"github.com/irobothq/irobot/pkg/history"
	"github.com/irobothq/irobot/pkg/logger"
)

const chatLongDesc string = `Start an interactive chat session with the IroBot assistant.

Answers stream in token by token. Each completed turn is cached in the
local history database and the conversation is resumed on the next
invocation (use /new inside the session, or --new, to start fresh).

The default view is a TUI; --plain gives a line-oriented prompt that
suits dumb terminals and transcripts.

Examples:
  irobot chat
  irobot chat --plain
  irobot chat --new
  irobot chat --server http://localhost:8098`

const chatShortDesc string = "Interactive chat with the IroBot assistant"

type chatCommander struct {
	server        string
	plain         bool
	fresh         bool
	publish       bool
	renderMD      bool
	maxLen        uint
	heartbeat     uint
	historyDriver string
	sqlitePath    string
	postgresDSN   string
	publisher     string
	kafkaBrokers  string
	kafkaTopic    string
	debug         bool
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.preRun(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(cmd.Context(), configDir)
		},
	}

	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Line-oriented prompt instead of the TUI")
	cmd.Flags().BoolVar(&cmder.fresh, "new", false, "Start a new conversation instead of resuming")
	cmd.Flags().BoolVar(&cmder.publish, "publish", false, "Publish completed turns to the configured event publisher")
	config.AddStringFlag(cmd, config.Flags, config.FlagServer, &cmder.server)
	config.AddUintFlag(cmd, config.Flags, config.FlagHeartbeat, &cmder.heartbeat)
	config.AddStringFlag(cmd, config.Flags, config.FlagHistoryDriver, &cmder.historyDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagPublisher, &cmder.publisher)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)

	return cmd
}

func (c *chatCommander) preRun(cmd *cobra.Command) error {
	configDir, _ := cmd.Flags().GetString("config-dir")
	c.debug, _ = cmd.Flags().GetBool("debug")

	v, err := config.InitViper(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, []string{
		config.FlagServer,
		config.FlagHeartbeat,
		config.FlagHistoryDriver,
		config.FlagSQLite,
		config.FlagPostgresDSN,
		config.FlagPublisher,
		config.FlagKafkaBrokers,
		config.FlagKafkaTopic,
	})

	c.server = v.GetString("server.base_url")
	c.heartbeat = v.GetUint("stream.heartbeat_seconds")
	c.maxLen = v.GetUint("chat.max_message_length")
	c.renderMD = v.GetBool("chat.render_markdown")
	c.historyDriver = v.GetString("history.driver")
	c.sqlitePath = v.GetString("history.sqlite_path")
	c.postgresDSN = v.GetString("history.postgres_dsn")
	c.publisher = v.GetString("events.publisher")
	c.kafkaBrokers = v.GetString("events.kafka_brokers")
	c.kafkaTopic = v.GetString("events.kafka_topic")

	return nil
}

// session bundles everything one chat invocation owns: the consumer, the
// local cache, the outbound publisher, and the resumable conversation state.
type session struct {
	consumer  *chat.Consumer
	cache     history.Driver
	publisher eventstream.Publisher
	ddm       *dotdir.Manager
	configDir string
	convID    string
	title     string
	publish   bool
	log       *slog.Logger
}

func (c *chatCommander) run(parent context.Context, configDir string) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.Nop()
	if c.debug {
		log = logger.New(logger.WithDebug(true), logger.WithPretty(true))
	}

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	src, closeSrc := tokenSource(mgr, log)
	defer closeSrc()

	cache, err := historycmder.OpenDriver(ctx, configDir, c.historyDriver, c.sqlitePath, c.postgresDSN)
	if err != nil {
		return fmt.Errorf("opening history cache: %w", err)
	}
	defer cache.Close()

	publisher, err := c.newPublisher(log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	consumer := chat.New(c.server,
		chat.WithTokenSource(src),
		chat.WithHeartbeatTimeout(time.Duration(c.heartbeat)*time.Second),
		chat.WithMaxMessageLength(int(c.maxLen)),
		chat.WithLogger(log),
	)
	defer consumer.Cancel()

	sess := &session{
		consumer:  consumer,
		cache:     cache,
		publisher: publisher,
		ddm:       dotdir.NewManager(),
		configDir: configDir,
		publish:   c.publish,
		log:       log,
	}

	if !c.fresh {
		state, err := sess.ddm.LoadSessionState(configDir)
		if err != nil {
			return fmt.Errorf("loading session state: %w", err)
		}
		if state != nil {
			sess.convID = state.ConversationID
			sess.title = state.Title
		}
	}

	if c.plain {
		return c.runPlain(ctx, sess)
	}

	return runChatTUI(ctx, sess)
}

// tokenSource prefers the environment token, otherwise a watching source so
// a rotated credentials file is picked up at the next connection attempt.
func tokenSource(mgr *credentials.Manager, log *slog.Logger) (credentials.Source, func()) {
	src := credentials.DefaultSource(mgr)
	if _, static := src.(credentials.StaticSource); static {
		// IROBOT_TOKEN is set; there is no file to watch.
		return src, func() {}
	}

	watching, err := credentials.NewWatchingSource(mgr, credentials.DefaultProfile, log)
	if err != nil {
		return credentials.DefaultSource(mgr), func() {}
	}
	return watching, func() { _ = watching.Close() }
}

func (c *chatCommander) newPublisher(log *slog.Logger) (eventstream.Publisher, error) {
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

// recordTurn persists a completed turn everywhere it belongs: the local
// history cache, the resumable session state, and (when enabled) the
// outbound event publisher. Failures degrade to log lines; the answer was
// already delivered to the user.
func (s *session) recordTurn(ctx context.Context, question string, res *chat.Result) {
	s.convID = res.ConversationID
	if s.title == "" {
		s.title = cliui.Truncate(question, 64)
	}

	titles := make([]string, 0, len(res.Sources))
	for _, src := range res.Sources {
		titles = append(titles, src.Title)
	}

	if err := s.cache.SaveTurn(ctx, &history.Turn{
		ConversationID: res.ConversationID,
		Question:       question,
		Answer:         res.Content,
		Sources:        titles,
	}); err != nil {
		s.log.Warn("caching turn", "err", err)
	}

	if err := s.ddm.SaveSession(&dotdir.SessionState{
		ConversationID: s.convID,
		Title:          s.title,
		LastActive:     time.Now().UTC(),
	}, s.configDir); err != nil {
		s.log.Warn("saving session state", "err", err)
	}

	if s.publish {
		if err := s.publisher.PublishTurn(ctx, &eventstream.TurnCompletedEvent{
			SchemaVersion:  eventstream.SchemaVersionV1,
			EventType:      eventstream.EventTypeTurnCompleted,
			EventID:        uuid.NewString(),
			EmittedAt:      time.Now().UTC(),
			ConversationID: res.ConversationID,
			Message:        question,
			Content:        res.Content,
			SourceTitles:   titles,
			Duration:       res.Duration,
		}); err != nil {
			s.log.Warn("publishing turn", "err", err)
		}
	}
}

// reset drops the resumable conversation so the next send starts a new one.
func (s *session) reset() error {
	s.convID = ""
	s.title = ""
	return s.ddm.ClearSession(s.configDir)
}

// isCanceled reports a caller-driven teardown, which is not a failure.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
