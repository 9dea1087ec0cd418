package config

const (
	defaultBaseURL = "http://localhost:8098"

	defaultMaxMessageLength = 4000

	defaultHeartbeatSeconds     = 30
	defaultMaxReconnectAttempts = 4
	defaultBaseDelayMs          = 1000

	defaultHistoryDriver = "sqlite"

	defaultPublisher  = "nop"
	defaultKafkaTopic = "irobot.events"

	defaultDemoListen = ":8098"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			BaseURL: defaultBaseURL,
		},
		Chat: ChatConfig{
			MaxMessageLength: defaultMaxMessageLength,
			RenderMarkdown:   true,
		},
		Stream: StreamConfig{
			HeartbeatSeconds:     defaultHeartbeatSeconds,
			MaxReconnectAttempts: defaultMaxReconnectAttempts,
			BaseDelayMs:          defaultBaseDelayMs,
		},
		History: HistoryConfig{
			Driver: defaultHistoryDriver,
		},
		Events: EventsConfig{
			Publisher:  defaultPublisher,
			KafkaTopic: defaultKafkaTopic,
		},
		Demo: DemoConfig{
			Listen: defaultDemoListen,
		},
	}
}
