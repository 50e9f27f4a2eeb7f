package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrConfiguration is wrapped by every validation failure. The process must
// not start when Load returns it.
var ErrConfiguration = errors.New("configuration error")

// Error describes a single bad or missing setting.
type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Key, e.Reason)
}

func (e *Error) Unwrap() error { return ErrConfiguration }

// Config is loaded once at start-up and passed by value afterwards.
type Config struct {
	Port string

	TelegramBotToken string
	AllowedChatIDs   []int64

	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	OCREnabled    bool
	AnswerEnabled bool

	ImageQuality  int
	ImageMaxWidth int

	Verbose   bool
	LogFormat string

	SessionTimeout time.Duration
	SweepInterval  time.Duration

	CaptureDir     string
	CaptureCommand []string

	StartupRetries int
	StartupBackoff time.Duration
	ShutdownGrace  time.Duration

	DatabaseURL string
}

// IsAllowed reports whether chatID is on the allow-list.
func (c Config) IsAllowed(chatID int64) bool {
	for _, id := range c.AllowedChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("gemini_model", "gemini-2.5-flash")
	v.SetDefault("openai_model", "gpt-4o-mini")
	v.SetDefault("openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("ocr_enabled", true)
	v.SetDefault("answer_enabled", true)
	v.SetDefault("image_quality", 85)
	v.SetDefault("image_max_width", 1920)
	v.SetDefault("verbose", false)
	v.SetDefault("log_format", "text")
	v.SetDefault("session_timeout_minutes", 30)
	v.SetDefault("sweep_interval", "5m")
	v.SetDefault("capture_dir", filepath.Join(os.TempDir(), "screen-bot"))
	v.SetDefault("capture_command", "import -window root png:-")
	v.SetDefault("startup_retries", 5)
	v.SetDefault("startup_backoff", "5s")
	v.SetDefault("shutdown_grace", "30s")
}

// keys read from the environment; viper only resolves AutomaticEnv for keys
// it already knows about, so each one is bound explicitly.
var envKeys = []string{
	"port", "telegram_bot_token", "allowed_chat_ids",
	"gemini_api_key", "gemini_model",
	"openai_api_key", "openai_model", "openai_base_url",
	"ocr_enabled", "answer_enabled", "image_quality", "image_max_width",
	"verbose", "log_format", "session_timeout_minutes", "sweep_interval",
	"capture_dir", "capture_command",
	"startup_retries", "startup_backoff", "shutdown_grace",
	"database_url",
}

// Load reads the environment and validates the result.
func Load() (Config, error) {
	return load(true)
}

// LoadLocal is Load for runs without Telegram: the bot token and the
// allow-list are not required.
func LoadLocal() (Config, error) {
	return load(false)
}

func load(transport bool) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range envKeys {
		_ = v.BindEnv(k, strings.ToUpper(k))
	}
	return fromViper(v, transport)
}

func fromViper(v *viper.Viper, transport bool) (Config, error) {
	ids, err := parseChatIDs(v.GetString("allowed_chat_ids"))
	if err != nil {
		return Config{}, &Error{Key: "ALLOWED_CHAT_IDS", Reason: err.Error()}
	}

	cfg := Config{
		Port:             strings.TrimSpace(v.GetString("port")),
		TelegramBotToken: strings.TrimSpace(v.GetString("telegram_bot_token")),
		AllowedChatIDs:   ids,
		GeminiAPIKey:     strings.TrimSpace(v.GetString("gemini_api_key")),
		GeminiModel:      strings.TrimSpace(v.GetString("gemini_model")),
		OpenAIAPIKey:     strings.TrimSpace(v.GetString("openai_api_key")),
		OpenAIModel:      strings.TrimSpace(v.GetString("openai_model")),
		OpenAIBaseURL:    strings.TrimRight(strings.TrimSpace(v.GetString("openai_base_url")), "/"),
		OCREnabled:       v.GetBool("ocr_enabled"),
		AnswerEnabled:    v.GetBool("answer_enabled"),
		ImageQuality:     v.GetInt("image_quality"),
		ImageMaxWidth:    v.GetInt("image_max_width"),
		Verbose:          v.GetBool("verbose"),
		LogFormat:        strings.ToLower(strings.TrimSpace(v.GetString("log_format"))),
		SessionTimeout:   time.Duration(v.GetInt("session_timeout_minutes")) * time.Minute,
		SweepInterval:    v.GetDuration("sweep_interval"),
		CaptureDir:       strings.TrimSpace(v.GetString("capture_dir")),
		CaptureCommand:   strings.Fields(v.GetString("capture_command")),
		StartupRetries:   v.GetInt("startup_retries"),
		StartupBackoff:   v.GetDuration("startup_backoff"),
		ShutdownGrace:    v.GetDuration("shutdown_grace"),
		DatabaseURL:      strings.TrimSpace(v.GetString("database_url")),
	}
	validate := cfg.Validate
	if !transport {
		validate = cfg.validateLocal
	}
	if err := validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required settings and ranges.
func (c Config) Validate() error {
	switch {
	case c.TelegramBotToken == "":
		return &Error{Key: "TELEGRAM_BOT_TOKEN", Reason: "missing"}
	case len(c.AllowedChatIDs) == 0:
		return &Error{Key: "ALLOWED_CHAT_IDS", Reason: "missing"}
	}
	return c.validateLocal()
}

func (c Config) validateLocal() error {
	switch {
	case c.OCREnabled && c.GeminiAPIKey == "":
		return &Error{Key: "GEMINI_API_KEY", Reason: "missing while OCR_ENABLED=true"}
	case c.AnswerEnabled && c.OpenAIAPIKey == "":
		return &Error{Key: "OPENAI_API_KEY", Reason: "missing while ANSWER_ENABLED=true"}
	case c.ImageQuality < 1 || c.ImageQuality > 100:
		return &Error{Key: "IMAGE_QUALITY", Reason: "must be within 1..100"}
	case c.ImageMaxWidth < 0:
		return &Error{Key: "IMAGE_MAX_WIDTH", Reason: "must not be negative"}
	case c.SessionTimeout <= 0:
		return &Error{Key: "SESSION_TIMEOUT_MINUTES", Reason: "must be positive"}
	case c.SweepInterval <= 0:
		return &Error{Key: "SWEEP_INTERVAL", Reason: "must be positive"}
	case c.CaptureDir == "":
		return &Error{Key: "CAPTURE_DIR", Reason: "missing"}
	case len(c.CaptureCommand) == 0:
		return &Error{Key: "CAPTURE_COMMAND", Reason: "missing"}
	case c.StartupRetries < 1:
		return &Error{Key: "STARTUP_RETRIES", Reason: "must be at least 1"}
	case c.LogFormat != "text" && c.LogFormat != "json":
		return &Error{Key: "LOG_FORMAT", Reason: "must be text or json"}
	}
	return nil
}

// parseChatIDs accepts "1,2", "1 2" or "1; -1002".
func parseChatIDs(s string) ([]int64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
	out := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad chat id %q", f)
		}
		out = append(out, id)
	}
	return out, nil
}
