package cmds

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	envBaseURL = "TOPICSYNC_BASE_URL"
	envConfig  = "TOPICSYNC_CONFIG"
)

type rootSettings struct {
	BaseURL          string
	Config           string
	Hash             string
	SessionID        string
	User             string
	LogLevel         string
	ReconnectBackoff time.Duration
	ReconnectMax     time.Duration
	Timeout          time.Duration
	Env              string
	LogFile          string

	logger  zerolog.Logger
	logSink *os.File
}

// credentials splits --user into name and password, curl style.
func (s *rootSettings) credentials() (string, string) {
	if s.User == "" {
		return "", ""
	}
	name, pass, _ := strings.Cut(s.User, ":")
	return name, pass
}

func NewRootCommand() *cobra.Command {
	s := &rootSettings{}

	root := &cobra.Command{
		Use:           "topicsync",
		Short:         "Subscribe to a push server's topics and follow its event stream",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.prepare(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			s.close()
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&s.BaseURL, "base-url", "http://localhost:8080", "push server base URL (env "+envBaseURL+")")
	f.StringVar(&s.Config, "config", "", "topic config file or URL (env "+envConfig+"; default {base-url}/public-config.json)")
	f.StringVar(&s.Hash, "hash", "", "share hash or share URL to start from, e.g. '#?topics=rawtx,rawblock'")
	f.StringVar(&s.SessionID, "session-id", "", "stream session id (default: random UUID)")
	f.StringVar(&s.User, "user", "", "basic auth credentials as name:password")
	f.StringVar(&s.LogLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	f.DurationVar(&s.ReconnectBackoff, "reconnect-backoff", 0, "first reconnect delay; 0 reconnects immediately")
	f.DurationVar(&s.ReconnectMax, "reconnect-max", 30*time.Second, "maximum reconnect delay")
	f.DurationVar(&s.Timeout, "timeout", 0, "subscription request timeout; 0 waits indefinitely")
	f.StringVar(&s.Env, "env", "", "load environment variables from this file first")
	f.StringVar(&s.LogFile, "log-file", "", "write logs to this file instead of stderr")

	root.AddCommand(
		newWatchCommand(s),
		newTailCommand(s),
		newShareCommand(s),
		newSnippetCommand(s),
		newVersionCommand(),
	)
	return root
}

func (s *rootSettings) prepare(cmd *cobra.Command) error {
	if s.Env != "" {
		if err := godotenv.Load(s.Env); err != nil {
			return errors.Wrapf(err, "load env file %s", s.Env)
		}
	}
	flags := cmd.Flags()
	if v := os.Getenv(envBaseURL); v != "" && !flags.Changed("base-url") {
		s.BaseURL = v
	}
	if v := os.Getenv(envConfig); v != "" && !flags.Changed("config") {
		s.Config = v
	}
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")

	level, err := zerolog.ParseLevel(s.LogLevel)
	if err != nil {
		return errors.Wrap(err, "parse log level")
	}
	out := os.Stderr
	if s.LogFile != "" {
		out, err = os.OpenFile(s.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return errors.Wrap(err, "open log file")
		}
		s.logSink = out
	}
	s.logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: s.LogFile != ""}).
		Level(level).
		With().Timestamp().Logger()
	return nil
}

func (s *rootSettings) close() {
	if s.logSink != nil {
		_ = s.logSink.Close()
	}
}
