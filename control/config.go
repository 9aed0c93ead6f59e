// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Command line and tunable parsing. Positional arguments follow the classic
// ping-pong benchmark layout; everything else is a long flag that may also be
// supplied through a config file or RTT_ prefixed environment variables.

package control

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/momentics/hioload-rtt/api"
	"github.com/momentics/hioload-rtt/stats"
)

// Defaults for the round-trip tunables.
const (
	DefaultBatchSize         = 100
	DefaultWaitTimeout       = time.Second
	DefaultWarmUp            = 5 * time.Second
	DefaultStatsIncrement    = stats.DefaultIncrement
	DefaultStatsLimit        = 0
	DefaultReliabilityWindow = 10 * time.Second
	DefaultQueueDepth        = 1024
	DefaultRequestChannel    = "ping"
	DefaultResponseChannel   = "pong"
	DefaultOutputPath        = "raw_latency.csv"
)

// Tunables are run parameters with sensible defaults that rarely change.
type Tunables struct {
	BatchSize         int
	WaitTimeout       time.Duration
	WarmUp            time.Duration
	StatsIncrement    int
	StatsLimit        int
	ReliabilityWindow time.Duration
	QueueDepth        int
	RequestChannel    string
	ResponseChannel   string
}

// DefaultTunables returns the built-in tunables.
func DefaultTunables() Tunables {
	return Tunables{
		BatchSize:         DefaultBatchSize,
		WaitTimeout:       DefaultWaitTimeout,
		WarmUp:            DefaultWarmUp,
		StatsIncrement:    DefaultStatsIncrement,
		StatsLimit:        DefaultStatsLimit,
		ReliabilityWindow: DefaultReliabilityWindow,
		QueueDepth:        DefaultQueueDepth,
		RequestChannel:    DefaultRequestChannel,
		ResponseChannel:   DefaultResponseChannel,
	}
}

// QoS returns the reliable channel QoS derived from the tunables.
func (t Tunables) QoS() api.QoS {
	return api.QoS{
		Reliability: api.Reliable,
		MaxBlocking: t.ReliabilityWindow,
		Depth:       t.QueueDepth,
	}
}

// RunConfig is the validated configuration of one invocation.
type RunConfig struct {
	// Quit sends a termination marker instead of measuring.
	Quit bool

	Mode        api.DeliveryMode
	PayloadSize int
	Samples     uint64        // 0 = unbounded
	Timeout     time.Duration // 0 = unbounded
	OutputPath  string

	SummaryPath  string
	Requirements stats.Requirements
	ChecksPath   string

	Pin         bool
	MetricsAddr string
	LogLevel    string
	LogJSON     bool

	Tunables
}

// Usage is printed for -h and invalid arguments.
const Usage = `Usage (parameters must be supplied in order):
  rtt-pingpong [-l] [payloadSize (bytes, 0 - 104857600)] [numSamples (0 = infinite)] [timeOut (seconds, 0 = infinite)] [outputFile]
  rtt-pingpong quit - ping sends a quit signal to pong.
Defaults:
  rtt-pingpong 0 0 0 raw_latency.csv

Options:
  -l, --listener              deliver samples through a transport listener instead of a waitset
  -h, --help                  print this text
      --delivery mode         poll (waitset) or push (listener), default poll
      --config path           read tunables from a config file (yaml, json, toml)
      --summary path          write a latency summary table
      --require-median us     fail when the median latency exceeds us
      --require-p99 us        fail when the 99th percentile exceeds us
      --require-max us        fail when the maximum latency exceeds us
      --checks path           write requirement check results (default <summary>.checks.csv)
      --pin                   pin both workers to distinct CPUs
      --metrics-addr addr     serve Prometheus metrics on addr
      --log-level level       debug, info, warn, error (default info)
      --log-json              log as JSON
      --batch-size n          samples taken per wake (default 100)
      --wait-timeout d        wait interval between cancellation checks (default 1s)
      --warmup d              warm-up deadline (default 5s)
      --stats-increment n     timing history growth step (default 50000)
      --stats-limit n         maximum stored samples, 0 = unbounded
      --reliability-window d  reliable publish blocking window (default 10s)
      --queue-depth n         reader backlog limit (default 1024)
      --request-channel name  ping channel (default ping)
      --response-channel name pong channel (default pong)

Every long option can also be set as RTT_<NAME> (e.g. RTT_BATCH_SIZE).
`

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("rtt-pingpong", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.BoolP("listener", "l", false, "")
	fs.BoolP("help", "h", false, "")
	fs.String("delivery", "poll", "")
	fs.String("config", "", "")
	fs.String("summary", "", "")
	fs.Float64("require-median", 0, "")
	fs.Float64("require-p99", 0, "")
	fs.Float64("require-max", 0, "")
	fs.String("checks", "", "")
	fs.Bool("pin", false, "")
	fs.String("metrics-addr", "", "")
	fs.String("log-level", "info", "")
	fs.Bool("log-json", false, "")

	d := DefaultTunables()
	fs.Int("batch-size", d.BatchSize, "")
	fs.Duration("wait-timeout", d.WaitTimeout, "")
	fs.Duration("warmup", d.WarmUp, "")
	fs.Int("stats-increment", d.StatsIncrement, "")
	fs.Int("stats-limit", d.StatsLimit, "")
	fs.Duration("reliability-window", d.ReliabilityWindow, "")
	fs.Int("queue-depth", d.QueueDepth, "")
	fs.String("request-channel", d.RequestChannel, "")
	fs.String("response-channel", d.ResponseChannel, "")
	return fs
}

// ParseArgs parses command line arguments (without the program name).
// Configuration errors carry api.ErrCodeConfiguration; a help request
// wraps api.ErrHelp.
func ParseArgs(args []string) (*RunConfig, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, configError("help requested", api.ErrHelp)
		}
		return nil, configError("invalid option", err)
	}

	v := viper.New()
	v.SetEnvPrefix("RTT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, configError("bind flags", err)
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, configError("read config file", err).WithContext("path", path)
		}
	}
	if v.GetBool("help") {
		return nil, configError("help requested", api.ErrHelp)
	}

	cfg := &RunConfig{
		OutputPath:  DefaultOutputPath,
		SummaryPath: v.GetString("summary"),
		ChecksPath:  v.GetString("checks"),
		Requirements: stats.Requirements{
			Median: v.GetFloat64("require-median"),
			P99:    v.GetFloat64("require-p99"),
			Max:    v.GetFloat64("require-max"),
		},
		Pin:         v.GetBool("pin"),
		MetricsAddr: v.GetString("metrics-addr"),
		LogLevel:    v.GetString("log-level"),
		LogJSON:     v.GetBool("log-json"),
		Tunables: Tunables{
			BatchSize:         v.GetInt("batch-size"),
			WaitTimeout:       v.GetDuration("wait-timeout"),
			WarmUp:            v.GetDuration("warmup"),
			StatsIncrement:    v.GetInt("stats-increment"),
			StatsLimit:        v.GetInt("stats-limit"),
			ReliabilityWindow: v.GetDuration("reliability-window"),
			QueueDepth:        v.GetInt("queue-depth"),
			RequestChannel:    v.GetString("request-channel"),
			ResponseChannel:   v.GetString("response-channel"),
		},
	}
	mode, err := api.ParseDeliveryMode(v.GetString("delivery"))
	if err != nil {
		return nil, configError("delivery mode", err)
	}
	cfg.Mode = mode
	if v.GetBool("listener") {
		cfg.Mode = api.DeliveryPush
	}
	if cfg.Requirements.Enabled() && cfg.ChecksPath == "" {
		if cfg.SummaryPath != "" {
			cfg.ChecksPath = strings.TrimSuffix(cfg.SummaryPath, ".csv") + ".checks.csv"
		}
	}

	if err := cfg.parsePositional(fs.Args()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *RunConfig) parsePositional(pos []string) error {
	switch {
	case len(pos) == 0:
		return configError("missing payload size", api.ErrInvalidArgument)
	case len(pos) > 4:
		return configError("too many arguments", api.ErrInvalidArgument).
			WithContext("args", pos)
	case len(pos) == 1 && pos[0] == "quit":
		cfg.Quit = true
		return nil
	}

	payload, err := strconv.ParseUint(pos[0], 10, 32)
	if err != nil {
		return configError("payload size", err).WithContext("value", pos[0])
	}
	if payload > api.MaxPayloadSize {
		return configError("payload size above 100 MiB", api.ErrInvalidArgument).
			WithContext("value", payload)
	}
	cfg.PayloadSize = int(payload)

	if len(pos) >= 2 {
		if cfg.Samples, err = strconv.ParseUint(pos[1], 10, 64); err != nil {
			return configError("number of samples", err).WithContext("value", pos[1])
		}
	}
	if len(pos) >= 3 {
		secs, err := strconv.ParseUint(pos[2], 10, 32)
		if err != nil {
			return configError("timeout", err).WithContext("value", pos[2])
		}
		cfg.Timeout = time.Duration(secs) * time.Second
	}
	if len(pos) >= 4 {
		if pos[3] == "" {
			return configError("empty output path", api.ErrInvalidArgument)
		}
		cfg.OutputPath = pos[3]
	}
	return nil
}

// Validate checks the tunables.
func (cfg *RunConfig) Validate() error {
	t := cfg.Tunables
	switch {
	case t.BatchSize < 1:
		return configError("batch size must be positive", api.ErrInvalidArgument).
			WithContext("batch_size", t.BatchSize)
	case t.WaitTimeout <= 0:
		return configError("wait timeout must be positive", api.ErrInvalidArgument).
			WithContext("wait_timeout", t.WaitTimeout)
	case t.WarmUp < 0:
		return configError("negative warm-up", api.ErrInvalidArgument)
	case t.StatsIncrement < 1:
		return configError("stats increment must be positive", api.ErrInvalidArgument)
	case t.StatsLimit < 0:
		return configError("negative stats limit", api.ErrInvalidArgument)
	case t.ReliabilityWindow <= 0:
		return configError("reliability window must be positive", api.ErrInvalidArgument)
	case t.QueueDepth < 1:
		return configError("queue depth must be positive", api.ErrInvalidArgument)
	case t.RequestChannel == "" || t.ResponseChannel == "" || t.RequestChannel == t.ResponseChannel:
		return configError("request and response channels must be distinct names", api.ErrInvalidArgument)
	case cfg.Requirements.Median < 0 || cfg.Requirements.P99 < 0 || cfg.Requirements.Max < 0:
		return configError("negative requirement", api.ErrInvalidArgument)
	}
	return nil
}

func configError(msg string, cause error) *api.Error {
	return api.WrapError(api.ErrCodeConfiguration, msg, cause)
}
