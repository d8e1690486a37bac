package config

import (
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dselans/unlzw/lzw"
)

const (
	EnvVarPrefix = "UNLZW"

	DefaultLogLevel           = "info"
	DefaultNumWorkers         = 2
	DefaultBufferSize         = 32 * 1024
	DefaultCheckpointInterval = duration(5 * time.Second)
	DefaultCheckpointFile     = "checkpoint.json"
	DefaultFileType           = "plain"
	DefaultOrder              = "lsb"
	DefaultLitWidth           = 8
	DefaultStripSuffix        = ".lzw"
	DefaultSuffix             = ".out"

	MinNumWorkers         = 1
	MaxNumWorkers         = 100
	MinBufferSize         = 512
	MaxBufferSize         = 16 * 1024 * 1024
	MinCheckpointInterval = duration(1 * time.Millisecond)
	MaxCheckpointInterval = duration(1 * time.Hour)
)

var (
	// VERSION gets set during build
	VERSION = "0.0.0"

	validFileTypes = map[string]struct{}{
		"plain": {},
		"gzip":  {},
		"xz":    {},
	}
)

type Config struct {
	CLI  *CLI
	TOML *TOML
}

type TOML struct {
	Config      *TOMLConfig      `toml:"config"`
	Source      *TOMLSource      `toml:"source"`
	Destination *TOMLDestination `toml:"destination"`
}

type TOMLConfig struct {
	LogLevel             string   `toml:"log_level"`
	NumWorkers           int      `toml:"num_workers"`
	BufferSize           int      `toml:"buffer_size"`
	CheckpointFile       string   `toml:"checkpoint_file"`
	CheckpointInterval   duration `toml:"checkpoint_interval"`
	DisableCheckpointing bool     `toml:"disable_checkpointing"`
}

type TOMLSource struct {
	Files    []string `toml:"files"`
	FileType string   `toml:"file_type"`
	Order    string   `toml:"order"`
	LitWidth int      `toml:"lit_width"`
}

type TOMLDestination struct {
	Dir         string `toml:"dir"`
	StripSuffix string `toml:"strip_suffix"`
	Suffix      string `toml:"suffix"`
	Overwrite   bool   `toml:"overwrite"`
}

type CLI struct {
	ConfigFile    string `kong:"help='Path to the TOML config file',type='path',default='config.toml',short='c'"`
	DryRun        bool   `kong:"help='Decode and checksum sources without writing output',short='n'"`
	DisableResume bool   `kong:"help='Ignore any existing checkpoint and start over',short='R'"`

	Debug   bool             `kong:"help='Enable debug output',short='d'"`
	Quiet   bool             `kong:"help='Disable showing pre/post output',short='q'"`
	Version kong.VersionFlag `help:"Show version and exit" short:"v" env:"-"`

	// Internal bits
	Ctx *kong.Context `kong:"-"`
}

func NewConfig() (*Config, error) {
	// Attempt to load .env
	_ = godotenv.Load(".env")

	cli, err := readCLIArgs()
	if err != nil {
		return nil, errors.Wrap(err, "error parsing CLI args")
	}

	tomlConfig, err := readTOML(cli.ConfigFile)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	return &Config{
		CLI:  cli,
		TOML: tomlConfig,
	}, nil
}

// Order returns the parsed source bit order. Only valid after validation.
func (c *Config) Order() lzw.Order {
	o, _ := lzw.ParseOrder(c.TOML.Source.Order)
	return o
}

// LogLevel returns the level to run at; --debug wins over the config file.
func (c *Config) LogLevel() logrus.Level {
	if c.CLI != nil && c.CLI.Debug {
		return logrus.DebugLevel
	}

	level, err := logrus.ParseLevel(c.TOML.Config.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}

	return level
}

func setTOMLDefaults(t *TOML) error {
	if t == nil {
		return errors.New("toml config cannot be nil")
	}

	if t.Config == nil {
		t.Config = &TOMLConfig{}
	}

	if t.Source == nil {
		t.Source = &TOMLSource{}
	}

	if t.Destination == nil {
		t.Destination = &TOMLDestination{}
	}

	// Set defaults for [config]
	if t.Config.LogLevel == "" {
		t.Config.LogLevel = DefaultLogLevel
	}

	if t.Config.NumWorkers == 0 {
		t.Config.NumWorkers = DefaultNumWorkers
	}

	if t.Config.BufferSize == 0 {
		t.Config.BufferSize = DefaultBufferSize
	}

	if t.Config.CheckpointInterval == 0 {
		t.Config.CheckpointInterval = DefaultCheckpointInterval
	}

	if t.Config.CheckpointFile == "" {
		t.Config.CheckpointFile = DefaultCheckpointFile
	}

	// Set defaults for [source]
	if t.Source.FileType == "" {
		t.Source.FileType = DefaultFileType
	}

	if t.Source.Order == "" {
		t.Source.Order = DefaultOrder
	}

	if t.Source.LitWidth == 0 {
		t.Source.LitWidth = DefaultLitWidth
	}

	// Set defaults for [destination]
	if t.Destination.StripSuffix == "" {
		t.Destination.StripSuffix = DefaultStripSuffix
	}

	if t.Destination.Suffix == "" {
		t.Destination.Suffix = DefaultSuffix
	}

	return nil
}

func Validate(c *Config) error {
	if c == nil {
		return errors.New("config cannot be nil")
	}

	if err := validateCLIArgs(c.CLI); err != nil {
		return errors.Wrap(err, "error validating CLI args")
	}

	if err := validateTOML(c.TOML); err != nil {
		return errors.Wrap(err, "error validating toml config")
	}

	return nil
}

func validateTOML(t *TOML) error {
	if t == nil {
		return errors.New("toml config cannot be nil")
	}

	// Validate [config]
	if err := validateTOMLConfig(t.Config); err != nil {
		return errors.Wrap(err, "config error(s)")
	}

	// Validate [source]
	if err := validateTOMLSource(t.Source); err != nil {
		return errors.Wrap(err, "error validating toml [source]")
	}

	// Validate [destination]
	if err := validateTOMLDestination(t.Destination); err != nil {
		return errors.Wrap(err, "destination error(s)")
	}

	return nil
}

func validateTOMLConfig(c *TOMLConfig) error {
	if c == nil {
		return errors.New("config cannot be empty")
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Errorf("config.log_level %s is invalid", c.LogLevel)
	}

	if c.NumWorkers < MinNumWorkers || c.NumWorkers > MaxNumWorkers {
		return errors.Errorf("config.num_workers must be between %d and %d", MinNumWorkers, MaxNumWorkers)
	}

	if c.BufferSize < MinBufferSize || c.BufferSize > MaxBufferSize {
		return errors.Errorf("config.buffer_size must be between %d and %d", MinBufferSize, MaxBufferSize)
	}

	if c.CheckpointInterval < MinCheckpointInterval || c.CheckpointInterval > MaxCheckpointInterval {
		return errors.Errorf("config.checkpoint_interval must be between %s and %s", MinCheckpointInterval, MaxCheckpointInterval)
	}

	if c.CheckpointFile == "" && !c.DisableCheckpointing {
		return errors.New("config.checkpoint_file cannot be empty")
	}

	return nil
}

func validateTOMLSource(s *TOMLSource) error {
	if s == nil {
		return errors.New("source cannot be empty")
	}

	if len(s.Files) == 0 {
		return errors.New("source.files cannot be empty")
	}

	for _, pattern := range s.Files {
		if pattern == "" {
			return errors.New("source.files cannot contain an empty pattern")
		}

		if !doublestar.ValidatePathPattern(pattern) {
			return errors.Errorf("source.files pattern %s is invalid", pattern)
		}
	}

	// Check if .FileType is valid
	if _, ok := validFileTypes[s.FileType]; !ok {
		return errors.Errorf("source.file_type %s is invalid", s.FileType)
	}

	if _, err := lzw.ParseOrder(s.Order); err != nil {
		return errors.Errorf("source.order %s is invalid", s.Order)
	}

	if s.LitWidth < lzw.MinLitWidth || s.LitWidth > lzw.MaxLitWidth {
		return errors.Errorf("source.lit_width must be between %d and %d", lzw.MinLitWidth, lzw.MaxLitWidth)
	}

	return nil
}

func validateTOMLDestination(d *TOMLDestination) error {
	if d == nil {
		return errors.New("destination cannot be empty")
	}

	if d.Dir == "" {
		return nil
	}

	info, err := os.Stat(d.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			// Created on demand
			return nil
		}

		return errors.Wrapf(err, "unable to stat destination.dir %s", d.Dir)
	}

	if !info.IsDir() {
		return errors.Errorf("destination.dir %s is not a directory", d.Dir)
	}

	return nil
}

func readCLIArgs() (*CLI, error) {
	cli := &CLI{}
	cli.Ctx = kong.Parse(cli,
		kong.Name("unlzw"),
		kong.Description("Batch decoder for raw LZW streams"),
		kong.UsageOnError(),
		kong.DefaultEnvars(EnvVarPrefix),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		kong.Vars{
			"version": VERSION,
		})

	if err := validateCLIArgs(cli); err != nil {
		return nil, errors.Wrap(err, "error validating args")
	}

	return cli, nil
}

func readTOML(file string) (*TOML, error) {
	// Attempt to load file
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "error reading file")
	}

	return parseTOML(data)
}

func parseTOML(data []byte) (*TOML, error) {
	tomlConfig := &TOML{}

	if err := toml.Unmarshal(data, tomlConfig); err != nil {
		return nil, errors.Wrap(err, "error parsing TOML config")
	}

	// Set defaults
	if err := setTOMLDefaults(tomlConfig); err != nil {
		return nil, errors.Wrap(err, "error setting TOML defaults")
	}

	// Validate loaded config
	if err := validateTOML(tomlConfig); err != nil {
		return nil, errors.Wrap(err, "error validating TOML config")
	}

	return tomlConfig, nil
}

func validateCLIArgs(cli *CLI) error {
	if cli == nil {
		return errors.New("config cannot be nil")
	}

	return nil
}

// Copied from https://www.kelche.co/blog/go/toml/
type duration time.Duration

func (d duration) String() string {
	return time.Duration(d).String()
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(dur)
	return nil
}
