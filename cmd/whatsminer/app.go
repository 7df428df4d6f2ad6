package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/benmeehan/whatsminer-cli/internal/constants"
	"github.com/benmeehan/whatsminer-cli/internal/services"
	"github.com/benmeehan/whatsminer-cli/internal/transport"
	"github.com/benmeehan/whatsminer-cli/internal/utils"
	"github.com/benmeehan/whatsminer-cli/pkg/file"
	"github.com/rs/zerolog"
)

// Exit codes
const (
	exitOK     = 0
	exitError  = 1
	exitConfig = 2
)

// App wires configuration, logging and the miner service for one invocation.
type App struct {
	Stdout io.Writer
	Stderr io.Writer

	// ReadPassword is consulted when no password is configured. May be nil.
	ReadPassword func() (string, error)

	fileClient file.FileOperations
	logger     zerolog.Logger
}

// globalOptions holds the flags accepted before the subcommand.
type globalOptions struct {
	config   string
	host     optionalString
	port     int
	login    optionalString
	password optionalString
	timeout  int
	logLevel optionalString
	logJSON  bool
}

// optionalString is a string flag that records whether it was given.
type optionalString struct {
	value *string
}

func (o *optionalString) String() string {
	if o.value == nil {
		return ""
	}
	return *o.value
}

func (o *optionalString) Set(s string) error {
	o.value = &s
	return nil
}

// optionalInt64 is an int64 flag that records whether it was given.
type optionalInt64 struct {
	value *int64
}

func (o *optionalInt64) String() string {
	if o.value == nil {
		return ""
	}
	return strconv.FormatInt(*o.value, 10)
}

func (o *optionalInt64) Set(s string) error {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	o.value = &n
	return nil
}

// Run executes the command line and returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	if a.fileClient == nil {
		a.fileClient = file.NewFileService()
	}
	a.logger = utils.NewLogger(a.Stderr, "info", false)

	opts := &globalOptions{}
	fs := flag.NewFlagSet("whatsminer", flag.ContinueOnError)
	fs.SetOutput(a.Stderr)
	fs.Usage = func() { a.usage() }
	fs.StringVar(&opts.config, "config", constants.DefaultConfigFile, "Path to miner config file")
	fs.StringVar(&opts.config, "c", constants.DefaultConfigFile, "Path to miner config file (shorthand)")
	fs.Var(&opts.host, "host", "Miner host (overrides config)")
	fs.IntVar(&opts.port, "port", 0, "Miner TCP port")
	fs.Var(&opts.login, "login", "Account name")
	fs.Var(&opts.password, "password", "Account password (overrides config)")
	fs.IntVar(&opts.timeout, "timeout", 0, "Socket timeout in seconds")
	fs.Var(&opts.logLevel, "log-level", "Log level: debug, info, warn, error")
	fs.BoolVar(&opts.logJSON, "log-json", false, "Emit logs as JSON")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitConfig
	}

	rest := fs.Args()
	if len(rest) == 0 {
		a.usage()
		return exitConfig
	}

	command, cmdArgs := rest[0], rest[1:]
	switch command {
	case "help", "-h", "--help":
		a.usage()
		return exitOK
	case "version":
		fmt.Fprintln(a.Stdout, "whatsminer", version)
		return exitOK
	case "get-salt", "call":
	default:
		fmt.Fprintf(a.Stderr, "Unknown command: %s\n\n", command)
		a.usage()
		return exitConfig
	}

	config, err := a.resolveConfig(opts)
	if err != nil {
		fmt.Fprintln(a.Stderr, "Error:", err)
		var configErr *utils.ConfigError
		if errors.As(err, &configErr) {
			a.usage()
		}
		return exitConfig
	}

	a.logger = utils.NewLogger(a.Stderr, config.Log.Level, config.Log.JSON)

	svc, err := services.NewMinerService(services.ConnectionSettings{
		Host:     config.Host,
		Port:     config.Port,
		Account:  config.Login,
		Password: config.Password,
	}, transport.NewTCPTransport(config.TimeoutDuration(), a.logger.With().Str("component", "transport").Logger()), a.logger)
	if err != nil {
		fmt.Fprintln(a.Stderr, "Error:", err)
		return exitConfig
	}

	switch command {
	case "get-salt":
		return a.cmdGetSalt(ctx, svc, cmdArgs)
	default:
		return a.cmdCall(ctx, svc, cmdArgs)
	}
}

// resolveConfig merges flags over the config file over defaults.
func (a *App) resolveConfig(opts *globalOptions) (*utils.Config, error) {
	config, err := utils.LoadConfig(opts.config, a.fileClient)
	if err != nil {
		return nil, err
	}

	if opts.host.value != nil {
		config.Host = *opts.host.value
	}
	if opts.port != 0 {
		config.Port = opts.port
	}
	if opts.login.value != nil {
		config.Login = *opts.login.value
	}
	if opts.password.value != nil {
		config.Password = *opts.password.value
	}
	if opts.timeout != 0 {
		config.Timeout = opts.timeout
	}
	if opts.logLevel.value != nil {
		config.Log.Level = *opts.logLevel.value
	}
	if opts.logJSON {
		config.Log.JSON = true
	}
	config.ApplyDefaults()

	if config.Password == "" && config.Host != "" && a.ReadPassword != nil {
		password, err := a.ReadPassword()
		if err != nil {
			return nil, err
		}
		config.Password = password
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (a *App) usage() {
	fmt.Fprintf(a.Stderr, `Usage: whatsminer [global flags] <command> [flags]

Whatsminer CLI utility (API v3.0.1). Connection settings come from the config
file (default %s, JSON or YAML) and are overridden by flags.

Global flags:
  -c, --config <path>   Config file path (default: %s)
  --host <host>         Miner host
  --port <port>         Miner TCP port (default: %d)
  --login <account>     Account name (default: %s)
  --password <pw>       Account password (prompted when missing on a terminal)
  --timeout <seconds>   Socket timeout (default: %d)
  --log-level <level>   debug, info, warn or error (default: info)
  --log-json            Emit logs as JSON

Commands:
  get-salt [--param salt]
        Call get.device.info and show the salt used by set.* commands
  call <cmd> [--param V | --param-json JSON | --param-file FILE]
             [--salt S] [--ts N] [--show-request] [--save-response FILE]
        Call any API command, e.g. get.device.info or set.miner.pools
  version
        Print the version
  help
        Show this message
`, constants.DefaultConfigFile, constants.DefaultConfigFile, constants.DefaultPort, constants.DefaultAccount, int(constants.DefaultTimeout.Seconds()))
}
