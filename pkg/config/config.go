// Package config loads settings for the fuelwatch binaries from flags, the
// environment and an optional config file, in that order of precedence.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. FUELWATCH_SUMMARY_LOG.
const EnvPrefix = "FUELWATCH"

// DefaultPort is the port telemetry stations have always used.
const DefaultPort = "27000"

// Server configures the telemetry server.
type Server struct {
	Listen     string
	SummaryLog string
	MaxConns   int
	ReadSize   int
	MaxLine    int

	// Both set switches the listener to TLS.
	TLSCert string
	TLSKey  string
}

// Client configures the telemetry sender.
type Client struct {
	Addr    string
	File    string
	ID      string
	MaxLine int
	Follow  bool

	// Set switches the connection to TLS, trusting only this CA.
	CACert string
}

// ServerFlags registers the server's flags on fs.
func ServerFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "optional config file (yaml, toml or json)")
	fs.String("listen", ":"+DefaultPort, "TCP address to listen on")
	fs.String("summary-log", "flights.log", "file each completed flight's average consumption is appended to")
	fs.Int("max-conns", 0, "max concurrently handled connections, 0 for no limit")
	fs.Int("read-buffer", 128, "bytes read from a connection at a time")
	fs.Int("max-line", 1024, "longest telemetry line a connection may send before it is discarded")
	fs.String("tls-cert", "", "TLS certificate to present to clients")
	fs.String("tls-key", "", "TLS private key to load")
}

// ClientFlags registers the client's flags on fs.
func ClientFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "optional config file (yaml, toml or json)")
	fs.String("addr", "127.0.0.1:"+DefaultPort, "fuelwatch server to connect to")
	fs.String("file", "telemetry.txt", "telemetry file to send")
	fs.String("id", "", "airplane identity, generated when empty")
	fs.Int("max-line", 64, "lines longer than this many bytes are skipped, 0 for no limit")
	fs.Bool("follow", false, "keep sending lines appended to the file")
	fs.String("ca-cert", "", "CA certificate to verify a TLS server with")
}

// LoadServer resolves the server configuration from parsed flags.
func LoadServer(fs *pflag.FlagSet) (Server, error) {
	v, err := load(fs)
	if err != nil {
		return Server{}, err
	}

	cfg := Server{
		Listen:     v.GetString("listen"),
		SummaryLog: v.GetString("summary-log"),
		MaxConns:   v.GetInt("max-conns"),
		ReadSize:   v.GetInt("read-buffer"),
		MaxLine:    v.GetInt("max-line"),
		TLSCert:    v.GetString("tls-cert"),
		TLSKey:     v.GetString("tls-key"),
	}

	switch {
	case cfg.Listen == "":
		return Server{}, errors.New("listen address is empty")
	case cfg.MaxConns < 0:
		return Server{}, errors.Errorf("max-conns must not be negative, got %d", cfg.MaxConns)
	case cfg.ReadSize <= 0:
		return Server{}, errors.Errorf("read-buffer must be positive, got %d", cfg.ReadSize)
	case cfg.MaxLine <= 0:
		return Server{}, errors.Errorf("max-line must be positive, got %d", cfg.MaxLine)
	case (cfg.TLSCert == "") != (cfg.TLSKey == ""):
		return Server{}, errors.New("tls-cert and tls-key must be set together")
	}
	return cfg, nil
}

// LoadClient resolves the client configuration from parsed flags.
func LoadClient(fs *pflag.FlagSet) (Client, error) {
	v, err := load(fs)
	if err != nil {
		return Client{}, err
	}

	cfg := Client{
		Addr:    v.GetString("addr"),
		File:    v.GetString("file"),
		ID:      v.GetString("id"),
		MaxLine: v.GetInt("max-line"),
		Follow:  v.GetBool("follow"),
		CACert:  v.GetString("ca-cert"),
	}

	switch {
	case cfg.Addr == "":
		return Client{}, errors.New("server address is empty")
	case cfg.File == "":
		return Client{}, errors.New("telemetry file is empty")
	case cfg.MaxLine < 0:
		return Client{}, errors.Errorf("max-line must not be negative, got %d", cfg.MaxLine)
	case strings.ContainsAny(cfg.ID, "\r\n"):
		return Client{}, errors.Errorf("identity %q spans lines", cfg.ID)
	}
	return cfg, nil
}

func load(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, errors.Wrap(err, "bind flags")
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}
	return v, nil
}
