package main

import (
	"crypto/tls"
	"flag"
	"net"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/silversupreme/fuelwatch/pkg/config"
	"github.com/silversupreme/fuelwatch/pkg/server"
	"github.com/silversupreme/fuelwatch/pkg/sink"
)

func init() {
	flag.Set("alsologtostderr", "true")
}

func main() {
	fs := pflag.NewFlagSet("fuelwatch-server", pflag.ExitOnError)
	config.ServerFlags(fs)
	fs.AddGoFlagSet(flag.CommandLine)
	fs.Parse(os.Args[1:])
	// glog reads its settings from the go flag set
	flag.CommandLine.Parse(nil)
	defer glog.Flush()

	cfg, err := config.LoadServer(fs)
	if err != nil {
		glog.Fatalf("bad configuration: %v", err)
	}

	ln, err := listen(cfg)
	if err != nil {
		glog.Fatalf("couldn't listen on %s: %v", cfg.Listen, err)
	}

	glog.Infof("Server listening on %s.", ln.Addr())
	s := server.New(ln, sink.New(os.Stdout, cfg.SummaryLog), clock.New(), server.Options{
		ReadSize: cfg.ReadSize,
		MaxLine:  cfg.MaxLine,
		MaxConns: cfg.MaxConns,
	})
	if err := s.Serve(); err != nil {
		glog.Fatalf("server stopped: %v", err)
	}
}

func listen(cfg config.Server) (net.Listener, error) {
	if cfg.TLSCert == "" {
		return net.Listen("tcp", cfg.Listen)
	}

	// Load the certificates from disk
	certificate, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
	if err != nil {
		return nil, errors.Wrap(err, "could not load server key pair")
	}

	return tls.Listen("tcp", cfg.Listen, &tls.Config{
		Certificates: []tls.Certificate{certificate},
		MinVersion:   tls.VersionTLS12,
	})
}
