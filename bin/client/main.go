package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"flag"
	"io"
	"net"
	"os"
	"os/signal"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/silversupreme/fuelwatch/pkg/client"
	"github.com/silversupreme/fuelwatch/pkg/config"
)

func init() {
	flag.Set("alsologtostderr", "true")
}

func main() {
	fs := pflag.NewFlagSet("fuelwatch-client", pflag.ExitOnError)
	config.ClientFlags(fs)
	fs.AddGoFlagSet(flag.CommandLine)
	fs.Parse(os.Args[1:])
	flag.CommandLine.Parse(nil)
	defer glog.Flush()

	cfg, err := config.LoadClient(fs)
	if err != nil {
		glog.Fatalf("bad configuration: %v", err)
	}
	if cfg.ID == "" {
		cfg.ID = client.DefaultIdentity()
	}

	conn, err := dial(cfg)
	if err != nil {
		glog.Fatalf("couldn't connect to the fuelwatch server: %v", err)
	}
	defer conn.Close()

	s := client.NewSender(conn, cfg.MaxLine)
	if err := s.Identify(cfg.ID); err != nil {
		glog.Fatalf("%v", err)
	}
	glog.Infof("Sending %s to %s as %s.", cfg.File, cfg.Addr, cfg.ID)

	if cfg.Follow {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		err = s.Follow(ctx, cfg.File)
	} else {
		err = sendFile(s, cfg.File)
	}
	if err != nil {
		glog.Errorf("flight %s aborted: %v", cfg.ID, err)
	}
	glog.Infof("Sent %d lines, skipped %d.", s.Sent, s.Skipped)
}

func sendFile(s *client.Sender, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "could not open file")
	}
	defer f.Close()
	return s.Send(f)
}

func dial(cfg config.Client) (io.ReadWriteCloser, error) {
	if cfg.CACert == "" {
		return net.Dial("tcp", cfg.Addr)
	}

	// Create a certificate pool from the certificate authority
	certPool := x509.NewCertPool()
	ca, err := os.ReadFile(cfg.CACert)
	if err != nil {
		return nil, errors.Wrap(err, "could not read ca certificate")
	}
	if ok := certPool.AppendCertsFromPEM(ca); !ok {
		return nil, errors.New("failed to append ca certs")
	}

	return tls.Dial("tcp", cfg.Addr, &tls.Config{
		RootCAs:    certPool,
		MinVersion: tls.VersionTLS12,
	})
}
