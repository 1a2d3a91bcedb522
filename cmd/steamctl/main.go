package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/sstallion/go-hid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cvuchener/steamctl"
	"github.com/cvuchener/steamctl/sink/uinput"
)

const (
	Version string = "0.0.0"
)

func main() {
	app := &cli.App{
		Name: "steamctl",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "path",
				Usage:   "Specifies the working directory for the steamctl service.",
				EnvVars: []string{"STEAMCTL_PATH"},
			},
			&cli.StringFlag{
				Name:    "nats",
				Usage:   "NATS server URL. Empty disables the management surface.",
				EnvVars: []string{"NATS_URL"},
			},
			&cli.StringFlag{
				Name:    "sink",
				Usage:   "Event sink to use, \"uinput\" or \"nats\".",
				EnvVars: []string{"STEAMCTL_SINK"},
				Value:   "uinput",
			},
			&cli.DurationFlag{
				Name:    "scan-interval",
				Usage:   "Interval between device rescans.",
				EnvVars: []string{"STEAMCTL_SCAN_INTERVAL"},
				Value:   2 * time.Second,
			},
		},
		Action: run,
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func run(cli *cli.Context) error {
	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)

	path := cli.String("path")
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		path = homeDir + "/.config/steamctl"
	}

	cfg := steamctl.DefaultConfig()
	cfg.Path = path

	f, err := os.Open(path + "/config.yaml")
	switch {
	case err == nil:
		err := yaml.NewDecoder(f).Decode(cfg)
		f.Close()
		if err != nil {
			return err
		}
	case os.IsNotExist(err):
		log.Info("no config file, using defaults", zap.String("path", path))
	default:
		return err
	}

	var nc *nats.Conn
	if natsURL := cli.String("nats"); natsURL != "" {
		nc, err = nats.Connect(natsURL,
			nats.Name("steamctl"),
		)
		if err != nil {
			return err
		}
		defer nc.Drain()
	}

	var factory steamctl.SinkFactory
	switch cli.String("sink") {
	case "uinput":
		factory = uinput.Factory
	case "nats":
		if nc == nil {
			return errors.New("nats sink requires a nats URL")
		}
		factory = steamctl.NATSSinkFactory(nc, "steamctl.events")
	default:
		return errors.New("sink not supported")
	}

	svc := steamctl.NewService(cfg, factory)
	svc = steamctl.LoggingMiddleware(log)(svc)
	defer svc.Close()

	if nc != nil {
		srv, err := micro.AddService(nc, micro.Config{
			Name:    "steamctl",
			Version: Version,
		})
		if err != nil {
			return err
		}
		defer srv.Stop()

		group := srv.AddGroup("steamctl")
		group.AddEndpoint("sessions", steamctl.SessionsHandler(svc))

		settings := group.AddGroup("settings")
		settings.AddEndpoint("get", steamctl.GetSettingHandler(svc))
		settings.AddEndpoint("set", steamctl.SetSettingHandler(svc))
	}

	if err := hid.Init(); err != nil {
		return err
	}
	defer hid.Exit()

	if err := steamctl.Rescan(svc); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go steamctl.Watch(ctx, svc, cli.Duration("scan-interval"))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sign := <-quit // Wait for a termination signal

	log.Info("graceful shutdown", zap.String("signal", sign.String()))
	return nil
}
