// Command client simulates a fleet of Eagle gateways pushing telemetry
// uploads to the exporter. Development and load-testing tool.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
)

type options struct {
	URL      string        `long:"url" env:"EAGLE_SIM_URL" default:"http://localhost:8080/" description:"exporter ingest endpoint"`
	Devices  int           `long:"devices" env:"EAGLE_SIM_DEVICES" default:"3" description:"number of simulated gateways"`
	Interval time.Duration `long:"interval" env:"EAGLE_SIM_INTERVAL" default:"10s" description:"upload interval per gateway"`
	Debug    bool          `short:"d" long:"debug" description:"debug mode"`
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     100 * time.Second,
		},
	}
}

func main() {
	var opt options
	parser := flags.NewParser(&opt, flags.Default)
	parser.Name = "eagle-sim"
	if _, err := parser.ParseArgs(os.Args[1:]); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	level := slog.LevelInfo
	if opt.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := newHTTPClient(30 * time.Second)

	uploaders := make([]*Uploader, 0, opt.Devices)
	for i := 0; i < opt.Devices; i++ {
		uploaders = append(uploaders, NewUploader(client, newSimDevice(i), opt.URL))
	}

	slog.Info("simulation started",
		slog.Int("devices", opt.Devices),
		slog.Duration("interval", opt.Interval),
		slog.String("url", opt.URL),
	)

	ticker := time.NewTicker(opt.Interval)
	defer ticker.Stop()

	for {
		for _, u := range uploaders {
			if err := u.sendNext(ctx); err != nil {
				slog.Error("upload error", slog.Any("error", err))
			}
		}
		select {
		case <-ctx.Done():
			slog.Info("shutdown complete")
			return
		case <-ticker.C:
		}
	}
}
