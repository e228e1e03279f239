package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/tidwall/gjson"
	yaml "gopkg.in/yaml.v2"
)

// Option defines command line options and their environment fallbacks.
type Option struct {
	Port             string        `long:"port" env:"PORT" default:"8080" description:"port to listen on"`
	Exporter         string        `long:"exporter" env:"EAGLE_EXPORTER" default:"otlp" choice:"otlp" choice:"prometheus" description:"metrics export backend"`
	OTLPEndpoint     string        `long:"otlp-endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" description:"host:port of the OTLP collector (default localhost:4318)"`
	OTLPInsecure     bool          `long:"otlp-insecure" env:"OTEL_EXPORTER_OTLP_INSECURE" description:"use plain HTTP for OTLP export"`
	ExportInterval   time.Duration `long:"export-interval" env:"EAGLE_EXPORT_INTERVAL" default:"1s" description:"OTLP metric export interval"`
	DeviceLabels     string        `long:"device-labels" env:"DEVICE_LABELS" description:"inline JSON mapping device MAC to extra labels"`
	DeviceLabelsFile string        `long:"device-labels-file" env:"DEVICE_LABELS_FILE" description:"YAML file mapping device MAC to extra labels"`
	LogFormat        string        `long:"log-format" env:"LOG_FORMAT" default:"json" choice:"json" choice:"terminal" description:"log output format"`
	Debug            bool          `short:"d" long:"debug" env:"DEBUG" description:"debug mode"`
	Version          bool          `short:"v" long:"version" description:"display the version and exit"`
}

// parseOptions returns parsed command-line flags in an Option struct.
func parseOptions(args []string) (*Option, error) {
	opt := &Option{}
	parser := flags.NewParser(opt, flags.Default)
	parser.Name = "eagle-exporter"
	parser.Usage = "[OPTIONS]"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	return opt, nil
}

func isHelp(err error) bool {
	return flags.WroteHelp(err)
}

// loadDeviceLabels builds the per-device label overrides applied at
// first-sight registry entry creation. The YAML file and the inline JSON
// variable may both be set; inline entries win per device. The legacy
// PROMETHEUS_OPT_LABELS variable is honored when DEVICE_LABELS is unset.
func loadDeviceLabels(opt *Option) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string)

	if opt.DeviceLabelsFile != "" {
		data, err := os.ReadFile(opt.DeviceLabelsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read device labels file: %w", err)
		}
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("failed to parse device labels file %s: %w", opt.DeviceLabelsFile, err)
		}
		if out == nil {
			out = make(map[string]map[string]string)
		}
	}

	inline := opt.DeviceLabels
	if inline == "" {
		inline = os.Getenv("PROMETHEUS_OPT_LABELS")
	}
	if inline != "" {
		if !gjson.Valid(inline) {
			return nil, fmt.Errorf("device labels value is not valid JSON: %q", inline)
		}
		gjson.Parse(inline).ForEach(func(device, labels gjson.Result) bool {
			m := out[device.String()]
			if m == nil {
				m = make(map[string]string)
			}
			labels.ForEach(func(key, value gjson.Result) bool {
				m[key.String()] = value.String()
				return true
			})
			out[device.String()] = m
			return true
		})
	}

	return out, nil
}
