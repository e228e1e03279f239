package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptionsDefaults(t *testing.T) {
	opt, err := parseOptions(nil)
	require.NoError(t, err)

	assert.Equal(t, "8080", opt.Port)
	assert.Equal(t, "otlp", opt.Exporter)
	assert.Equal(t, "json", opt.LogFormat)
}

func TestLoadDeviceLabelsInlineJSON(t *testing.T) {
	opt := &Option{DeviceLabels: `{"0x1": {"site": "garage"}, "0x2": {"site": "attic", "tariff": "tou"}}`}

	labels, err := loadDeviceLabels(opt)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"site": "garage"}, labels["0x1"])
	assert.Equal(t, map[string]string{"site": "attic", "tariff": "tou"}, labels["0x2"])
}

func TestLoadDeviceLabelsInvalidJSON(t *testing.T) {
	opt := &Option{DeviceLabels: `{"0x1": `}
	_, err := loadDeviceLabels(opt)
	assert.Error(t, err)
}

func TestLoadDeviceLabelsYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
"0x1":
  site: garage
"0x2":
  site: attic
`), 0o644))

	opt := &Option{DeviceLabelsFile: path}
	labels, err := loadDeviceLabels(opt)
	require.NoError(t, err)
	assert.Equal(t, "garage", labels["0x1"]["site"])
	assert.Equal(t, "attic", labels["0x2"]["site"])
}

func TestLoadDeviceLabelsInlineWinsPerDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
"0x1":
  site: garage
`), 0o644))

	opt := &Option{
		DeviceLabelsFile: path,
		DeviceLabels:     `{"0x1": {"site": "basement"}}`,
	}
	labels, err := loadDeviceLabels(opt)
	require.NoError(t, err)
	assert.Equal(t, "basement", labels["0x1"]["site"])
}

func TestLoadDeviceLabelsLegacyEnv(t *testing.T) {
	t.Setenv("PROMETHEUS_OPT_LABELS", `{"0x1": {"site": "garage"}}`)

	labels, err := loadDeviceLabels(&Option{})
	require.NoError(t, err)
	assert.Equal(t, "garage", labels["0x1"]["site"])
}

func TestLoadDeviceLabelsMissingFile(t *testing.T) {
	opt := &Option{DeviceLabelsFile: filepath.Join(t.TempDir(), "nope.yaml")}
	_, err := loadDeviceLabels(opt)
	assert.Error(t, err)
}

func TestLoadDeviceLabelsEmpty(t *testing.T) {
	labels, err := loadDeviceLabels(&Option{})
	require.NoError(t, err)
	assert.Empty(t, labels)
}
