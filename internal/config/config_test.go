package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lbConfig = `
controller:
  stats_interval: 1s
load_balancer:
  enabled: true
  virtual_ip: 10.0.0.100
  virtual_mac: "00:00:00:00:00:fe"
  backends:
    - {ip: 10.0.0.2, mac: "00:00:00:00:00:02", port: 2}
    - {ip: 10.0.0.3, mac: "00:00:00:00:00:03", port: 3}
mitigation:
  enabled: true
  mode: l3
`

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(lbConfig), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "1s", cfg.Controller.StatsInterval)
	assert.Len(t, cfg.LoadBalancer.Backends, 2)
	assert.Equal(t, "l3", cfg.Mitigation.Mode)
	// Defaults survive a partial file.
	assert.Equal(t, 5.0, cfg.Mitigation.MinPacketRate)
	assert.Equal(t, "threshold", cfg.Classifier.Type)
	assert.Equal(t, "sdn", cfg.Channel.SubjectPrefix)
}

func TestLoadConfig_ShippedFile(t *testing.T) {
	cfg, err := LoadConfig("../../configs/config.yaml")
	require.NoError(t, err)
	assert.True(t, cfg.LoadBalancer.Enabled)
	assert.Equal(t, "10.0.0.100", cfg.LoadBalancer.VirtualIP)
	assert.Len(t, cfg.LoadBalancer.Backends, 3)
	assert.Equal(t, "2s", cfg.Controller.StatsInterval)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_LoadBalancerErrors(t *testing.T) {
	_, err := Parse([]byte("load_balancer: {enabled: true}"))
	assert.ErrorIs(t, err, ErrNoVirtualService)

	_, err = Parse([]byte(`
load_balancer:
  enabled: true
  virtual_ip: 10.0.0.100
  virtual_mac: "00:00:00:00:00:fe"
`))
	assert.ErrorIs(t, err, ErrNoBackends)

	_, err = Parse([]byte(`
load_balancer:
  enabled: true
  virtual_ip: not-an-ip
  virtual_mac: "00:00:00:00:00:fe"
  backends: [{ip: 10.0.0.2, mac: "00:00:00:00:00:02", port: 2}]
`))
	assert.Error(t, err)
}

func TestValidate_DisabledLoadBalancerIgnoresService(t *testing.T) {
	cfg, err := Parse([]byte("load_balancer: {enabled: false}"))
	require.NoError(t, err)
	assert.False(t, cfg.LoadBalancer.Enabled)
}

func TestValidate_Mitigation(t *testing.T) {
	_, err := Parse([]byte("mitigation: {enabled: true, mode: l4}"))
	assert.Error(t, err)

	_, err = Parse([]byte("mitigation: {enabled: true}\nclassifier: {type: tree}"))
	assert.Error(t, err, "tree classifier needs a model path")

	_, err = Parse([]byte("mitigation: {enabled: true}\nclassifier: {type: remote}"))
	assert.Error(t, err, "remote classifier needs an address")

	_, err = Parse([]byte("controller: {stats_interval: 0s}"))
	assert.Error(t, err)
}
