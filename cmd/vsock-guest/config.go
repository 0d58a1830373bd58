package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/vsockguest/internal/guest"
	"github.com/danmuck/vsockguest/internal/transport"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk TOML schema. Only keys present in the file
// override defaults.
type fileConfig struct {
	Transport              string `toml:"transport"`
	VsockCID               uint32 `toml:"vsock_cid"`
	VsockPort              uint32 `toml:"vsock_port"`
	UnixSocket             string `toml:"unix_socket"`
	ConnectTimeout         string `toml:"connect_timeout"`
	ReadBufferSize         int    `toml:"read_buffer_size"`
	WriteTimeout           string `toml:"write_timeout"`
	Shell                  string `toml:"shell"`
	SudoCommand            string `toml:"sudo_command"`
	PrivilegedWriteTimeout string `toml:"privileged_write_timeout"`
	ExecWaitDelay          string `toml:"exec_wait_delay"`
}

// overlay holds the keys a config file actually set.
type overlay struct {
	Transport              *string `yaml:"transport"`
	VsockCID               *uint32 `yaml:"vsock_cid"`
	VsockPort              *uint32 `yaml:"vsock_port"`
	UnixSocket             *string `yaml:"unix_socket"`
	ConnectTimeout         *string `yaml:"connect_timeout"`
	ReadBufferSize         *int    `yaml:"read_buffer_size"`
	WriteTimeout           *string `yaml:"write_timeout"`
	Shell                  *string `yaml:"shell"`
	SudoCommand            *string `yaml:"sudo_command"`
	PrivilegedWriteTimeout *string `yaml:"privileged_write_timeout"`
	ExecWaitDelay          *string `yaml:"exec_wait_delay"`
}

func loadServiceConfig(path string) (guest.ServiceConfig, error) {
	var (
		ov  overlay
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		ov, err = readYAML(path)
	default:
		ov, err = readTOML(path)
	}
	if err != nil {
		return guest.ServiceConfig{}, err
	}
	cfg := guest.DefaultServiceConfig()
	if err := ov.apply(&cfg); err != nil {
		return guest.ServiceConfig{}, err
	}
	return cfg, nil
}

func readTOML(path string) (overlay, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return overlay{}, fmt.Errorf("load guest config: %w", err)
	}

	var ov overlay
	if meta.IsDefined("transport") {
		ov.Transport = &raw.Transport
	}
	if meta.IsDefined("vsock_cid") {
		ov.VsockCID = &raw.VsockCID
	}
	if meta.IsDefined("vsock_port") {
		ov.VsockPort = &raw.VsockPort
	}
	if meta.IsDefined("unix_socket") {
		ov.UnixSocket = &raw.UnixSocket
	}
	if meta.IsDefined("connect_timeout") {
		ov.ConnectTimeout = &raw.ConnectTimeout
	}
	if meta.IsDefined("read_buffer_size") {
		ov.ReadBufferSize = &raw.ReadBufferSize
	}
	if meta.IsDefined("write_timeout") {
		ov.WriteTimeout = &raw.WriteTimeout
	}
	if meta.IsDefined("shell") {
		ov.Shell = &raw.Shell
	}
	if meta.IsDefined("sudo_command") {
		ov.SudoCommand = &raw.SudoCommand
	}
	if meta.IsDefined("privileged_write_timeout") {
		ov.PrivilegedWriteTimeout = &raw.PrivilegedWriteTimeout
	}
	if meta.IsDefined("exec_wait_delay") {
		ov.ExecWaitDelay = &raw.ExecWaitDelay
	}
	return ov, nil
}

func readYAML(path string) (overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return overlay{}, fmt.Errorf("load guest config: %w", err)
	}
	var ov overlay
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return overlay{}, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return ov, nil
}

func (ov overlay) apply(cfg *guest.ServiceConfig) error {
	if ov.Transport != nil {
		cfg.Transport.Mode = transport.Mode(strings.TrimSpace(*ov.Transport))
	}
	if ov.VsockCID != nil {
		cfg.Transport.CID = *ov.VsockCID
	}
	if ov.VsockPort != nil {
		cfg.Transport.Port = *ov.VsockPort
	}
	if ov.UnixSocket != nil {
		cfg.Transport.UnixSocket = strings.TrimSpace(*ov.UnixSocket)
		if cfg.Transport.UnixSocket != "" && ov.Transport == nil {
			cfg.Transport.Mode = transport.ModeUnix
		}
	}
	if err := parseDuration("connect_timeout", ov.ConnectTimeout, &cfg.Transport.ConnectTimeout); err != nil {
		return err
	}
	if ov.ReadBufferSize != nil {
		if *ov.ReadBufferSize <= 0 {
			return fmt.Errorf("read_buffer_size must be positive: %d", *ov.ReadBufferSize)
		}
		cfg.Session.ReadBufferSize = *ov.ReadBufferSize
	}
	if err := parseDuration("write_timeout", ov.WriteTimeout, &cfg.Session.WriteTimeout); err != nil {
		return err
	}
	if ov.Shell != nil {
		cfg.Tools.Shell = strings.TrimSpace(*ov.Shell)
	}
	if ov.SudoCommand != nil {
		cfg.Tools.SudoCommand = strings.TrimSpace(*ov.SudoCommand)
	}
	if err := parseDuration("privileged_write_timeout", ov.PrivilegedWriteTimeout, &cfg.Tools.PrivilegedWriteTimeout); err != nil {
		return err
	}
	return parseDuration("exec_wait_delay", ov.ExecWaitDelay, &cfg.Tools.ExecWaitDelay)
}

func parseDuration(key string, raw *string, dst *time.Duration) error {
	if raw == nil {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(*raw))
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = d
	return nil
}
