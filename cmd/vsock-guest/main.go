// Command vsock-guest is the in-VM agent: it connects to the host over
// vsock (or a unix socket for testing), announces ready and serves exec and
// write_file requests until the host disconnects.
package main

import (
	"fmt"
	"os"

	"github.com/danmuck/vsockguest/internal/guest"
	"github.com/danmuck/vsockguest/internal/logging"
	"github.com/danmuck/vsockguest/internal/transport"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "vsock-guest",
		Usage: "Vsock agent for Firecracker VM",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "TOML or YAML config file",
				EnvVars: []string{"VSOCK_GUEST_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "unix-socket",
				Usage: "connect to a unix domain socket instead of vsock (for testing)",
			},
			&cli.UintFlag{
				Name:  "cid",
				Usage: "vsock context id of the host",
				Value: uint(transport.DefaultCID),
			},
			&cli.UintFlag{
				Name:  "port",
				Usage: "vsock port on the host",
				Value: uint(transport.DefaultPort),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "trace|debug|info|warn|error|off",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logging.ConfigureRuntime()
	if lvl := c.String("log-level"); lvl != "" && !logging.SetLevel(lvl) {
		return fmt.Errorf("unknown log level %q", lvl)
	}

	cfg := guest.DefaultServiceConfig()
	if path := c.String("config"); path != "" {
		loaded, err := loadServiceConfig(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	applyFlags(c, &cfg)

	log.Info().Str("target", cfg.Transport.Target()).Msg("starting vsock agent")
	return guest.NewServiceWithConfig(cfg).Run()
}

// applyFlags lets explicit flags win over file values.
func applyFlags(c *cli.Context, cfg *guest.ServiceConfig) {
	if c.IsSet("cid") {
		cfg.Transport.CID = uint32(c.Uint("cid"))
	}
	if c.IsSet("port") {
		cfg.Transport.Port = uint32(c.Uint("port"))
	}
	if c.IsSet("unix-socket") {
		cfg.Transport.Mode = transport.ModeUnix
		cfg.Transport.UnixSocket = c.String("unix-socket")
	}
}
