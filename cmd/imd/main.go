package main

import (
	"fmt"
	"os"

	"github.com/matheus3301/imcore/internal/daemon"
	"github.com/matheus3301/imcore/internal/profile"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
)

func main() {
	profileFlag := pflag.StringP("profile", "p", "", "profile name (overrides config default_profile)")
	baseDir := pflag.String("base-dir", "", "data directory (default ~/.imcore)")
	configPath := pflag.StringP("config", "c", "", "config file (default <base-dir>/config.toml)")
	socket := pflag.String("socket", "", "listen on this socket instead of the profile's")
	debug := pflag.Bool("debug", false, "log at debug level")
	pflag.Parse()

	if *profileFlag != "" {
		if err := profile.ValidateName(*profileFlag); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	app := fx.New(
		daemon.Module(daemon.Params{
			Profile:    *profileFlag,
			BaseDir:    *baseDir,
			ConfigPath: *configPath,
			SocketPath: *socket,
			Debug:      *debug,
		}),
	)

	app.Run()
}
