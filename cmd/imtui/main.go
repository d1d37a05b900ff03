package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/matheus3301/imcore/internal/profile"
	"github.com/matheus3301/imcore/internal/tui"
	"github.com/matheus3301/imcore/internal/tui/client"
	"github.com/spf13/pflag"
)

func main() {
	profileFlag := pflag.StringP("profile", "p", "", "profile name (overrides config default_profile)")
	baseDir := pflag.String("base-dir", "", "data directory (default ~/.imcore)")
	noStart := pflag.Bool("no-start", false, "do not start imd when it is not running")
	pflag.Parse()

	prof, err := profile.Find(*profileFlag, *baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	socketPath := prof.SocketPath()

	// Probe daemon health; auto-start if needed.
	if !probeDaemon(socketPath) {
		if *noStart {
			fmt.Fprintf(os.Stderr, "daemon not running for profile %q\n", prof.Name)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "daemon not running for profile %q, starting...\n", prof.Name)
		if err := startDaemon(prof.Name, *baseDir); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start daemon: %v\n", err)
			os.Exit(1)
		}
		if !waitForDaemon(socketPath, 10*time.Second) {
			fmt.Fprintf(os.Stderr, "daemon did not become ready\n")
			os.Exit(1)
		}
	}

	c, err := client.New(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to daemon: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	app := tui.NewApp(c, prof.Name)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// probeDaemon reports whether a daemon answers Status on the socket.
func probeDaemon(socketPath string) bool {
	if _, err := os.Stat(socketPath); err != nil {
		return false
	}
	c, err := client.New(socketPath)
	if err != nil {
		return false
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = c.Core.Status(ctx)
	return err == nil
}

func startDaemon(profileName, baseDir string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	imd := filepath.Join(filepath.Dir(executable), "imd")
	if _, err := os.Stat(imd); err != nil {
		imd = "imd"
	}

	args := []string{"--profile", profileName}
	if baseDir != "" {
		args = append(args, "--base-dir", baseDir)
	}
	cmd := exec.Command(imd, args...)
	// Inherit stderr so daemon startup errors are visible.
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

func waitForDaemon(socketPath string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if probeDaemon(socketPath) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}
