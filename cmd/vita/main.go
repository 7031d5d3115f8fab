// Command vita is a terminal client for the Vita health assistant.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"vita-chat/internal/config"
	"vita-chat/internal/service"
	"vita-chat/pkg/logger"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %s", describe(err)))
		os.Exit(1)
	}
}

// app is the state shared by every command of one invocation.
type app struct {
	configPath string
	verbose    bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer
	lines  *bufio.Scanner

	cfg *config.Config
	svc *service.Services

	// signingOut silences the session-ended notice for an explicit signout.
	signingOut bool
}

func run(args []string, in io.Reader, out, errOut io.Writer) error {
	a := &app{in: in, out: out, errOut: errOut}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.Execute()
	if a.svc != nil {
		if cerr := a.svc.Close(); cerr != nil {
			logger.Warnf("failed to close session store: %v", cerr)
		}
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "vita",
		Short: "Terminal client for the Vita health assistant",
		Long: `vita talks to the Vita API: sign in, chat with the assistant and watch
its replies stream in, browse your conversation history, and (for admins)
manage the medical entries the assistant cites.

Examples:
  # Sign in and start a new conversation
  vita signin --email ana@example.org
  vita chat --new

  # Continue a conversation
  vita conversations list
  vita chat 3f2c...`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath(), "config file path")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		a.signinCmd(),
		a.signupCmd(),
		a.verifyCmd(),
		a.signoutCmd(),
		a.whoamiCmd(),
		a.chatCmd(),
		a.conversationsCmd(),
		a.entriesCmd(),
		a.profileCmd(),
	)
	return root
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "vita", "config.yaml")
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	if a.verbose {
		level = "debug"
	} else if level == "" || level == "info" {
		level = "warn"
	}
	if err := logger.Init(level, cfg.Log.Format); err != nil {
		return err
	}
	logger.SetOutput(a.errOut)

	if cfg.Session.StorePath == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			cfg.Session.StorePath = filepath.Join(dir, "vita", "session.db")
		}
	}

	svc, err := service.New(cfg)
	if err != nil {
		return err
	}
	svc.Session.OnCleared(func() {
		if !a.signingOut {
			fmt.Fprintln(a.errOut, warnStyle("Your session has ended. Run `vita signin` to continue."))
		}
	})

	a.cfg = cfg
	a.svc = svc
	return nil
}
