package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vita-chat/internal/model"
	"vita-chat/internal/transport"
)

func (a *app) signinCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in to your account",
		Long: `Sign in and store the session for later commands. The password is read
from stdin when --password is not given.

Examples:
  vita signin --email ana@example.org
  echo "$PW" | vita signin --email ana@example.org`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				fmt.Fprint(a.out, "Password: ")
				line, err := a.readLine()
				if err != nil {
					return err
				}
				password = line
			}

			sess, err := a.svc.Auth.SignIn(cmd.Context(), email, password)
			if err != nil {
				// a 401 here means bad credentials, not an expired session
				return errors.New("sign in failed: " + transport.Message(err))
			}
			fmt.Fprintf(a.out, "%s Signed in as %s <%s> (%s)\n", okStyle("✓"), sess.Name, sess.Email, sess.UserRole)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) signupCmd() *cobra.Command {
	var req model.SignUpRequest
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Long: `Create an account. A verification link is sent to the email address;
pass its token to "vita verify" before signing in.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.Password == "" {
				fmt.Fprint(a.out, "Password: ")
				line, err := a.readLine()
				if err != nil {
					return err
				}
				req.Password = line
			}
			msg, err := a.svc.Auth.SignUp(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s\n", okStyle("✓"), msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&req.Email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token>",
		Short: "Verify your email address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := a.svc.Auth.Verify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s\n", okStyle("✓"), msg)
			return nil
		},
	}
}

func (a *app) signoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.signingOut = true
			if err := a.svc.Auth.SignOut(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Signed out.")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess := a.svc.Auth.Current()
			if !sess.Authenticated() {
				return transport.ErrUnauthenticated
			}
			fmt.Fprintf(a.out, "%s <%s>\n", titleStyle(sess.Name), sess.Email)
			fmt.Fprintf(a.out, "role: %s\nid:   %s\n", sess.UserRole, sess.UserID)
			return nil
		},
	}
}

func (a *app) requireAdmin() error {
	if !a.svc.Auth.Current().Authenticated() {
		return transport.ErrUnauthenticated
	}
	if !a.svc.Auth.Current().IsAdmin() {
		return errors.New("this command needs an admin account")
	}
	return nil
}

// readLine reads one line from the command's input. The reader is kept so
// successive prompts share its buffer.
func (a *app) readLine() (string, error) {
	if a.lines == nil {
		a.lines = bufio.NewScanner(a.in)
	}
	if !a.lines.Scan() {
		if err := a.lines.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no input")
	}
	return strings.TrimRight(a.lines.Text(), "\r"), nil
}
