// Package login implements the login and logout subcommands.
package login

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"jaildash/internal/cmd/app"
	"jaildash/internal/jailapi"
	"jaildash/internal/textview"
)

func Command(opt *app.Options) *cobra.Command {
	var (
		username      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.Open(opt, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			in := bufio.NewReader(cmd.InOrStdin())
			if username == "" {
				fmt.Fprint(out, "Username: ")
				if username, err = readLine(in); err != nil {
					return err
				}
			}
			password, err := readPassword(cmd, in, passwordStdin)
			if err != nil {
				return err
			}

			view := textview.New(out, cmd.ErrOrStderr(), 0)
			guard, _ := a.Session(view, view)
			defer guard.Stop()
			if err := guard.Login(cmd.Context(), strings.TrimSpace(username), password); err != nil {
				return fmt.Errorf("login failed: %s", jailapi.Message(err))
			}
			fmt.Fprintf(out, "Logged in to %s\n", a.Config.Server.Addr)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted when empty)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func LogoutCommand(opt *app.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.Open(opt, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			view := textview.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), 0)
			guard, _ := a.Session(view, view)
			guard.Logout()
			return nil
		},
	}
}

// readPassword prompts without echo on a terminal and reads a plain line
// otherwise.
func readPassword(cmd *cobra.Command, in *bufio.Reader, fromStdin bool) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && !fromStdin && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return readLine(in)
}

func readLine(in *bufio.Reader) (string, error) {
	s, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}
