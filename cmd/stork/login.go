package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the legacy backend and migrate its data",
		RunE:  runLogin,
	}
	cmd.Flags().String("email", "", "Account email (prompted when empty)")
	return cmd
}

func runLogin(cmd *cobra.Command, _ []string) error {
	a, cleanup, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	in := bufio.NewReader(cmd.InOrStdin())
	email, err := emailFlagOrPrompt(cmd, in)
	if err != nil {
		return err
	}
	password, err := promptPassword(cmd, in)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if msg := a.Stages.AttemptLogIn(ctx, email, password); msg != "" {
		return errors.New(msg)
	}
	fmt.Fprintln(out, "✓ Signed in")

	if err := runMigration(ctx, out, noTUI(cmd), a); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Fprintf(out, "stage: %s\n", a.Stages.Stage())
	return nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out of the legacy backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cleanup, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := a.Migration.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Signed out")
			return nil
		},
	}
}

func newResetPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Send a legacy password reset email",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cleanup, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			email, err := emailFlagOrPrompt(cmd, bufio.NewReader(cmd.InOrStdin()))
			if err != nil {
				return err
			}
			if err := a.Migration.SendPasswordReset(cmd.Context(), email); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Reset link sent to %s\n", email)
			return nil
		},
	}
	cmd.Flags().String("email", "", "Account email (prompted when empty)")
	return cmd
}

func emailFlagOrPrompt(cmd *cobra.Command, in *bufio.Reader) (string, error) {
	email, err := cmd.Flags().GetString("email")
	if err != nil {
		return "", fmt.Errorf("failed to get email flag: %w", err)
	}
	if email != "" {
		return email, nil
	}

	fmt.Fprint(cmd.OutOrStdout(), "Email: ")
	input, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	email = strings.TrimSpace(input)
	if email == "" {
		return "", errors.New("email cannot be empty")
	}
	return email, nil
}

// promptPassword reads without echo from a terminal, or a plain line
// otherwise.
func promptPassword(cmd *cobra.Command, in *bufio.Reader) (string, error) {
	out := cmd.OutOrStdout()
	fmt.Fprint(out, "Password: ")
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	input, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(input, "\r\n"), nil
}
