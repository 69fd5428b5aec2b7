package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/fastygo/campus/domain"
	"github.com/fastygo/campus/internal/cookies"
	sessionUC "github.com/fastygo/campus/usecase/session"
)

func password(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv("CAMPUS_PASSWORD"); env != "" {
		return env, nil
	}
	return readSecret("Password: ")
}

func loginCmd(flags *globalFlags) *cobra.Command {
	var pass string

	cmd := &cobra.Command{
		Use:   "login <username|email>",
		Short: "Sign in",
		Long: `Sign in with a username or an email address. The password is taken from
--password, then CAMPUS_PASSWORD, then stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: run(flags, func(ctx context.Context, a *app, args []string) error {
			secret, err := password(pass)
			if err != nil {
				return err
			}
			snap, err := a.session.Login(ctx, args[0], secret)
			if err != nil {
				return err
			}
			if err := printSnapshot(flags, snap); err != nil {
				return err
			}
			if next := a.session.LastPage(ctx); next != "" && !flags.json {
				info("Continue at %s", next)
			}
			return nil
		}),
	}
	cmd.Flags().StringVarP(&pass, "password", "p", "", "account password")
	return cmd
}

func registerCmd(flags *globalFlags) *cobra.Command {
	var in sessionUC.RegisterInput

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: run(flags, func(ctx context.Context, a *app, _ []string) error {
			secret, err := password(in.Password)
			if err != nil {
				return err
			}
			in.Password = secret
			snap, err := a.session.Register(ctx, in)
			if err != nil {
				return err
			}
			return printSnapshot(flags, snap)
		}),
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "username")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVarP(&in.Password, "password", "p", "", "password")
	cmd.Flags().StringVar(&in.PasswordConfirm, "password-confirm", "", "password confirmation (defaults to --password)")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "last name")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the local session",
		RunE: run(flags, func(ctx context.Context, a *app, _ []string) error {
			snap := a.session.Logout(ctx)
			if flags.json {
				return printJSON(snap)
			}
			success("Signed out")
			return nil
		}),
	}
}

func statusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the cached session without contacting the backend",
		RunE: run(flags, func(_ context.Context, a *app, _ []string) error {
			return printSnapshot(flags, a.session.Snapshot())
		}),
	}
}

func checkCmd(flags *globalFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the session with the backend",
		RunE: run(flags, func(ctx context.Context, a *app, _ []string) error {
			snap := a.session.CheckAuth(ctx, force)
			if err := printSnapshot(flags, snap); err != nil {
				return err
			}
			printRedirects(flags, a)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&force, "force-redirect", false, "redirect to login when unauthenticated on a protected route")
	return cmd
}

func refreshCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Verify the session and rotate its token",
		RunE: run(flags, func(ctx context.Context, a *app, _ []string) error {
			if snap := a.session.CheckAuth(ctx, false); !snap.IsAuthenticated {
				return domain.ErrUnauthorized
			}
			if err := a.session.Refresh(ctx); err != nil {
				return err
			}
			return printSnapshot(flags, a.session.Snapshot())
		}),
	}
}

func probeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check whether cookies persist in this client",
		RunE: run(flags, func(ctx context.Context, a *app, _ []string) error {
			ok := cookies.Probe(ctx, a.jar, a.storage)
			if flags.json {
				return printJSON(map[string]bool{"cookies_persist": ok})
			}
			if ok {
				success("Cookies persist, cookie strategy available")
			} else {
				warn("Cookies do not persist, bearer fallback will be used")
			}
			return nil
		}),
	}
}

func navigateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "navigate <path>",
		Short: "Move to a route and re-verify the session like a page change",
		Args:  cobra.ExactArgs(1),
		RunE: run(flags, func(ctx context.Context, a *app, args []string) error {
			a.routes.Navigate(args[0])
			snap := a.session.OnRouteChange(ctx, args[0])
			if flags.json {
				return printJSON(map[string]any{"route": a.routes.Current(), "session": snap})
			}
			info("Route %s", a.routes.Current())
			printRedirects(flags, a)
			return printSnapshot(flags, snap)
		}),
	}
}
