package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/ghdevice/internal/auth"
	"github.com/florianilch/ghdevice/internal/credstore"
	"github.com/florianilch/ghdevice/internal/deviceflow"
)

func authCommand() *cli.Command {
	jsonFlag := &cli.BoolFlag{
		Name:  "json",
		Usage: "print JSON even on a terminal",
	}

	return &cli.Command{
		Name:  "auth",
		Usage: "manage the GitHub connection",
		Flags: []cli.Flag{jsonFlag},
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "validate the stored credential against GitHub",
				Action: statusAction,
			},
			{
				Name:   "start",
				Usage:  "request a device and user code",
				Action: startAction,
			},
			{
				Name:      "complete",
				Usage:     "make one token exchange attempt for a device code",
				ArgsUsage: "<device-code>",
				Action:    completeAction,
			},
			{
				Name:   "login",
				Usage:  "run the whole device flow and wait for authorization",
				Action: loginAction,
			},
			{
				Name:   "disconnect",
				Usage:  "forget the stored credential",
				Action: disconnectAction,
			},
			{
				Name:   "whoami",
				Usage:  "print the connected GitHub user",
				Action: whoamiAction,
			},
		},
	}
}

func statusAction(ctx context.Context, cmd *cli.Command) error {
	_, application, shutdown, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	status, err := application.Service().Status(ctx)
	if err != nil {
		return err
	}

	return render(cmd, status, func(w io.Writer) {
		if !status.Connected {
			fmt.Fprintln(w, "Not connected to GitHub")
			return
		}
		fmt.Fprintf(w, "Connected to GitHub as %s\n", describeUser(status.User))
		if status.Scope != "" {
			fmt.Fprintf(w, "Scopes: %s\n", status.Scope)
		}
	})
}

func startAction(ctx context.Context, cmd *cli.Command) error {
	_, application, shutdown, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	start, err := application.Service().Start(ctx)
	if err != nil {
		return err
	}

	return render(cmd, start, func(w io.Writer) {
		printInstructions(w, start)
		fmt.Fprintf(w, "Device code: %s\n", start.DeviceCode)
		fmt.Fprintf(w, "Then run: ghdevice auth complete %s\n", start.DeviceCode)
	})
}

func completeAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one device code argument, got %d", cmd.Args().Len())
	}

	_, application, shutdown, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	res, err := application.Service().Complete(ctx, cmd.Args().First())
	if err != nil {
		return err
	}

	return render(cmd, res, func(w io.Writer) {
		printResult(w, res)
	})
}

func loginAction(ctx context.Context, cmd *cli.Command) error {
	cfg, application, shutdown, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	if err := cfg.ValidateLogin(); err != nil {
		return err
	}

	svc := application.Service()
	start, err := svc.Start(ctx)
	if err != nil {
		return err
	}

	// Instructions go to stderr so stdout stays machine readable
	printInstructions(errWriter(cmd), start)

	res, err := svc.AwaitAuthorization(ctx, start,
		auth.WithPendingHook(func(res deviceflow.Result, next time.Duration) {
			slog.DebugContext(ctx, "authorization pending", "status", res.Status, "next_attempt_in", next)
		}),
	)
	if err != nil {
		return err
	}

	return render(cmd, res, func(w io.Writer) {
		printResult(w, res)
	})
}

func disconnectAction(ctx context.Context, cmd *cli.Command) error {
	_, application, shutdown, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	res := application.Service().Disconnect(ctx)

	if err := render(cmd, res, func(w io.Writer) {
		if res.Removed {
			fmt.Fprintln(w, "Disconnected from GitHub")
		} else {
			fmt.Fprintln(w, "Could not remove the stored credential")
		}
	}); err != nil {
		return err
	}
	if !res.Removed {
		return errors.New("stored credential could not be removed")
	}
	return nil
}

func whoamiAction(ctx context.Context, cmd *cli.Command) error {
	_, application, shutdown, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	user, err := application.Service().Whoami(ctx)
	if err != nil {
		return err
	}

	return render(cmd, user, func(w io.Writer) {
		fmt.Fprintln(w, describeUser(&user))
	})
}

func printInstructions(w io.Writer, start deviceflow.Start) {
	uri := start.VerificationURI
	if start.VerificationURIComplete != "" {
		uri = start.VerificationURIComplete
	}
	fmt.Fprintf(w, "Open %s and enter the code %s\n", uri, start.UserCode)
	if start.ExpiresIn > 0 {
		fmt.Fprintf(w, "The code expires in %s\n", time.Duration(start.ExpiresIn)*time.Second)
	}
}

func printResult(w io.Writer, res deviceflow.Result) {
	if res.IsPending() {
		fmt.Fprintf(w, "Still waiting (%s): %s\n", res.Status, res.Error)
		return
	}
	fmt.Fprintf(w, "Connected to GitHub as %s\n", describeUser(res.User))
}

func describeUser(user *credstore.User) string {
	if user == nil {
		return "unknown user"
	}
	s := user.Login
	if user.Name != "" {
		s += " (" + user.Name + ")"
	}
	if user.Email != "" {
		s += " <" + user.Email + ">"
	}
	return s
}
