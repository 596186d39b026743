// Command gymctl books gym classes from the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"example.com/gymbooking/internal/config"
	"example.com/gymbooking/internal/domain"
)

const usage = `usage: gymctl [-o text|json|yaml] [-v] <command> [flags]

commands:
  login            -email -password
  register         -email -password -confirm
  verify-otp       -code
  forgot-password  -email
  reset-password   -password [-code]
  unlock           biometric unlock of the stored session
  logout
  status
  classes          [-location] [-discipline] [-date YYYY-MM-DD] [-pages N]
  class            <id>
  reserve          <classID>
  cancel           <reservationID>
  history          [-from YYYY-MM-DD] [-to YYYY-MM-DD]
  profile
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, config.Load(), os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, domain.UserMessage(err))
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("gymctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	format := global.String("o", "text", "output format: text, json or yaml")
	verbose := global.Bool("v", false, "log requests and transitions to stderr")
	if err := global.Parse(args); err != nil {
		return errUsage
	}
	if global.NArg() == 0 {
		global.Usage()
		return errUsage
	}

	out, err := newPrinter(*format, stdout)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return errUsage
	}

	cmd, ok := commands[global.Arg(0)]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", global.Arg(0))
		global.Usage()
		return errUsage
	}

	a, err := newApp(ctx, cfg, out, stderr, *verbose)
	if err != nil {
		return err
	}
	defer a.Close()
	return cmd(ctx, a, global.Args()[1:])
}
