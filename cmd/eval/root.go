package eval

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ValentinKolb/feval/cmd/util"
	"github.com/ValentinKolb/feval/lib/calc"
	"github.com/ValentinKolb/feval/rpc/client"
	"github.com/ValentinKolb/feval/rpc/common"
	"github.com/ValentinKolb/feval/rpc/transport/base"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// evaluator is satisfied by the remote client and the local calculator
type evaluator interface {
	Evaluate(statement string) (result string, ok bool, err error)
}

var (
	// EvalCmd evaluates statements on a server, or locally with --local
	EvalCmd = &cobra.Command{
		Use:   "eval [statement]",
		Short: "Evaluate statements",
		Long: `Evaluate a single statement given as arguments, or start a prompt reading one statement per line when no arguments are given.

Statements are arithmetic expressions (1 + 2 * 3, sqrt(2), max(1, 2)) or assignments (x = 2^10). Variables live on the server and are shared by all clients.`,
		PreRunE: setupEval,
		RunE:    run,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	util.SetupClientFlags(EvalCmd)

	key := "local"
	EvalCmd.Flags().Bool(key, false, util.WrapString("Evaluate in this process instead of connecting to a server"))

	EvalCmd.AddCommand(benchCmd)
}

// setupEval binds the flags of eval and its subcommands to viper
func setupEval(cmd *cobra.Command, _ []string) error {
	return util.BindCommandFlags(cmd)
}

func run(_ *cobra.Command, args []string) error {
	var ev evaluator
	var c *client.Client

	if viper.GetBool("local") {
		ev = calc.New()
	} else {
		var err error
		if c, err = connect(base.NewPools(0)); err != nil {
			return err
		}
		defer c.Close()
		ev = c
	}

	// one-shot mode
	if len(args) > 0 {
		result, ok, err := ev.Evaluate(strings.Join(args, " "))
		if err != nil {
			return err
		}
		if ok {
			fmt.Println(result)
		}
		return nil
	}

	return prompt(ev, c)
}

// connect creates a client from the flags and connects it. The pools are
// owned by the caller and may be shared by several clients.
func connect(pools *base.Pools) (*client.Client, error) {
	// client logs go to stderr, only warnings are of interest here
	if err := common.InitLoggers("warn"); err != nil {
		return nil, err
	}

	config, err := util.GetClientConfig()
	if err != nil {
		return nil, err
	}
	t, err := client.NewTransport(config.Transport, pools)
	if err != nil {
		return nil, err
	}

	c := client.NewClient(*config, t)
	if err := c.Connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// --------------------------------------------------------------------------
// Prompt
// --------------------------------------------------------------------------

// prompt reads statements until EOF or "exit". c is nil in local mode, else
// the prompt reconnects after the server went away.
func prompt(ev evaluator, c *client.Client) error {
	read := lineReader()

	if c != nil {
		pterm.Info.Printfln("connected to %s, type exit to quit", viper.GetString("endpoint"))
	} else {
		pterm.Info.Println("local mode, type exit to quit")
	}

	for {
		line, err := read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "exit" || line == "quit" {
			return nil
		}
		if line == "" {
			continue
		}

		if c != nil && !c.Connected() {
			drainEvents(c)
			pterm.Warning.Println("not connected, reconnecting...")
			if err := c.Connect(); err != nil {
				pterm.Error.Println(err.Error())
				continue
			}
		}

		result, ok, err := ev.Evaluate(line)
		switch {
		case err != nil:
			pterm.Error.Println(err.Error())
		case ok:
			pterm.Println(result)
		}
	}
}

// drainEvents reports the state changes the prompt missed
func drainEvents(c *client.Client) {
	for {
		select {
		case e := <-c.Events():
			if e.Kind == client.EventDisconnected && e.Err != nil {
				pterm.Warning.Printfln("disconnected: %v", e.Err)
			}
		default:
			return
		}
	}
}

// lineReader uses the interactive pterm input on terminals and plain line
// reads otherwise (pipes, files)
func lineReader() func() (string, error) {
	if info, err := os.Stdin.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
		return func() (string, error) {
			return pterm.DefaultInteractiveTextInput.WithDefaultText("feval").Show()
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	return func() (string, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return scanner.Text(), nil
	}
}
