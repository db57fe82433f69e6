package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/platinummonkey/sphinxql/pkg/sphinxql"
)

type queryOutput struct {
	Statement string `json:"statement"`
	*sphinxql.ResultSet
}

func newQueryCommand() *Command {
	cmd := &Command{
		Name:        "query",
		Description: "Build a statement from flags, run it and print the rows as JSON",
		Flags:       flag.NewFlagSet("query", flag.ContinueOnError),
	}
	bf := registerBuilderFlags(cmd.Flags)
	cf := registerConnFlags(cmd.Flags)
	pretty := cmd.Flags.Bool("pretty", false, "Indent JSON output")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		// validate before dialing
		if _, err := bf.build(nil); err != nil {
			return err
		}

		cl, closer, err := cf.connect()
		if err != nil {
			return err
		}
		defer closer.Close()

		q, err := bf.build(cl)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		rs, err := q.Execute(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(output)
		if *pretty {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(queryOutput{Statement: q.Render(), ResultSet: rs})
	}
	return cmd
}

func newExecCommand() *Command {
	cmd := &Command{
		Name:        "exec",
		Description: "Run a raw statement on the primary, e.g. FLUSH RTINDEX products",
		Flags:       flag.NewFlagSet("exec", flag.ContinueOnError),
	}
	cf := registerConnFlags(cmd.Flags)

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		statement := strings.TrimSpace(strings.Join(cmd.Flags.Args(), " "))
		if statement == "" {
			return fmt.Errorf("statement is required")
		}

		cl, closer, err := cf.connect()
		if err != nil {
			return err
		}
		defer closer.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		affected, err := cl.Exec(ctx, statement)
		if err != nil {
			return err
		}

		fmt.Fprintf(output, "%d rows affected\n", affected)
		return nil
	}
	return cmd
}
