package cli

import (
	"flag"
	"fmt"
)

func newRenderCommand() *Command {
	cmd := &Command{
		Name:        "render",
		Description: "Print the statement built from flags without running it",
		Flags:       flag.NewFlagSet("render", flag.ContinueOnError),
	}
	bf := registerBuilderFlags(cmd.Flags)

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		q, err := bf.build(nil)
		if err != nil {
			return err
		}

		fmt.Fprintln(output, q.Render())
		return nil
	}
	return cmd
}
