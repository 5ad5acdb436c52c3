package main

import (
	"context"
	"io"
	"os"

	"dirmon/internal/cli"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, out io.Writer, errOut io.Writer) int {
	root := cli.NewRootCommand(cli.Commands{
		Serve:  runServe,
		Client: runClient,
	}, stdin, out, errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return cli.ExitCode(err, errOut)
}
