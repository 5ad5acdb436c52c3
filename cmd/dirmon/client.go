package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"dirmon/internal/cli"
	"dirmon/internal/endpoint"
)

// runClient prints everything the server sends and forwards stdin. It ends
// when the server closes the stream or ctx is done.
func runClient(ctx context.Context, options cli.ClientOptions, stdin io.Reader, stdout io.Writer) error {
	conn, err := endpoint.Dial(options.Channel, options.DialTimeout)
	if err != nil {
		return cli.Fail(fmt.Errorf("connect to %s: %w", options.Channel, err))
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		_, _ = io.Copy(conn, stdin)
	}()

	_, err = io.Copy(stdout, conn)
	if err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
		return cli.Fail(err)
	}
	return nil
}
