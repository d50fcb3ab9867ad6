// Command siltstone is a command-line companion to the Siltstone driver.
//
// It evaluates one-shot queries, follows streaming subscriptions and runs the
// in-process mock server:
//
//	siltstone query --endpoint http://localhost:8443 --secret secret '{"get": {"ref": {"collection": "users"}, "id": "1"}}'
//	siltstone watch --endpoint http://localhost:8443 --secret secret --collection users --id 1
//	siltstone serve --addr :8443 --secret secret
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ridge/must/v2"
	"github.com/ridge/siltstone"
	"github.com/ridge/siltstone/mock"
	"github.com/ridge/siltstone/query"
	"github.com/ridge/siltstone/run"
	"github.com/ridge/siltstone/stream"
	"github.com/ridge/siltstone/thttp"
	"github.com/ridge/siltstone/tlog"
	"github.com/ridge/siltstone/tnet"
	"github.com/ridge/siltstone/wire"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	rest := os.Args[1:]
	switch os.Args[1] {
	case "query":
		queryMain(rest)
	case "watch":
		watchMain(rest)
	case "serve":
		serveMain(rest)
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s query|watch|serve [flags]\n", os.Args[0])
	os.Exit(2)
}

func clientFlags() *siltstone.Config {
	var config siltstone.Config
	pflag.StringVar(&config.Endpoint, "endpoint", "http://localhost:8443", "server endpoint URL")
	pflag.StringVar(&config.Secret, "secret", "", "authentication secret")
	pflag.DurationVar(&config.QueryTimeout, "timeout", 0, "server-side query timeout (0 means server default)")
	return &config
}

func queryMain(args []string) {
	config := clientFlags()
	_ = pflag.CommandLine.Parse(args[1:])
	if pflag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "query expects exactly one expression argument")
		os.Exit(2)
	}
	expr, err := wire.Decode([]byte(pflag.Arg(0)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad expression: %v\n", err)
		os.Exit(2)
	}

	run.Tool(func(ctx context.Context) error {
		client, err := siltstone.New(*config)
		if err != nil {
			return err
		}
		res, err := client.Query(ctx, expr)
		if err != nil {
			return err
		}
		fmt.Println(string(must.OK1(wire.Encode(res))))
		return nil
	})
}

func watchMain(args []string) {
	config := clientFlags()
	var collection, id string
	pflag.StringVar(&collection, "collection", "", "collection to watch")
	pflag.StringVar(&id, "id", "", "document ID to watch (watches the whole collection if empty)")
	_ = pflag.CommandLine.Parse(args[1:])
	if collection == "" {
		fmt.Fprintln(os.Stderr, "--collection is required")
		os.Exit(2)
	}

	var target wire.Value
	if id != "" {
		target = query.Ref(query.Collection(collection), id)
	} else {
		target = query.Documents(query.Collection(collection))
	}

	run.Tool(func(ctx context.Context) error {
		client, err := siltstone.New(*config)
		if err != nil {
			return err
		}
		sub, err := client.Stream(target, stream.Options{})
		if err != nil {
			return err
		}

		logger := tlog.Get(ctx)
		print := func(ev stream.Event) {
			// transport failures carry no trace
			trace := ev.Trace()
			if trace == nil {
				fmt.Println(ev.Kind())
				return
			}
			body := trace.RawResponse
			fmt.Printf("%s %s", ev.Kind(), body)
			if len(body) == 0 || body[len(body)-1] != '\n' {
				fmt.Println()
			}
		}
		must.OK(sub.On(stream.KindStart, print))
		must.OK(sub.On(stream.KindVersion, print))
		must.OK(sub.On(stream.KindSet, print))
		must.OK(sub.On(stream.KindHistoryRewrite, print))
		must.OK(sub.On(stream.KindUnknown, print))
		must.OK(sub.On(stream.KindError, func(ev stream.Event) {
			logger.Warn("Stream error", zap.Error(ev.(stream.Error).Cause))
			print(ev)
		}))
		return sub.Start(ctx)
	})
}

func serveMain(args []string) {
	var addr, secret string
	pflag.StringVar(&addr, "addr", ":8443", "address to listen on")
	pflag.StringVar(&secret, "secret", "secret", "authentication secret to require")
	_ = pflag.CommandLine.Parse(args[1:])

	run.Server(func(ctx context.Context) error {
		listener, err := tnet.Listen(addr)
		if err != nil {
			return err
		}
		tlog.Get(ctx).Info("Serving", zap.Stringer("addr", listener.Addr()))
		return thttp.NewServer(listener, mock.NewServer(secret).Router()).Run(ctx)
	})
}
