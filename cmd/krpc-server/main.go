// Command krpc-server hosts a demo Arith service over krpc, advertised
// in etcd under the address the config file's rpcserverip/rpcserverport
// keys name.
//
// Usage: a single "-i <path>" flag. Any other invocation prints the
// usage string and exits 1; argv is scanned by hand since Go's flag
// package can't reproduce that exact message and exit code without
// fighting it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"krpc/config"
	"krpc/middleware"
	"krpc/registry"
	"krpc/server"
)

const usage = "格式： command -i <配置文件路径>"

// shutdownGrace bounds how long Shutdown waits for in-flight
// connections to drain once an interrupt signal arrives.
const shutdownGrace = 5 * time.Second

// Arith is the demo service this binary hosts.
type Arith struct{}

type ArithArgs struct{ A, B int }
type ArithReply struct{ Sum int }

func (a *Arith) Add(args *ArithArgs, reply *ArithReply) error {
	reply.Sum = args.A + args.B
	return nil
}

func parseConfigPath(args []string) (string, bool) {
	if len(args) != 3 || args[1] != "-i" {
		return "", false
	}
	return args[2], true
}

func main() {
	path, ok := parseConfigPath(os.Args)
	if !ok {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Println(usage)
		os.Exit(1)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	srv := server.New(logger)
	srv.Use(middleware.LoggingMiddleware(logger))
	if err := srv.Register(&Arith{}); err != nil {
		logger.Fatal("register service", zap.Error(err))
	}

	reg := registry.NewEtcdRegistry([]string{cfg.EtcdEndpoint()}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	if err := srv.Serve(context.Background(), cfg, reg); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}
