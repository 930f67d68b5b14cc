// Command krpc-client places one Arith.Add call against a krpc server.
//
// Usage: the same "-i <path>" contract as krpc-server.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"krpc/client"
	"krpc/config"
	"krpc/controller"
	"krpc/registry"
)

const usage = "格式： command -i <配置文件路径>"

type ArithArgs struct{ A, B int }
type ArithReply struct{ Sum int }

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

	reg := registry.NewEtcdRegistry([]string{cfg.EtcdEndpoint()}, logger)
	ctx := context.Background()
	if err := reg.Connect(ctx); err != nil {
		logger.Fatal("registry connect", zap.Error(err))
	}
	defer reg.Close()

	ch, err := client.NewChannel("Arith.Add", reg)
	if err != nil {
		logger.Fatal("new channel", zap.Error(err))
	}

	args := &ArithArgs{A: 1, B: 2}
	reply := &ArithReply{}
	ctl := controller.New()
	if err := ch.CallMethod(ctx, ctl, args, reply); err != nil {
		fmt.Println(ctl.ErrorText())
		os.Exit(1)
	}

	fmt.Printf("Arith.Add(%d, %d) = %d\n", args.A, args.B, reply.Sum)
}
