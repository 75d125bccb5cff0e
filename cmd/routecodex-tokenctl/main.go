// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

// Command routecodex-tokenctl is the operator-facing companion to the
// gateway: it inspects and drives the same on-disk token store and OAuth
// config the daemon and the dispatcher's providers use, without needing
// the gateway process running.
//
// Usage:
//
//	routecodex-tokenctl status
//	routecodex-tokenctl tokens
//	routecodex-tokenctl providers
//	routecodex-tokenctl servers
//	routecodex-tokenctl oauth <provider>.<model>.<alias>
//	routecodex-tokenctl validate [provider.model.alias|all]
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/BaSui01/routecodex/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	fs := flag.NewFlagSet("tokenctl", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	deviceFlow := fs.Bool("device", false, "use the device-code flow instead of the auth-code flow for 'oauth'")
	fs.Parse(os.Args[2:])

	cfg, err := config.NewLoader().WithConfigPath(*configPath).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "\x1b[31mfailed to load config: %v\x1b[0m\n", err)
		os.Exit(1)
	}
	logger := zap.NewNop()

	ctl, err := newController(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\x1b[31m%v\x1b[0m\n", err)
		os.Exit(1)
	}
	defer ctl.Close()

	args := fs.Args()
	var cmdErr error
	switch os.Args[1] {
	case "status":
		cmdErr = ctl.status()
	case "tokens":
		cmdErr = ctl.tokens()
	case "providers":
		cmdErr = ctl.providers()
	case "servers":
		cmdErr = ctl.servers()
	case "oauth":
		if len(args) != 1 {
			cmdErr = fmt.Errorf("usage: routecodex-tokenctl oauth <provider>.<model>.<alias>")
			break
		}
		cmdErr = ctl.oauth(args[0], *deviceFlow)
	case "validate":
		selector := "all"
		if len(args) == 1 {
			selector = args[0]
		}
		cmdErr = ctl.validate(selector)
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if cmdErr != nil {
		fmt.Fprintf(os.Stderr, "\x1b[31m%v\x1b[0m\n", cmdErr)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`routecodex-tokenctl - inspect and refresh the gateway's OAuth tokens

Usage:
  routecodex-tokenctl <command> [options] [args]

Commands:
  status                        Summarize every OAuth-backed target's token state
  tokens                        List every discovered token target and its descriptor
  providers                     List every provider family configured in the pool
  servers                       List every configured pipeline target's base URL
  oauth <provider.model.alias>  Force an interactive re-authorization for one target
  validate [selector|all]       Validate one or every OAuth-backed target's token

Options:
  --config <path>   Path to configuration file (YAML)
  --device          Use the device-code flow for 'oauth' instead of auth-code

Exit status is 0 on success, non-zero on any validation failure.`)
}
