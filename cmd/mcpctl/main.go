package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BuggedPlayer/ableton-mcpv2/internal/bridge"
	"github.com/BuggedPlayer/ableton-mcpv2/internal/config"
	"github.com/BuggedPlayer/ableton-mcpv2/internal/observability"
	"github.com/BuggedPlayer/ableton-mcpv2/internal/wire"
)

type options struct {
	configPath  string
	writeConfig string
	statusAddr  string
	payload     string
	hint        int
	wait        time.Duration
}

func main() {
	opts := parseFlags()

	if opts.writeConfig != "" {
		if err := config.WriteTemplate(opts.writeConfig, "bridge", false); err != nil {
			fatalf("write config: %v", err)
		}
		fmt.Printf("wrote bridge config template to %s\n", opts.writeConfig)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		fatalf("usage: mcpctl [flags] <opcode> [args...]")
	}

	cfg, err := loadCtlConfig(opts.configPath)
	if err != nil {
		fatalf("%v", err)
	}
	if opts.statusAddr != "" {
		cfg.StatusAddr = opts.statusAddr
	}

	log := observability.InitLogger("mcpctl")
	observability.RegisterMetrics()

	sup, err := bridge.Open(cfg.Bridge, log)
	if err != nil {
		fatalf("open bridge: %v", err)
	}
	defer sup.Close()

	if cfg.StatusAddr != "" {
		status := observability.NewStatusServer(log, nil, sup)
		go func() {
			if err := status.Run(cfg.StatusAddr); err != nil {
				log.Error().Err(err).Msg("status server stopped")
			}
		}()
	}

	cmd, path, hint, err := buildCommand(args, opts)
	if err != nil {
		fatalf("%v", err)
	}

	ctx := context.Background()
	if opts.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.wait)
		defer cancel()
	}

	resp, err := sup.Do(ctx, path, cmd, hint)
	if err != nil {
		fatalf("%s: %v", cmd.Address, err)
	}
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		fatalf("render response: %v", err)
	}
	fmt.Println(string(out))
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to bridge config.toml")
	flag.StringVar(&opts.writeConfig, "write-config", "", "write a config template to this path and exit")
	flag.StringVar(&opts.statusAddr, "status", "", "serve the status API on this address")
	flag.StringVar(&opts.payload, "payload", "", "JSON payload for batch operations")
	flag.IntVar(&opts.hint, "hint", 0, "expected work-unit count, scales the response timeout")
	flag.DurationVar(&opts.wait, "wait", 0, "overall wait limit (0 means timeout policy only)")
	flag.Parse()
	return opts
}

// buildCommand turns CLI arguments into a typed command. Numeric-looking
// tokens become typed args so the host's fixed leading-arg decode sees
// the same token shapes its routes declare.
func buildCommand(args []string, opts options) (wire.Command, string, int, error) {
	cmd := wire.Command{Address: args[0]}
	path := args[0]
	for _, tok := range args[1:] {
		if v, err := strconv.ParseInt(tok, 10, 64); err == nil {
			cmd.Args = append(cmd.Args, wire.Int(v))
		} else if f, err := strconv.ParseFloat(tok, 64); err == nil {
			cmd.Args = append(cmd.Args, wire.Float(f))
		} else {
			cmd.Args = append(cmd.Args, wire.String(tok))
		}
		path += "/" + tok
	}

	hint := opts.hint
	if opts.payload != "" {
		var probe []json.RawMessage
		if err := json.Unmarshal([]byte(opts.payload), &probe); err != nil {
			return wire.Command{}, "", 0, fmt.Errorf("payload must be a JSON array: %w", err)
		}
		if hint == 0 {
			hint = len(probe)
		}
		cmd.Payload = wire.TextsafeEncode([]byte(opts.payload))
	}
	return cmd, path, hint, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "mcpctl: "+format+"\n", args...)
	os.Exit(1)
}
