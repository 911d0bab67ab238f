package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BuggedPlayer/ableton-mcpv2/internal/config"
	"github.com/BuggedPlayer/ableton-mcpv2/internal/host"
	"github.com/BuggedPlayer/ableton-mcpv2/internal/host/simgraph"
	"github.com/BuggedPlayer/ableton-mcpv2/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to host config.toml")
	writeConfig := flag.String("write-config", "", "write a config template to this path and exit")
	flag.Parse()

	if *writeConfig != "" {
		if err := config.WriteTemplate(*writeConfig, "host", false); err != nil {
			fatalf("write config: %v", err)
		}
		fmt.Printf("wrote host config template to %s\n", *writeConfig)
		return
	}

	cfg, err := loadSimConfig(*configPath)
	if err != nil {
		fatalf("%v", err)
	}

	log := observability.InitLogger("hostsim")
	observability.RegisterMetrics()

	endpoint, err := host.OpenEndpoint(cfg.CommandAddr, cfg.ResponseAddr, log)
	if err != nil {
		fatalf("open endpoint: %v", err)
	}
	defer endpoint.Close()

	graph := simgraph.New(cfg.Graph, nil)
	rt, err := host.NewRuntime(cfg.Runtime, graph, endpoint.Send, nil, log)
	if err != nil {
		fatalf("build runtime: %v", err)
	}
	graph.AttachMeter(rt.Meter())
	if err := host.RegisterBuiltins(rt); err != nil {
		fatalf("register handlers: %v", err)
	}

	go rt.Run()
	defer rt.Close()

	go func() {
		if err := endpoint.Serve(rt.HandleDatagram); err != nil {
			log.Error().Err(err).Msg("endpoint stopped")
		}
	}()

	log.Info().
		Str("command", cfg.CommandAddr).
		Str("response", cfg.ResponseAddr).
		Int("tracks", cfg.Graph.Tracks).
		Msg("host simulator serving")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "hostsim: "+format+"\n", args...)
	os.Exit(1)
}
