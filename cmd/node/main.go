// Command node runs one member of the distributed SQL middleware cluster
// (§4.13, EXPANSION). Grounded on the teacher's fc-server/main.go: flags via
// the standard flag package, config load, construct, run, wait for a signal.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"dqlcluster/config"
	"dqlcluster/configs"
	"dqlcluster/executor"
	"dqlcluster/log"
	"dqlcluster/node"
	"dqlcluster/wire/transport"
)

var (
	configPath     string
	nodeID         int
	addr           string
	decisionLogDir string
	debug          bool
)

func init() {
	flag.StringVar(&configPath, "config", config.DefaultConfigFileLocation, "path to the cluster topology file")
	flag.IntVar(&nodeID, "id", 0, "override this node's id from the config file (0 = use config)")
	flag.StringVar(&addr, "addr", "", "override this node's listen address (host:port, blank = use config)")
	flag.StringVar(&decisionLogDir, "decision-log", "", "directory for the 2PC decision log (blank = disabled)")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
}

func main() {
	flag.Parse()
	configs.ShowDebugInfo = debug

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	if nodeID != 0 {
		self := cfg.Nodes[nodeID]
		self.ID = nodeID
		cfg.Self = self
	}
	if addr != "" {
		host, port, splitErr := splitHostPort(addr)
		if splitErr != nil {
			fmt.Fprintln(os.Stderr, "invalid -addr:", splitErr)
			os.Exit(1)
		}
		cfg.Self.IP = host
		cfg.Self.Port = port
		cfg.Nodes[cfg.Self.ID] = cfg.Self
	}

	var decisionLog *log.DecisionLog
	if decisionLogDir != "" {
		decisionLog, err = log.Open(decisionLogDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open decision log:", err)
			os.Exit(1)
		}
		defer decisionLog.Close()
	}

	exec := executor.NewFake(cfg.Self.ID)

	var n *node.Node
	if decisionLog != nil {
		n = node.New(cfg, exec, decisionLog)
	} else {
		n = node.New(cfg, exec, nil)
	}

	srv, err := transport.NewServer(cfg.Self.Address(), n.Handle)
	if err != nil {
		fmt.Fprintln(os.Stderr, "listen:", err)
		os.Exit(1)
	}

	go srv.Run()
	n.Start()
	configs.DPrintf("node %d listening on %s", cfg.Self.ID, cfg.Self.Address())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	configs.DPrintf("node %d shutting down", cfg.Self.ID)
	n.Stop()
	srv.Close()
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}
