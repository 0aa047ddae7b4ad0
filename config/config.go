// Package config loads node identity and cluster topology from a JSON file
// (§4.10, EXPANSION). Grounded on the teacher's loadConfig idiom in
// network/coordinator/main.go: read the configured path, fall back to the
// same path with one more "." prefixed, unmarshal with goccy/go-json, assert on failure —
// generalized into an immutable value passed to node.New rather than a
// package-level global the teacher mutates in place.
package config

import (
	"os"
	"sort"
	"strconv"
	"time"

	goccyjson "github.com/goccy/go-json"

	"dqlcluster/configs"
)

// DefaultConfigFileLocation mirrors the teacher's configs.ConfigFileLocation
// role: the conventional path a node looks for its cluster file at.
const DefaultConfigFileLocation = "./configs/cluster.json"

// NodeConfig is one cluster member's identity and executor backend target
// (§6 boundary fields).
type NodeConfig struct {
	ID            int    `json:"id"`
	IP            string `json:"ip"`
	Port          int    `json:"port"`
	MySQLHost     string `json:"mysql_host,omitempty"`
	MySQLPort     int    `json:"mysql_port,omitempty"`
	MySQLDatabase string `json:"mysql_database,omitempty"`
}

// Address returns ip:port in the shape wire/transport.Send expects.
func (n NodeConfig) Address() string {
	return n.IP + ":" + strconv.Itoa(n.Port)
}

// Config is the whole cluster's static topology, loaded once at boot and
// passed by value into node.New — never held as a package-level global.
type Config struct {
	Self              NodeConfig            `json:"self"`
	Nodes             map[int]NodeConfig    `json:"nodes"`
	HeartbeatInterval time.Duration         `json:"-"`
	HeartbeatTimeout  time.Duration         `json:"-"`

	RawHeartbeatIntervalMS int64 `json:"heartbeat_interval_ms,omitempty"`
	RawHeartbeatTimeoutMS  int64 `json:"heartbeat_timeout_ms,omitempty"`

	// ReadStrategy selects the read-path load balancer strategy (§4.7):
	// "round_robin" or "least_loaded". Defaults to "round_robin" when blank.
	ReadStrategy string `json:"read_strategy,omitempty"`
}

// NodeIDs returns every node id in the cluster, ascending.
func (c Config) NodeIDs() []int {
	ids := make([]int, 0, len(c.Nodes))
	for id := range c.Nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// PeerAddresses returns every peer (excluding Self) mapped to its dial
// address.
func (c Config) PeerAddresses() map[int]string {
	out := make(map[int]string, len(c.Nodes))
	for id, n := range c.Nodes {
		if id == c.Self.ID {
			continue
		}
		out[id] = n.Address()
	}
	return out
}

// Load reads and parses the cluster config file at path, falling back to
// "." + path the way the teacher's loadConfig does (for the default
// "./configs/cluster.json" that is "../configs/cluster.json", so the binary
// works whether launched from the repo root or from one directory below it).
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigFileLocation
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		raw, err = os.ReadFile("." + path)
	}
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := goccyjson.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}

	cfg.HeartbeatInterval = configs.HeartbeatInterval
	if cfg.RawHeartbeatIntervalMS > 0 {
		cfg.HeartbeatInterval = time.Duration(cfg.RawHeartbeatIntervalMS) * time.Millisecond
	}
	cfg.HeartbeatTimeout = configs.HeartbeatTimeout
	if cfg.RawHeartbeatTimeoutMS > 0 {
		cfg.HeartbeatTimeout = time.Duration(cfg.RawHeartbeatTimeoutMS) * time.Millisecond
	}
	if cfg.ReadStrategy == "" {
		cfg.ReadStrategy = "round_robin"
	}
	return cfg, nil
}
