package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	ConfigFile string `short:"f" long:"config" env:"CONFIG" description:"The path to the configuration file" default:"mempoolwatcher.conf"`

	Chain string `short:"c" long:"chain" description:"The chain to use (mainnet, testnet3, signet, regtest)" default:"mainnet"`

	// Bitcoin node connection settings
	RPCHost       string `long:"rpchost" description:"The host of the Bitcoin node" default:"127.0.0.1"`
	RPCUser       string `long:"rpcuser" env:"RPCUSER" description:"The username of the Bitcoin node"`
	RPCPassword   string `long:"rpcpass" env:"RPCPASS" description:"The password of the Bitcoin node"`
	RPCCookiePath string `long:"rpccookie" description:"The path to the Bitcoin node cookie file, used when no rpcuser is set"`
	RPCTimeout    int    `long:"rpctimeout" description:"Seconds to wait for a single RPC call, 0 waits forever" default:"30"`

	// Watcher settings
	OutputsFile   string `short:"o" long:"outputs" description:"The file containing the watched txid,output_index pairs" default:"outputs.txt"`
	DumpFolder    string `short:"d" long:"dumpdir" description:"The folder matching transactions are dumped to" default:"dumped_txs"`
	CacheTTL      int    `long:"cachettl" description:"Seconds a processed mempool transaction is not looked at again" default:"3600"`
	FetchInterval int    `short:"i" long:"interval" description:"Seconds between mempool scans" default:"180"`
	Workers       int    `short:"w" long:"workers" description:"Number of transactions fetched concurrently" default:"1"`

	// ZMQ settings
	ZMQ            string `short:"z" long:"zmq" description:"Optional ZeroMQ hashtx endpoint that triggers a scan before the interval elapses"`
	ZMQMinInterval int    `long:"zmqmininterval" description:"Minimum seconds between the starts of two scans when ZMQ notifications arrive, 0 means a tenth of the interval" default:"10"`

	network *chaincfg.Params
}

// LoadConfig loads the configuration from the specified file
func LoadConfig() (*Config, error) {
	// Credentials may live in a .env file next to the binary.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	// Find the config file first: flag, then $CONFIG, then the default.
	preCfg := Config{}
	preParser := flags.NewParser(&preCfg, flags.IgnoreUnknown)
	preParser.Parse()
	configFile := preCfg.ConfigFile

	cfg := &Config{}
	parser := flags.NewParser(cfg, flags.Default)
	err := flags.NewIniParser(parser).ParseFile(configFile)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			parser.WriteHelp(os.Stderr)
			return nil, err
		}
	}

	// Parse command line options again to ensure they take precedence.
	_, err = parser.Parse()
	if err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks if all required configuration fields are set
func (c *Config) validate() error {
	var defaultPort string
	var defaultRPCCookiePath string

	switch c.Chain {
	case "", "mainnet":
		c.network = &chaincfg.MainNetParams
		defaultPort = "8332"
		defaultRPCCookiePath = "~/.bitcoin/.cookie"
	case "testnet3":
		c.network = &chaincfg.TestNet3Params
		defaultPort = "18332"
		defaultRPCCookiePath = "~/.bitcoin/testnet3/.cookie"
	case "signet":
		c.network = &chaincfg.SigNetParams
		defaultPort = "38332"
		defaultRPCCookiePath = "~/.bitcoin/signet/.cookie"
	case "regtest":
		c.network = &chaincfg.RegressionNetParams
		defaultPort = "18443"
		defaultRPCCookiePath = "~/.bitcoin/regtest/.cookie"
	default:
		return fmt.Errorf("invalid chain: %s", c.Chain)
	}

	host, port, err := net.SplitHostPort(c.RPCHost)
	if err != nil {
		host = c.RPCHost
	}
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = defaultPort
	}
	c.RPCHost = net.JoinHostPort(host, port)
	if _, _, err := net.SplitHostPort(c.RPCHost); err != nil {
		return fmt.Errorf("invalid rpchost: %s", c.RPCHost)
	}

	if c.RPCUser == "" && c.RPCCookiePath == "" {
		c.RPCCookiePath = defaultRPCCookiePath
	}
	c.RPCCookiePath = expandPath(c.RPCCookiePath)
	c.OutputsFile = expandPath(c.OutputsFile)
	c.DumpFolder = expandPath(c.DumpFolder)

	if c.CacheTTL <= 0 {
		return fmt.Errorf("invalid cachettl: %d", c.CacheTTL)
	}
	if c.FetchInterval <= 0 {
		return fmt.Errorf("invalid interval: %d", c.FetchInterval)
	}
	if c.RPCTimeout < 0 {
		return fmt.Errorf("invalid rpctimeout: %d", c.RPCTimeout)
	}
	if c.ZMQMinInterval < 0 {
		return fmt.Errorf("invalid zmqmininterval: %d", c.ZMQMinInterval)
	}
	if c.Workers < 1 {
		return fmt.Errorf("invalid workers: %d", c.Workers)
	}

	return nil
}

func (c *Config) cacheTTL() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

func (c *Config) fetchInterval() time.Duration {
	return time.Duration(c.FetchInterval) * time.Second
}

func (c *Config) zmqMinInterval() time.Duration {
	return time.Duration(c.ZMQMinInterval) * time.Second
}

func (c *Config) rpcTimeout() time.Duration {
	return time.Duration(c.RPCTimeout) * time.Second
}

// expandPath expands the ~ character to the user's home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return strings.Replace(path, "~", homeDir, 1)
	}
	return path
}
