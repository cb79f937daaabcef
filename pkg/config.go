package lineage

import (
	"github.com/jinzhu/configor"
)

type Config struct {
	// full node RPC endpoint
	Node struct {
		Host     string `default:"localhost"`
		Port     int    `default:"8555"`
		CertPath string `default:"~/.chia/mainnet/config/ssl/full_node/private_full_node.crt"`
		KeyPath  string `default:"~/.chia/mainnet/config/ssl/full_node/private_full_node.key"`
		CAPath   string `default:"~/.chia/mainnet/config/ssl/ca/private_ca.crt"` // empty: skip verification
		// transport failures only; evaluation is never retried
		Retries        int `default:"3"`
		RetryDelayMs   int `default:"500"`
		TimeoutSeconds int `default:"30"`
	}

	Ledger struct {
		Backend    string `default:"rpc"` // rpc or sqlite
		SnapshotDB string `default:"lineage.sqlite"`
	}

	Resolver struct {
		Workers             int    `default:"8"`
		CostLimit           uint64 `default:"11000000000"` // max block cost
		QueryTimeoutSeconds int    `default:"300"`
	}

	Log struct {
		Path       string // empty: stderr
		MaxSizeMB  int    `default:"100"`
		MaxBackups int    `default:"3"`
		Compress   bool   `default:"true"`
	}

	WebAPI struct {
		Bind string `default:"localhost"`
		Port string `default:"8420"`
	}
}

// LoadConfig reads confPath (if any) over the defaults above.
// Environment variables prefixed LINEAGE_ override file values.
func LoadConfig(confPath ...string) (Config, error) {
	c := Config{}
	err := configor.New(&configor.Config{ENVPrefix: "LINEAGE"}).Load(&c, confPath...)
	return c, err
}
