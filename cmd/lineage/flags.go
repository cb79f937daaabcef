package main

import (
	lineage "github.com/coinlineage/lineage/pkg"
	"github.com/spf13/pflag"
)

// configFlags override config file values, but only when given.
type configFlags struct {
	nodeHost   string
	nodePort   int
	backend    string
	snapshotDB string
	workers    int
	timeout    int
	webapiBind string
	webapiPort string
}

func (f *configFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.nodeHost, "node-host", "", "Full node RPC host")
	fs.IntVar(&f.nodePort, "node-port", 0, "Full node RPC port")
	fs.StringVar(&f.backend, "backend", "", "Ledger backend: rpc or sqlite")
	fs.StringVar(&f.snapshotDB, "snapshot-db", "", "SQLite ledger snapshot (sqlite backend, snapshot command)")
	fs.IntVar(&f.workers, "workers", 0, "Spends evaluated concurrently per block scan")
	fs.IntVar(&f.timeout, "timeout", 0, "Query timeout in seconds (0: none)")
	fs.StringVar(&f.webapiBind, "webapi-bind", "", "Web API bind")
	fs.StringVar(&f.webapiPort, "webapi-port", "", "Web API port")
}

// apply copies the flags set on fs into conf.
func (f *configFlags) apply(conf *lineage.Config, fs *pflag.FlagSet) {
	if fs.Changed("node-host") {
		conf.Node.Host = f.nodeHost
	}
	if fs.Changed("node-port") {
		conf.Node.Port = f.nodePort
	}
	if fs.Changed("backend") {
		conf.Ledger.Backend = f.backend
	}
	if fs.Changed("snapshot-db") {
		conf.Ledger.SnapshotDB = f.snapshotDB
	}
	if fs.Changed("workers") {
		conf.Resolver.Workers = f.workers
	}
	if fs.Changed("timeout") {
		conf.Resolver.QueryTimeoutSeconds = f.timeout
	}
	if fs.Changed("webapi-bind") {
		conf.WebAPI.Bind = f.webapiBind
	}
	if fs.Changed("webapi-port") {
		conf.WebAPI.Port = f.webapiPort
	}
}
