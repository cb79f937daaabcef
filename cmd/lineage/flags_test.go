package main

import (
	"testing"

	lineage "github.com/coinlineage/lineage/pkg"
	"github.com/spf13/pflag"
)

func TestConfigFlagsOverrideOnlyWhenSet(t *testing.T) {
	conf, err := lineage.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	conf.Node.Host = "node.internal"
	conf.Ledger.SnapshotDB = "/var/lib/lineage.sqlite"
	conf.Resolver.Workers = 3

	var f configFlags
	fs := pflag.NewFlagSet("lineage", pflag.ContinueOnError)
	f.register(fs)
	if err := fs.Parse([]string{"--node-port", "9000", "--backend", "sqlite", "--workers", "0"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f.apply(&conf, fs)

	if conf.Node.Port != 9000 || conf.Ledger.Backend != "sqlite" {
		t.Fatalf("flags not applied: %+v", conf)
	}
	// set to the zero value explicitly
	if conf.Resolver.Workers != 0 {
		t.Fatalf("--workers 0 not applied: %d", conf.Resolver.Workers)
	}
	if conf.Node.Host != "node.internal" || conf.Ledger.SnapshotDB != "/var/lib/lineage.sqlite" {
		t.Fatalf("unset flags overrode the config: %+v", conf)
	}
}
