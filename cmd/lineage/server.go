package main

import (
	lineage "github.com/coinlineage/lineage/pkg"
	"github.com/coinlineage/lineage/pkg/resolver"
	"github.com/coinlineage/lineage/pkg/webapi"
	"github.com/tjstebbing/conductor"
)

func Server(conf lineage.Config) error {
	c := conductor.New(
		conductor.HookSignals(),
		conductor.Noisy(),
	)

	logger := lineage.NewLogger(conf)

	// Set up the ledger (node RPC or snapshot)
	ledger, eval, closer, err := openLedger(conf, logger)
	if err != nil {
		return err
	}
	defer closer()

	r := resolver.NewFromConfig(conf, ledger, eval, logger)

	// Start the Lineage API
	api, err := webapi.NewWebAPI(conf, r, logger)
	if err != nil {
		return err
	}
	c.Service("Lineage API", api)

	<-c.Start()
	return nil
}
