package main

import (
	"encoding/json"
	"fmt"
	"os"

	lineage "github.com/coinlineage/lineage/pkg"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// SubCommandArgs are flags that do not live in the config file.
type SubCommandArgs struct {
	Remote     string // base URL of a running `lineage serve`
	NoProgress bool
}

func main() {
	var config lineage.Config
	var args SubCommandArgs

	// flag values, applied over the loaded config when set
	var flags configFlags

	// define root command
	rootCmd := &cobra.Command{
		Use:           "lineage",
		Short:         "Resolve coin lineage from announcement commitments",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := LoadConfig()
			if err != nil {
				return err
			}
			flags.apply(&conf, cmd.Flags())
			config = conf
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Help()
			os.Exit(0)
		},
	}

	// Add flags for each configuration option
	flags.register(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().StringVar(&args.Remote, "remote", "", "Query a running lineage server instead of the ledger, e.g. http://localhost:8420/")
	rootCmd.PersistentFlags().BoolVar(&args.NoProgress, "no-progress", false, "Do not show block scan progress")

	childrenCmd := &cobra.Command{
		Use:   "children <coin id>",
		Short: "List the coins created by spending a coin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			return Children(a[0], config, args)
		},
	}

	parentsCmd := &cobra.Command{
		Use:   "parents <coin id>",
		Short: "Show the parent of a coin and the coins spent alongside it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			return Parents(a[0], config, args)
		},
	}

	snapshotCmd := &cobra.Command{
		Use:   "snapshot <from height> [to height]",
		Short: "Copy blocks from the full node into the SQLite snapshot",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, a []string) error {
			return Snapshot(a, config, args)
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the lineage HTTP query service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Server(config)
		},
	}

	configCmd := &cobra.Command{
		Use:   "showconf",
		Short: "Print the config state and exit",
		Run: func(cmd *cobra.Command, _ []string) {
			o, _ := json.MarshalIndent(config, ">", " ")
			fmt.Println(string(o))
			os.Exit(0)
		},
	}

	rootCmd.AddCommand(childrenCmd)
	rootCmd.AddCommand(parentsCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)

	// Execute the Cobra command
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// LoadConfig finds config.toml (or $LINEAGE_ENV.toml) in the usual places
// and loads it over the defaults. No config file means defaults only.
func LoadConfig() (lineage.Config, error) {
	configFileName, set := os.LookupEnv("LINEAGE_ENV")
	if set {
		viper.SetConfigName(configFileName)
	} else {
		viper.SetConfigName("config")
	}

	// Set config file name and search paths
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/lineage/")
	viper.AddConfigPath("$HOME/.lineage")

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || set {
			return lineage.Config{}, fmt.Errorf("failed to read config file: %v", err)
		}
		return lineage.LoadConfig()
	}
	conf, err := lineage.LoadConfig(viper.ConfigFileUsed())
	if err != nil {
		return lineage.Config{}, fmt.Errorf("failed to load config %s: %v", viper.ConfigFileUsed(), err)
	}
	return conf, nil
}
