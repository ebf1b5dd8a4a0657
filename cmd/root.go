package cmd

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/reserve-protocol/ethdebug/common"
	"github.com/reserve-protocol/ethdebug/convert"
	"github.com/reserve-protocol/ethdebug/validator"
)

// globalState is everything the commands would otherwise reach for through
// package globals, so tests can swap it out.
type globalState struct {
	fs         afero.Fs
	config     *viper.Viper
	logger     *logrus.Logger
	stdout     io.Writer
	stderr     io.Writer
	workingDir string
	cfgFile    string
}

func newGlobalState() *globalState {
	workingDir, err := os.Getwd()
	common.Check(err, "failed to get working directory")

	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	return &globalState{
		fs:         afero.NewOsFs(),
		config:     newConfig(),
		logger:     logger,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		workingDir: workingDir,
	}
}

func newConfig() *viper.Viper {
	options := convert.DefaultOptions()
	config := viper.New()
	config.SetDefault("format", "pretty")
	config.SetDefault("strip_metadata", options.StripMetadata)
	config.SetDefault("split_data", options.SplitData)
	config.SetDefault("coalesce", options.Coalesce)
	config.SetDefault("parallelism", options.Parallelism)
	config.SetDefault("validator", validator.DefaultCommand)
	config.SetDefault("log_level", "info")
	return config
}

func newRootCommand(gs *globalState) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ethdebug",
		Short: "Converts solc source maps to the Ethdebug format",
		Long: `Reads the combined-json output of solc and writes Ethdebug debug
information that maps every instruction of a contract's bytecode back to its
Solidity source.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(gs)
		},
	}
	rootCmd.SetOut(gs.stdout)
	rootCmd.SetErr(gs.stderr)

	rootCmd.PersistentFlags().StringVar(&gs.cfgFile, "config", "", "config file (default is ./config.yml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	bindFlag(gs.config, "verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(newConvertCommand(gs), newLocateCommand(gs))
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	gs := newGlobalState()
	if err := newRootCommand(gs).Execute(); err != nil {
		gs.logger.Error(err)
		os.Exit(int(common.ExitCodeOf(err)))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig(gs *globalState) error {
	gs.config.SetFs(gs.fs)
	gs.config.AddConfigPath(gs.workingDir)
	gs.config.SetConfigName("config")

	if gs.cfgFile != "" {
		// Use config file from the flag.
		gs.config.SetConfigFile(gs.cfgFile)
	}

	gs.config.SetEnvPrefix("ethdebug")
	gs.config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	gs.config.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	err := gs.config.ReadInConfig()
	switch err.(type) {
	case nil, viper.ConfigFileNotFoundError:
		// Ok if no config file.
	default:
		return common.WithExitCode(err, common.ExitUsage)
	}

	level, err := logrus.ParseLevel(gs.config.GetString("log_level"))
	if err != nil {
		return common.WithExitCode(err, common.ExitUsage)
	}
	if gs.config.GetBool("verbose") {
		level = logrus.DebugLevel
	}
	gs.logger.SetLevel(level)
	return nil
}

func bindFlag(config *viper.Viper, key string, flag *pflag.Flag) {
	common.Check(config.BindPFlag(key, flag), "failed to bind flag "+flag.Name)
}

// bindFlags binds config keys to the flags of the command that is about to
// run. Commands share keys, so binding happens here rather than at
// construction.
func bindFlags(config *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		bindFlag(config, key, flags.Lookup(name))
	}
}
