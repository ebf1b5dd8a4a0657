package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reserve-protocol/ethdebug/common"
	"github.com/reserve-protocol/ethdebug/convert"
	"github.com/reserve-protocol/ethdebug/solc"
)

func newLocateCommand(gs *globalState) *cobra.Command {
	locateCmd := &cobra.Command{
		Use:   "locate <combined.json>",
		Short: "Tells you which line of source a program counter came from",
		Long: `Converts a contract the way convert does and prints the source location
of the instruction at --pc. This is especially useful for reverts, since the
EVM does not provide any kind of error messages or stack traces: give it the
last program counter of a failed transaction.`,
		Args: cobra.ExactArgs(1),
		PreRun: func(cmd *cobra.Command, args []string) {
			bindFlags(gs.config, cmd.Flags(), map[string]string{
				"contract":       "contract",
				"runtime":        "runtime",
				"strip_metadata": "strip-metadata",
				"split_data":     "split-data",
				"base_dir":       "base-dir",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := cmd.Flags().GetInt("pc")
			if err != nil {
				return common.WithExitCode(err, common.ExitUsage)
			}
			return runLocate(gs, args[0], pc)
		},
	}

	flags := locateCmd.Flags()
	flags.Int("pc", 0, "program counter of the instruction")
	flags.StringP("contract", "c", "", "contract to look in, as Name or path:Name (default is the first one)")
	flags.Bool("runtime", false, "look in the deployed code instead of the creation code")
	flags.Bool("strip-metadata", true, "drop the solc metadata trailer before walking the bytecode")
	flags.Bool("split-data", true, "stop walking at the INVALID byte that separates code from data")
	flags.String("base-dir", "", "directory source paths are resolved from (default is the bundle's directory)")
	common.Check(locateCmd.MarkFlagRequired("pc"), "failed to mark --pc required")

	return locateCmd
}

func runLocate(gs *globalState, bundlePath string, pc int) error {
	bundle, err := solc.Load(gs.fs, bundlePath)
	if err != nil {
		return common.WithExitCode(err, common.ExitUsage)
	}

	location, err := newConverter(gs, bundlePath).Locate(bundle, gs.config.GetString("contract"), variantOf(gs), pc)
	switch {
	case errors.Is(err, convert.ErrNoSourceContent):
		fmt.Fprintf(gs.stdout, "%s %s\n", location.Instruction.Opcode, location.Source)
		return err
	case err != nil:
		return err
	}

	fmt.Fprintf(gs.stdout, "Op index: %d (%s)\n", location.Index, location.Instruction.Opcode)
	if location.Source == nil {
		fmt.Fprintln(gs.stdout, "Instruction has no source.")
		return nil
	}
	fmt.Fprintf(gs.stdout, "%s %d:%d\n", location.Source.SourceFileName, location.Line, location.Column)
	fmt.Fprintf(gs.stdout, "... %s ...\n", location.Snippet)
	for _, scope := range location.Scopes {
		fmt.Fprintf(gs.stdout, "  in %s %d:%d %s\n", scope.Source.SourceFileName, scope.Line, scope.Column, scope.Header)
	}
	return nil
}
