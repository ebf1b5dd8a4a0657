package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/reserve-protocol/ethdebug/common"
	"github.com/reserve-protocol/ethdebug/convert"
	"github.com/reserve-protocol/ethdebug/ethdebug"
	"github.com/reserve-protocol/ethdebug/solc"
	"github.com/reserve-protocol/ethdebug/validator"
)

func newConvertCommand(gs *globalState) *cobra.Command {
	convertCmd := &cobra.Command{
		Use:   "convert <combined.json>",
		Short: "Converts a contract's source map to Ethdebug JSON",
		Long: `Converts the source map and bytecode of a contract in the combined-json
output of solc (--combined-json bin,bin-runtime,srcmap,srcmap-runtime) into
an Ethdebug document. The document goes to stdout unless --output is given.

With --all every contract in the bundle is converted. --output is then a
directory that gets one <Contract>.<variant>.ethdebug.json file per contract.`,
		Args: cobra.ExactArgs(1),
		PreRun: func(cmd *cobra.Command, args []string) {
			bindFlags(gs.config, cmd.Flags(), map[string]string{
				"output":         "output",
				"contract":       "contract",
				"runtime":        "runtime",
				"format":         "format",
				"all":            "all",
				"coalesce":       "coalesce",
				"strip_metadata": "strip-metadata",
				"split_data":     "split-data",
				"parallelism":    "parallelism",
				"base_dir":       "base-dir",
				"validate":       "validate",
				"validator":      "validator",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(gs, args[0])
		},
	}

	flags := convertCmd.Flags()
	flags.StringP("output", "o", "", "file (or directory with --all) to write to instead of stdout")
	flags.StringP("contract", "c", "", "contract to convert, as Name or path:Name (default is the first one)")
	flags.Bool("runtime", false, "convert the deployed code instead of the creation code")
	flags.String("format", "pretty", "output format, json or pretty")
	flags.Bool("all", false, "convert every contract in the bundle")
	flags.Bool("coalesce", false, "add ranges of consecutive instructions sharing a source range")
	flags.Bool("strip-metadata", true, "drop the solc metadata trailer before walking the bytecode")
	flags.Bool("split-data", true, "stop walking at the INVALID byte that separates code from data")
	flags.Int("parallelism", 4, "contracts converted at once with --all")
	flags.String("base-dir", "", "directory source paths are resolved from (default is the bundle's directory)")
	flags.Bool("validate", false, "run the validator over the written document")
	flags.StringSlice("validator", validator.DefaultCommand, "validator command, the document path is appended")

	return convertCmd
}

func variantOf(gs *globalState) solc.Variant {
	if gs.config.GetBool("runtime") {
		return solc.Runtime
	}
	return solc.Create
}

func newConverter(gs *globalState, bundlePath string) *convert.Converter {
	baseDir := gs.config.GetString("base_dir")
	if baseDir == "" {
		baseDir = filepath.Dir(bundlePath)
	}
	return convert.New(gs.fs, baseDir, gs.logger, convert.Options{
		StripMetadata: gs.config.GetBool("strip_metadata"),
		SplitData:     gs.config.GetBool("split_data"),
		Coalesce:      gs.config.GetBool("coalesce"),
		Parallelism:   gs.config.GetInt("parallelism"),
	})
}

func runConvert(gs *globalState, bundlePath string) error {
	mode, err := ethdebug.ParseMode(gs.config.GetString("format"))
	if err != nil {
		return common.WithExitCode(err, common.ExitUsage)
	}
	bundle, err := solc.Load(gs.fs, bundlePath)
	if err != nil {
		return common.WithExitCode(err, common.ExitUsage)
	}
	converter := newConverter(gs, bundlePath)

	if gs.config.GetBool("all") {
		return convertAll(gs, converter, bundle, mode)
	}

	doc, err := converter.Convert(bundle, gs.config.GetString("contract"), variantOf(gs))
	if err != nil {
		return err
	}
	return writeDocument(gs, doc, mode, gs.config.GetString("output"))
}

func convertAll(gs *globalState, converter *convert.Converter, bundle *solc.CombinedJSON, mode ethdebug.Mode) error {
	variant := variantOf(gs)
	outputDir := gs.config.GetString("output")
	if outputDir != "" {
		if err := gs.fs.MkdirAll(outputDir, 0o755); err != nil {
			return common.WithExitCode(err, common.ExitUsage)
		}
	}

	names := outputNames(bundle)
	var failed int
	for _, result := range converter.ConvertAll(bundle, variant) {
		logger := gs.logger.WithField("contract", result.Contract)
		switch {
		case errors.Is(result.Err, common.ErrEmptyBytecode):
			logger.Warn("Skipping contract without bytecode")
			continue
		case result.Err != nil:
			logger.WithError(result.Err).Error("Conversion failed")
			failed++
			continue
		}

		output := ""
		if outputDir != "" {
			name := fmt.Sprintf("%s.%s.ethdebug.json", names[result.Contract], variant)
			output = filepath.Join(outputDir, name)
		}
		if err := writeDocument(gs, result.Document, mode, output); err != nil {
			return err
		}
	}

	if failed > 0 {
		return common.WithExitCode(
			fmt.Errorf("%d of %d contracts failed to convert", failed, len(bundle.Contracts)),
			common.ExitConversion,
		)
	}
	return nil
}

// outputNames maps every contract key to the base name of its output file.
// Short names are used unless two contracts share one, in which case those
// contracts are named after their full key, "src/A.sol:Token" becoming
// "src_A.sol_Token".
func outputNames(bundle *solc.CombinedJSON) map[string]string {
	count := map[string]int{}
	for _, contract := range bundle.Contracts {
		count[contract.ShortName()]++
	}

	names := make(map[string]string, len(bundle.Contracts))
	for _, contract := range bundle.Contracts {
		if count[contract.ShortName()] == 1 {
			names[contract.Name] = contract.ShortName()
			continue
		}
		names[contract.Name] = keyReplacer.Replace(contract.Name)
	}
	return names
}

var keyReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_")

func writeDocument(gs *globalState, doc *ethdebug.Document, mode ethdebug.Mode, output string) error {
	data, err := ethdebug.Marshal(doc, mode)
	if err != nil {
		return err
	}

	if output == "" {
		if gs.config.GetBool("validate") {
			gs.logger.Warn("--validate needs --output, skipping validation")
		}
		_, err := gs.stdout.Write(data)
		return err
	}

	if err := gs.fs.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return common.WithExitCode(err, common.ExitUsage)
	}
	if err := afero.WriteFile(gs.fs, output, data, 0o644); err != nil {
		return common.WithExitCode(err, common.ExitUsage)
	}
	color.New(color.FgGreen).Fprintf(gs.stderr, "Wrote %s (%d instructions)\n", output, len(doc.Instructions))

	if gs.config.GetBool("validate") {
		return validate(gs, output)
	}
	return nil
}

func validate(gs *globalState, path string) error {
	command := gs.config.GetStringSlice("validator")
	result, err := validator.Run(context.Background(), command, path)
	if errors.Is(err, validator.ErrValidatorNotFound) {
		gs.logger.WithFields(logrus.Fields{"validator": command}).Warn("Validator not installed, skipping validation")
		return nil
	}
	if err != nil {
		return common.WithExitCode(err, common.ExitValidation)
	}

	if result.Output != "" {
		fmt.Fprint(gs.stderr, result.Output)
	}
	if !result.Passed {
		color.New(color.FgRed).Fprintf(gs.stderr, "Validation failed: %s\n", path)
		return common.WithExitCode(fmt.Errorf("validation failed for %s", path), common.ExitValidation)
	}
	color.New(color.FgGreen).Fprintf(gs.stderr, "Validation passed: %s\n", path)
	return nil
}
