// Package convert runs the conversion of one or all contracts of a
// combined-json bundle into Ethdebug documents.
package convert

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/reserve-protocol/ethdebug/ethdebug"
	"github.com/reserve-protocol/ethdebug/evmbytecode"
	"github.com/reserve-protocol/ethdebug/solc"
	"github.com/reserve-protocol/ethdebug/srcmap"
)

type Options struct {
	// StripMetadata drops the solc metadata trailer before walking.
	StripMetadata bool
	// SplitData stops walking at the INVALID byte solc writes between the
	// code and appended data once every source map entry has an instruction.
	SplitData bool
	// Coalesce adds the ranges section to every document.
	Coalesce bool
	// Parallelism bounds the number of contracts ConvertAll converts at once.
	Parallelism int
}

func DefaultOptions() Options {
	return Options{StripMetadata: true, SplitData: true, Parallelism: 4}
}

// ContractError ties a conversion failure to the contract and variant it
// happened in.
type ContractError struct {
	Contract string
	Variant  solc.Variant
	Err      error
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("contract %s (%s): %v", e.Contract, e.Variant, e.Err)
}

func (e *ContractError) Unwrap() error { return e.Err }

type Converter struct {
	Fs afero.Fs
	// BaseDir is where source paths in the file table are resolved from.
	BaseDir string
	Logger  logrus.FieldLogger
	Options Options
}

func New(fs afero.Fs, baseDir string, logger logrus.FieldLogger, options Options) *Converter {
	return &Converter{Fs: fs, BaseDir: baseDir, Logger: logger, Options: options}
}

func (c *Converter) logger() logrus.FieldLogger {
	if c.Logger == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		return logger
	}
	return c.Logger
}

// Sources builds the document file table for bundle.
func (c *Converter) Sources(bundle *solc.CombinedJSON) []ethdebug.Source {
	files := bundle.Files(c.Fs, c.BaseDir)
	sources := make([]ethdebug.Source, len(files))
	for i, file := range files {
		sources[i] = ethdebug.Source{ID: i, Path: file.Path, Content: file.Content}
	}
	return sources
}

// Convert converts the contract called name, or the first contract when name
// is empty.
func (c *Converter) Convert(bundle *solc.CombinedJSON, name string, variant solc.Variant) (*ethdebug.Document, error) {
	contract, err := bundle.Contract(name)
	if err != nil {
		return nil, err
	}
	doc, _, err := c.convert(bundle, contract, variant, c.Sources(bundle))
	return doc, err
}

type Result struct {
	Contract string
	Document *ethdebug.Document
	Err      error
}

// ConvertAll converts every contract in bundle. A contract that fails only
// sets the Err of its own Result. Results are in bundle order.
func (c *Converter) ConvertAll(bundle *solc.CombinedJSON, variant solc.Variant) []Result {
	sources := c.Sources(bundle)
	results := make([]Result, len(bundle.Contracts))

	var g errgroup.Group
	if c.Options.Parallelism > 0 {
		g.SetLimit(c.Options.Parallelism)
	}
	for i, contract := range bundle.Contracts {
		i, contract := i, contract
		g.Go(func() error {
			doc, _, err := c.convert(bundle, contract, variant, sources)
			results[i] = Result{Contract: contract.Name, Document: doc, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Converter) convert(bundle *solc.CombinedJSON, contract solc.Contract, variant solc.Variant, sources []ethdebug.Source) (*ethdebug.Document, []evmbytecode.Instruction, error) {
	logger := c.logger().WithFields(logrus.Fields{"contract": contract.Name, "variant": variant.String()})

	doc, instructions, err := c.build(bundle, contract, variant, sources)
	if err != nil {
		logger.WithError(err).Debug("Conversion failed")
		return nil, nil, &ContractError{Contract: contract.Name, Variant: variant, Err: err}
	}
	logger.WithField("instructions", len(doc.Instructions)).Debug("Converted")
	return doc, instructions, nil
}

func (c *Converter) build(bundle *solc.CombinedJSON, contract solc.Contract, variant solc.Variant, sources []ethdebug.Source) (*ethdebug.Document, []evmbytecode.Instruction, error) {
	bytecodeHex, rawSrcmap, err := contract.Artifact(variant)
	if err != nil {
		return nil, nil, err
	}
	bytecode, err := evmbytecode.ParseHex(bytecodeHex)
	if err != nil {
		return nil, nil, err
	}

	mappings, err := srcmap.Decode(rawSrcmap)
	if err != nil {
		return nil, nil, err
	}

	code := bytecode
	if c.Options.StripMetadata {
		code = evmbytecode.StripMetadata(code)
	}
	if c.Options.SplitData {
		var data []byte
		code, data = evmbytecode.CodeSection(code, len(mappings))
		if len(data) > 0 {
			c.logger().WithFields(logrus.Fields{
				"contract":   contract.Name,
				"variant":    variant.String(),
				"codeLength": len(code),
				"dataLength": len(data),
			}).Info("Data section after code")
		}
	}

	instructions, err := evmbytecode.Walk(code)
	if err != nil {
		return nil, nil, err
	}
	if err := ethdebug.CheckCounts(instructions, mappings); err != nil {
		return nil, nil, err
	}

	doc, err := ethdebug.Emit(instructions, mappings, sources, ethdebug.Meta{
		Environment:     variant.String(),
		ContractName:    contract.ShortName(),
		Bytecode:        artifactHex(bytecodeHex),
		CodeLength:      len(code),
		CompilerVersion: bundle.Version,
	})
	if err != nil {
		return nil, nil, err
	}
	if c.Options.Coalesce {
		doc.Ranges = ethdebug.Coalesce(doc.Instructions)
	}
	return doc, instructions, nil
}

// artifactHex is the bytecode as solc wrote it, placeholders included.
func artifactHex(bytecode string) string {
	bytecode = strings.TrimSpace(bytecode)
	if strings.HasPrefix(bytecode, "0x") || strings.HasPrefix(bytecode, "0X") {
		return bytecode[2:]
	}
	return bytecode
}
