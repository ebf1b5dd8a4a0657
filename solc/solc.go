package solc

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
	"gopkg.in/guregu/null.v3"

	"github.com/reserve-protocol/ethdebug/common"
)

// Variant selects which of a contract's two programs to convert.
type Variant int

const (
	Create Variant = iota
	Runtime
)

func (v Variant) String() string {
	if v == Runtime {
		return "runtime"
	}
	return "create"
}

// CombinedJSON is the output of solc --combined-json with the contracts kept
// in the order solc wrote them.
type CombinedJSON struct {
	Contracts  []Contract
	SourceList []string
	Sources    map[string]SourceArtifact
	Version    string
}

type Contract struct {
	// Name is the key solc uses, "path/to/File.sol:Name".
	Name string
	artifacts
}

type artifacts struct {
	Bin           string `json:"bin"`
	BinRuntime    string `json:"bin-runtime"`
	Srcmap        string `json:"srcmap"`
	SrcmapRuntime string `json:"srcmap-runtime"`
}

type SourceArtifact struct {
	ID      *int        `json:"id"`
	Content null.String `json:"content"`
}

// ShortName is the contract name without its source path.
func (c Contract) ShortName() string {
	if i := strings.LastIndex(c.Name, ":"); i != -1 {
		return c.Name[i+1:]
	}
	return c.Name
}

// Artifact returns the hex bytecode and source map for variant.
func (c Contract) Artifact(variant Variant) (bytecode string, srcmap string, err error) {
	if variant == Runtime {
		bytecode, srcmap = c.BinRuntime, c.SrcmapRuntime
	} else {
		bytecode, srcmap = c.Bin, c.Srcmap
	}
	if strings.TrimPrefix(strings.TrimSpace(bytecode), "0x") == "" {
		return "", "", common.ErrEmptyBytecode
	}
	return bytecode, srcmap, nil
}

var ErrNoContracts = errors.New("combined-json has no contracts")

// Load reads and parses a combined-json file.
func Load(fs afero.Fs, path string) (*CombinedJSON, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	bundle, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bundle, nil
}

func Parse(data []byte) (*CombinedJSON, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid JSON")
	}
	root := gjson.ParseBytes(data)

	bundle := &CombinedJSON{
		Sources: make(map[string]SourceArtifact),
		Version: root.Get("version").String(),
	}

	var err error
	root.Get("contracts").ForEach(func(key, value gjson.Result) bool {
		contract := Contract{Name: key.String()}
		if err = json.Unmarshal([]byte(value.Raw), &contract.artifacts); err != nil {
			err = fmt.Errorf("contract %s: %w", contract.Name, err)
			return false
		}
		bundle.Contracts = append(bundle.Contracts, contract)
		return true
	})
	if err != nil {
		return nil, err
	}
	if len(bundle.Contracts) == 0 {
		return nil, ErrNoContracts
	}

	var sourceOrder []string
	root.Get("sources").ForEach(func(key, value gjson.Result) bool {
		var source SourceArtifact
		if err = json.Unmarshal([]byte(value.Raw), &source); err != nil {
			err = fmt.Errorf("source %s: %w", key.String(), err)
			return false
		}
		bundle.Sources[key.String()] = source
		sourceOrder = append(sourceOrder, key.String())
		return true
	})
	if err != nil {
		return nil, err
	}

	for _, path := range root.Get("sourceList").Array() {
		bundle.SourceList = append(bundle.SourceList, path.String())
	}
	if bundle.SourceList == nil {
		bundle.SourceList = sourceListFromSources(sourceOrder, bundle.Sources)
	}
	return bundle, nil
}

// Without a sourceList the file table is the sources object, ordered by the
// ids solc assigned when every source has one.
func sourceListFromSources(order []string, sources map[string]SourceArtifact) []string {
	list := append([]string(nil), order...)
	for _, path := range list {
		if sources[path].ID == nil {
			return list
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return *sources[list[i]].ID < *sources[list[j]].ID
	})
	return list
}

// Contract finds a contract by its full key or by its short name. An empty
// name selects the first contract.
func (b *CombinedJSON) Contract(name string) (Contract, error) {
	if name == "" {
		return b.Contracts[0], nil
	}
	for _, contract := range b.Contracts {
		if contract.Name == name || strings.HasSuffix(contract.Name, ":"+name) {
			return contract, nil
		}
	}
	names := make([]string, len(b.Contracts))
	for i, contract := range b.Contracts {
		names[i] = contract.Name
	}
	return Contract{}, fmt.Errorf("contract %q not found, have %s", name, strings.Join(names, ", "))
}

// SourceFile is one entry of the file table.
type SourceFile struct {
	Path    string
	Content null.String
}

// Files returns the file table. Contents are read from disk relative to
// baseDir, falling back to the content embedded in the combined-json.
func (b *CombinedJSON) Files(fs afero.Fs, baseDir string) []SourceFile {
	files := make([]SourceFile, len(b.SourceList))
	for i, path := range b.SourceList {
		files[i] = SourceFile{Path: path, Content: b.Sources[path].Content}

		fullPath := path
		if !filepath.IsAbs(path) {
			fullPath = filepath.Join(baseDir, path)
		}
		if content, err := afero.ReadFile(fs, fullPath); err == nil {
			files[i].Content = null.StringFrom(string(content))
		}
	}
	return files
}
