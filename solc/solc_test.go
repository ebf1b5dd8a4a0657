package solc

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reserve-protocol/ethdebug/common"
)

const bundleJSON = `{
  "contracts": {
    "contracts/Token.sol:Token": {
      "bin": "6080",
      "bin-runtime": "",
      "srcmap": "0:10:0",
      "srcmap-runtime": ""
    },
    "contracts/Counter.sol:Counter": {
      "abi": [],
      "bin": "0x6001",
      "bin-runtime": "00",
      "srcmap": "1:2:1",
      "srcmap-runtime": "3:4:1"
    }
  },
  "sourceList": ["contracts/Token.sol", "contracts/Counter.sol"],
  "sources": {
    "contracts/Token.sol": {"content": "contract Token {}"},
    "contracts/Counter.sol": {}
  },
  "version": "0.8.19+commit.7dd6d404.Linux.g++"
}`

func TestParseKeepsContractOrder(t *testing.T) {
	bundle, err := Parse([]byte(bundleJSON))
	require.NoError(t, err)

	require.Len(t, bundle.Contracts, 2)
	assert.Equal(t, "contracts/Token.sol:Token", bundle.Contracts[0].Name)
	assert.Equal(t, "contracts/Counter.sol:Counter", bundle.Contracts[1].Name)
	assert.Equal(t, []string{"contracts/Token.sol", "contracts/Counter.sol"}, bundle.SourceList)
	assert.Equal(t, "0.8.19+commit.7dd6d404.Linux.g++", bundle.Version)
}

func TestContractSelection(t *testing.T) {
	bundle, err := Parse([]byte(bundleJSON))
	require.NoError(t, err)

	first, err := bundle.Contract("")
	require.NoError(t, err)
	assert.Equal(t, "Token", first.ShortName())

	counter, err := bundle.Contract("Counter")
	require.NoError(t, err)
	assert.Equal(t, "contracts/Counter.sol:Counter", counter.Name)

	byKey, err := bundle.Contract("contracts/Counter.sol:Counter")
	require.NoError(t, err)
	assert.Equal(t, counter, byKey)

	_, err = bundle.Contract("Missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contracts/Token.sol:Token")
}

func TestArtifact(t *testing.T) {
	bundle, err := Parse([]byte(bundleJSON))
	require.NoError(t, err)
	counter, err := bundle.Contract("Counter")
	require.NoError(t, err)

	bytecode, srcmap, err := counter.Artifact(Create)
	require.NoError(t, err)
	assert.Equal(t, "0x6001", bytecode)
	assert.Equal(t, "1:2:1", srcmap)

	bytecode, srcmap, err = counter.Artifact(Runtime)
	require.NoError(t, err)
	assert.Equal(t, "00", bytecode)
	assert.Equal(t, "3:4:1", srcmap)

	token, err := bundle.Contract("Token")
	require.NoError(t, err)
	_, _, err = token.Artifact(Runtime)
	assert.True(t, errors.Is(err, common.ErrEmptyBytecode))
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`{"contracts":`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"contracts":{}}`))
	assert.True(t, errors.Is(err, ErrNoContracts))

	_, err = Parse([]byte(`{"contracts":{"A.sol:A":{"bin":5}}}`))
	assert.Error(t, err)
}

func TestSourceListFallsBackToSources(t *testing.T) {
	bundle, err := Parse([]byte(`{
  "contracts": {"B.sol:B": {"bin": "00", "srcmap": ""}},
  "sources": {"B.sol": {"id": 1}, "A.sol": {"id": 0}}
}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"A.sol", "B.sol"}, bundle.SourceList)

	bundle, err = Parse([]byte(`{
  "contracts": {"B.sol:B": {"bin": "00", "srcmap": ""}},
  "sources": {"B.sol": {}, "A.sol": {}}
}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"B.sol", "A.sol"}, bundle.SourceList)
}

func TestFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/contracts/Counter.sol", []byte("contract Counter {}"), 0o644))

	bundle, err := Load(fs, "/work/combined.json")
	assert.Error(t, err, "missing file")

	require.NoError(t, afero.WriteFile(fs, "/work/combined.json", []byte(bundleJSON), 0o644))
	bundle, err = Load(fs, "/work/combined.json")
	require.NoError(t, err)

	files := bundle.Files(fs, "/work")
	require.Len(t, files, 2)
	assert.Equal(t, "contracts/Token.sol", files[0].Path)
	assert.Equal(t, "contract Token {}", files[0].Content.String, "embedded content")
	assert.Equal(t, "contract Counter {}", files[1].Content.String, "read from disk")
	assert.True(t, files[1].Content.Valid)

	files = bundle.Files(afero.NewMemMapFs(), "/work")
	assert.False(t, files[1].Content.Valid)
}
