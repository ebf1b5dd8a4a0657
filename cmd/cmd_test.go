package cmd

import (
	"bytes"
	"os/exec"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/reserve-protocol/ethdebug/common"
	"github.com/reserve-protocol/ethdebug/ethdebug"
)

const counterBundle = "../convert/testdata/combined.json"

type testState struct {
	*globalState
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

// newTestState reads fixtures from disk and keeps every write in memory.
func newTestState(t *testing.T) *testState {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	logger := logrus.New()
	logger.SetOutput(stderr)

	return &testState{
		globalState: &globalState{
			fs:         afero.NewCopyOnWriteFs(afero.NewReadOnlyFs(afero.NewOsFs()), afero.NewMemMapFs()),
			config:     newConfig(),
			logger:     logger,
			stdout:     stdout,
			stderr:     stderr,
			workingDir: ".",
		},
		stdout: stdout,
		stderr: stderr,
	}
}

func (ts *testState) run(args ...string) error {
	root := newRootCommand(ts.globalState)
	root.SetArgs(args)
	return root.Execute()
}

func TestConvertToStdout(t *testing.T) {
	ts := newTestState(t)
	require.NoError(t, ts.run("convert", counterBundle, "--runtime", "--format", "json"))

	out := ts.stdout.String()
	require.True(t, gjson.Valid(out))
	assert.Equal(t, int64(58), gjson.Get(out, "instructions.#").Int())
	assert.Equal(t, "runtime", gjson.Get(out, "environment").String())
	assert.Equal(t, "Counter", gjson.Get(out, "contract.name").String())
	assert.Equal(t, "ethdebug", gjson.Get(out, "format").String())
	assert.False(t, gjson.Get(out, "ranges").Exists())
	assert.Equal(t, 1, bytes.Count(ts.stdout.Bytes(), []byte("\n")), "compact output is one line")
}

func TestConvertToFile(t *testing.T) {
	ts := newTestState(t)
	require.NoError(t, ts.run("convert", counterBundle, "-c", "Counter", "-o", "/out/counter.json", "--coalesce"))
	assert.Empty(t, ts.stdout.String())
	assert.Contains(t, ts.stderr.String(), "Wrote /out/counter.json (26 instructions)")

	data, err := afero.ReadFile(ts.fs, "/out/counter.json")
	require.NoError(t, err)
	doc, err := ethdebug.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, "create", doc.Environment)
	assert.Len(t, doc.Instructions, 26)
	assert.NotEmpty(t, doc.Ranges)
}

func TestConvertAllToDirectory(t *testing.T) {
	ts := newTestState(t)
	require.NoError(t, ts.run("convert", counterBundle, "--all", "--runtime", "-o", "/out"))

	exists, err := afero.Exists(ts.fs, "/out/Counter.runtime.ethdebug.json")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestConvertAllKeepsContractsWithTheSameName(t *testing.T) {
	ts := newTestState(t)
	require.NoError(t, ts.fs.MkdirAll("/src", 0o755))
	require.NoError(t, afero.WriteFile(ts.fs, "/src/combined.json", []byte(`{
	  "contracts": {
	    "A.sol:Token": {"bin": "6001600201", "srcmap": "0:5:0;;"},
	    "B.sol:Token": {"bin": "600100", "srcmap": "0:3:1;"},
	    "B.sol:Vault": {"bin": "00", "srcmap": "0:1:1"}
	  },
	  "sourceList": ["A.sol", "B.sol"]
	}`), 0o644))

	require.NoError(t, ts.run("convert", "/src/combined.json", "--all", "-o", "/out"))

	for name, instructions := range map[string]int64{
		"/out/A.sol_Token.create.ethdebug.json": 3,
		"/out/B.sol_Token.create.ethdebug.json": 2,
		"/out/Vault.create.ethdebug.json":       1,
	} {
		data, err := afero.ReadFile(ts.fs, name)
		require.NoError(t, err, name)
		assert.Equal(t, instructions, gjson.GetBytes(data, "instructions.#").Int(), name)
	}
	exists, err := afero.Exists(ts.fs, "/out/Token.create.ethdebug.json")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestConvertUnknownFormat(t *testing.T) {
	ts := newTestState(t)
	err := ts.run("convert", counterBundle, "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, common.ExitUsage, common.ExitCodeOf(err))
}

func TestConvertUnknownContract(t *testing.T) {
	ts := newTestState(t)
	err := ts.run("convert", counterBundle, "-c", "Missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing")
	assert.Equal(t, common.ExitUsage, common.ExitCodeOf(err))
}

func TestConvertFailureExitsWithConversionCode(t *testing.T) {
	ts := newTestState(t)
	err := ts.run("convert", counterBundle, "--runtime", "--split-data=false")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInstructionCountMismatch)
	assert.Equal(t, common.ExitConversion, common.ExitCodeOf(err))
}

func TestConvertValidate(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no sh in PATH")
	}

	ts := newTestState(t)
	require.NoError(t, ts.run("convert", counterBundle, "-o", "/out/ok.json", "--validate", "--validator", "sh,-c,echo looks fine"))
	assert.Contains(t, ts.stderr.String(), "looks fine")
	assert.Contains(t, ts.stderr.String(), "Validation passed: /out/ok.json")

	ts = newTestState(t)
	err := ts.run("convert", counterBundle, "-o", "/out/bad.json", "--validate", "--validator", "sh,-c,exit 1")
	require.Error(t, err)
	assert.Equal(t, common.ExitValidation, common.ExitCodeOf(err))
	assert.Contains(t, ts.stderr.String(), "Validation failed: /out/bad.json")
}

func TestConvertValidatorMissingIsSkipped(t *testing.T) {
	ts := newTestState(t)
	require.NoError(t, ts.run("convert", counterBundle, "-o", "/out/doc.json", "--validate", "--validator", "ethdebug-stats-that-does-not-exist"))
	assert.Contains(t, ts.stderr.String(), "Validator not installed")
}

func TestLocate(t *testing.T) {
	ts := newTestState(t)
	require.NoError(t, ts.run("locate", counterBundle, "--runtime", "--pc", "81"))
	assert.Equal(t, "Op index: 54 (ADD)\n"+
		"contracts/Counter.sol 12:9\n"+
		"... count += 1 ...\n"+
		"  in contracts/Counter.sol 11:5 function increment() public {\n"+
		"  in contracts/Counter.sol 4:1 contract Counter {\n", ts.stdout.String())
}

func TestLocateWithoutSource(t *testing.T) {
	ts := newTestState(t)
	require.NoError(t, ts.run("locate", counterBundle, "--runtime", "--pc", "11"))
	assert.Contains(t, ts.stdout.String(), "Instruction has no source.")
}

func TestLocateRequiresPc(t *testing.T) {
	ts := newTestState(t)
	assert.Error(t, ts.run("locate", counterBundle))
}
