// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/mnncorrect"
	"github.com/katalvlaran/mnncorrect/config"
	"github.com/katalvlaran/mnncorrect/dataio"
	"github.com/katalvlaran/mnncorrect/merge"
)

const shiftTable = `cell,batch,g1,g2
a1,A,1,0
b1,B,5,0
a2,A,1,1
b2,B,5,1
`

type fixture struct {
	dir string
}

func newFixture(t *testing.T) fixture {
	return fixture{dir: t.TempDir()}
}

func (f fixture) file(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

// exec runs the CLI with an isolated env file.
func (f fixture) exec(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	args = append([]string{"--env-file", filepath.Join(f.dir, "none.env")}, args...)
	code := run(args, &stdout, &stderr)

	return code, stdout.String(), stderr.String()
}

// smallConfig writes a fresh config file sized for the four-cell table.
func (f fixture) smallConfig(t *testing.T, extra string) string {
	t.Helper()
	fh, err := os.CreateTemp(f.dir, "mnn-*.yaml")
	require.NoError(t, err)
	_, err = fh.WriteString("merge:\n  k: 1\n" + extra + "pca:\n  components: 2\n")
	require.NoError(t, err)
	require.NoError(t, fh.Close())

	return fh.Name()
}

func TestVersion(t *testing.T) {
	code, out, _ := newFixture(t).exec("version")
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "mnncorrect dev\n", out)
}

func TestCorrectToStdout(t *testing.T) {
	f := newFixture(t)
	table := f.file(t, "in.csv", shiftTable)
	code, out, errOut := f.exec("--config", f.smallConfig(t, ""), "correct", table)
	require.Equal(t, ExitSuccess, code, errOut)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "cell,batch,PC1,PC2", lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "b1,B,"))
}

func TestCorrectTopGenes(t *testing.T) {
	f := newFixture(t)
	table := f.file(t, "in.csv", `cell,batch,g1,g2,g3
a1,A,1,0,7
b1,B,5,0,7
a2,A,1,1,7
b2,B,5,1,7
`)
	expr := filepath.Join(f.dir, "expr.csv")
	code, _, errOut := f.exec("--config", f.smallConfig(t, ""), "correct", table,
		"--top-genes", "2", "--expression", expr)
	require.Equal(t, ExitSuccess, code, errOut)

	fe, err := os.Open(expr)
	require.NoError(t, err)
	defer fe.Close()
	ds, err := dataio.ReadCSV(fe)
	require.NoError(t, err)
	assert.Equal(t, []string{"g1", "g2"}, ds.Genes)

	code, _, _ = f.exec("--config", f.smallConfig(t, ""), "correct", table, "--top-genes", "4")
	assert.Equal(t, ExitDataError, code)
}

func TestCorrectWritesOutputs(t *testing.T) {
	f := newFixture(t)
	table := f.file(t, "in.csv", shiftTable)
	coords := filepath.Join(f.dir, "coords.csv")
	expr := filepath.Join(f.dir, "expr.csv")
	diag := filepath.Join(f.dir, "diag.json")

	code, out, errOut := f.exec("--config", f.smallConfig(t, ""), "correct", table,
		"--coordinates", coords, "--expression", expr, "--diagnostics", diag, "--mixing-k", "1")
	require.Equal(t, ExitSuccess, code, errOut)
	assert.Empty(t, out)

	fe, err := os.Open(expr)
	require.NoError(t, err)
	defer fe.Close()
	ds, err := dataio.ReadCSV(fe)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "b1", "a2", "b2"}, ds.Cells)
	want := []float64{1, 0, 1, 1}
	for k, v := range ds.Matrices[1].RawData() {
		assert.InDelta(t, want[k], v, 1e-9)
	}

	data, err := os.ReadFile(diag)
	require.NoError(t, err)
	var rep dataio.Report
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, []string{"A", "B"}, rep.Order)
	assert.Equal(t, []int{2}, rep.PairCounts)
	assert.Equal(t, 1, rep.K)
	require.NotNil(t, rep.Mixing)
	assert.Equal(t, 1, rep.Mixing.K)

	_, err = os.Stat(coords)
	assert.NoError(t, err)
}

func TestCorrectOrderFlag(t *testing.T) {
	f := newFixture(t)
	table := f.file(t, "in.csv", shiftTable)
	diag := filepath.Join(f.dir, "diag.json")
	code, _, errOut := f.exec("--config", f.smallConfig(t, ""), "correct", table,
		"--order", "B,A", "--diagnostics", diag)
	require.Equal(t, ExitSuccess, code, errOut)

	data, err := os.ReadFile(diag)
	require.NoError(t, err)
	var rep dataio.Report
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, []string{"B", "A"}, rep.Order)
	assert.Equal(t, []int{1, 0}, rep.OrderIndex)
}

func TestExitCodes(t *testing.T) {
	f := newFixture(t)
	table := f.file(t, "in.csv", shiftTable)
	ragged := f.file(t, "ragged.csv", "cell,batch,g1\na,A,1,2\n")

	cases := []struct {
		name string
		args []string
		want int
	}{
		{"missing argument", []string{"correct"}, ExitError},
		{"missing file", []string{"--config", f.smallConfig(t, ""), "correct", filepath.Join(f.dir, "nope.csv")}, ExitError},
		{"bad config", []string{"--config", f.file(t, "bad.yaml", "merge:\n  k: 0\n"), "correct", table}, ExitConfigError},
		{"bad flag value", []string{"--config", f.smallConfig(t, ""), "correct", table, "--space", "genes"}, ExitConfigError},
		{"ragged table", []string{"correct", ragged}, ExitDataError},
		{"k too large", []string{"--config", f.smallConfig(t, ""), "correct", table, "--k", "5"}, ExitDataError},
		{"too few pairs", []string{"--config", f.smallConfig(t, "  min_pairs: 5\n"), "correct", table}, ExitNoPairs},
		{"unknown order batch", []string{"--config", f.smallConfig(t, ""), "correct", table, "--order", "A,C"}, ExitConfigError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _, errOut := f.exec(tc.args...)
			assert.Equal(t, tc.want, code, errOut)
			if tc.want != ExitSuccess {
				assert.Contains(t, errOut, "Error:")
			}
		})
	}
}

func TestExitCodeMapping(t *testing.T) {
	assert.Equal(t, ExitSuccess, exitCode(nil))
	assert.Equal(t, ExitError, exitCode(errors.New("boom")))
	assert.Equal(t, ExitConfigError, exitCode(fmt.Errorf("x: %w", config.ErrConfig)))
	assert.Equal(t, ExitDataError, exitCode(dataio.ErrRagged))
	assert.Equal(t, ExitNoPairs, exitCode(&merge.StepError{Err: merge.ErrTooFewPairs}))
	assert.Equal(t, ExitNumerical, exitCode(fmt.Errorf("x: %w", mnncorrect.ErrNumericalInstability)))
}

func TestPairs(t *testing.T) {
	f := newFixture(t)
	table := f.file(t, "in.csv", shiftTable)
	code, out, errOut := f.exec("--config", f.smallConfig(t, ""), "pairs", table, "--k", "1,2")
	require.Equal(t, ExitSuccess, code, errOut)

	var resp PairsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "A", resp.Reference)
	assert.Equal(t, "B", resp.Target)
	assert.Equal(t, []PairCount{
		{K: 1, Pairs: 2, ReferenceCells: 2, TargetCells: 2},
		{K: 2, Pairs: 4, ReferenceCells: 2, TargetCells: 2},
	}, resp.Counts)

	code, _, _ = f.exec("--config", f.smallConfig(t, ""), "pairs", table, "--target", "C")
	assert.Equal(t, ExitDataError, code)
	code, _, _ = f.exec("--config", f.smallConfig(t, ""), "pairs", table, "--k", "3")
	assert.Equal(t, ExitDataError, code)
}

func TestCluster(t *testing.T) {
	f := newFixture(t)
	coords := f.file(t, "coords.csv", `cell,batch,PC1
c1,x,0
c2,x,0.1
c3,x,0.2
c4,y,10
c5,y,10.1
c6,y,10.2
`)
	labels := filepath.Join(f.dir, "labels.csv")
	code, out, errOut := f.exec("cluster", coords, "--k", "3", "--min-weight", "0.5", "--labels", labels)
	require.Equal(t, ExitSuccess, code, errOut)

	var resp ClusterResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 6, resp.Cells)
	assert.Equal(t, 2, resp.Clusters)
	assert.Equal(t, []int{3, 3}, resp.Sizes)
	require.NotNil(t, resp.Mixing)
	assert.Equal(t, 2, resp.Mixing.K)
	assert.InDelta(t, 1.0, resp.Mixing.SameBatch, 1e-12)
	assert.Equal(t, 2, resp.Mixing.Clusters)

	data, err := os.ReadFile(labels)
	require.NoError(t, err)
	assert.Equal(t, "cell,batch,cluster\nc1,x,0\nc2,x,0\nc3,x,0\nc4,y,1\nc5,y,1\nc6,y,1\n", string(data))
}
