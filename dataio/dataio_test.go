// SPDX-License-Identifier: MIT

package dataio_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/mnncorrect"
	"github.com/katalvlaran/mnncorrect/dataio"
	"github.com/katalvlaran/mnncorrect/matrix"
	"github.com/katalvlaran/mnncorrect/merge"
)

const table = `# two batches, interleaved
cell,batch,g1,g2
c1,B,5,0
c2,A,1,0
c3,B,5,1
c4,A,1,1
`

func TestReadCSV(t *testing.T) {
	ds, err := dataio.ReadCSV(strings.NewReader(table))
	require.NoError(t, err)

	assert.Equal(t, []string{"c1", "c2", "c3", "c4"}, ds.Cells)
	assert.Equal(t, []string{"g1", "g2"}, ds.Genes)
	assert.Equal(t, []string{"B", "A"}, ds.Batches)
	assert.Equal(t, []int{0, 1, 0, 1}, ds.BatchOf)
	assert.Equal(t, 4, ds.NumCells())
	assert.Equal(t, []int{0, 0, 1, 1}, ds.BatchLabels())

	require.Len(t, ds.Matrices, 2)
	assert.Equal(t, []float64{5, 0, 5, 1}, ds.Matrices[0].RawData())
	assert.Equal(t, []float64{1, 0, 1, 1}, ds.Matrices[1].RawData())

	b, err := ds.BatchIndex("A")
	require.NoError(t, err)
	assert.Equal(t, 1, b)
	_, err = ds.BatchIndex("C")
	assert.ErrorIs(t, err, dataio.ErrUnknownBatch)

	batches := ds.MergeBatches()
	assert.Equal(t, "B", batches[0].Name)
	assert.Same(t, ds.Matrices[1], batches[1].X)
}

func TestReadCSVTabs(t *testing.T) {
	in := "Cell\tBatch\tg1\nx\tb1\t0.5\ny\tb1\t-2e-3\n"
	ds, err := dataio.ReadCSV(strings.NewReader(in), dataio.WithDelimiter('\t'))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -0.002}, ds.Matrices[0].RawData())
}

func TestReadCSVErrors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "", dataio.ErrEmpty},
		{"header only", "cell,batch,g1\n", dataio.ErrEmpty},
		{"no genes", "cell,batch\nc,b\n", dataio.ErrHeader},
		{"wrong header", "id,batch,g1\nc,b,1\n", dataio.ErrHeader},
		{"empty gene", "cell,batch,g1,\nc,b,1,2\n", dataio.ErrHeader},
		{"duplicate gene", "cell,batch,g1,g1\nc,b,1,2\n", dataio.ErrDuplicate},
		{"duplicate cell", "cell,batch,g1\nc,b,1\nc,b,2\n", dataio.ErrDuplicate},
		{"ragged", "cell,batch,g1,g2\nc,b,1\n", dataio.ErrRagged},
		{"non numeric", "cell,batch,g1\nc,b,x\n", dataio.ErrValue},
		{"nan", "cell,batch,g1\nc,b,NaN\n", dataio.ErrValue},
		{"inf", "cell,batch,g1\nc,b,+Inf\n", dataio.ErrValue},
		{"empty batch", "cell,batch,g1\nc,,1\n", dataio.ErrValue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ds, err := dataio.ReadCSV(strings.NewReader(tc.in))
			assert.Nil(t, ds)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, mnncorrect.ErrInvalidInput)
		})
	}
}

func TestRaggedReportsLine(t *testing.T) {
	_, err := dataio.ReadCSV(strings.NewReader("cell,batch,g1\nc1,b,1\nc2,b\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestGeneListAndIndex(t *testing.T) {
	names, err := dataio.ReadGeneList(strings.NewReader("# hvg\ng2\n\n  g1  \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"g2", "g1"}, names)

	ds, err := dataio.ReadCSV(strings.NewReader(table))
	require.NoError(t, err)
	cols, err := ds.GeneIndex(names)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, cols)

	_, err = ds.GeneIndex([]string{"g9"})
	assert.ErrorIs(t, err, dataio.ErrUnknownGene)
	_, err = ds.GeneIndex([]string{"g1", "g1"})
	assert.ErrorIs(t, err, dataio.ErrDuplicate)

	_, err = dataio.ReadGeneList(strings.NewReader("# nothing\n"))
	assert.ErrorIs(t, err, dataio.ErrEmpty)
	_, err = dataio.ReadGeneList(strings.NewReader("a\na\n"))
	assert.ErrorIs(t, err, dataio.ErrDuplicate)
}

func TestWritersRestoreCellOrder(t *testing.T) {
	ds, err := dataio.ReadCSV(strings.NewReader(table))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, dataio.WriteExpression(&buf, ds, []int{0, 1}, ds.Matrices))
	want := "cell,batch,g1,g2\nc1,B,5,0\nc2,A,1,0\nc3,B,5,1\nc4,A,1,1\n"
	assert.Equal(t, want, buf.String())

	coords := []*matrix.Dense{ds.Matrices[0].Clone(), ds.Matrices[1].Clone()}
	buf.Reset()
	require.NoError(t, dataio.WriteCoordinates(&buf, ds, coords, dataio.WithDelimiter('\t')))
	assert.True(t, strings.HasPrefix(buf.String(), "cell\tbatch\tPC1\tPC2\nc1\tB\t5\t0\n"))

	// Coordinates round-trip through the reader.
	back, err := dataio.ReadCSV(&buf, dataio.WithDelimiter('\t'))
	require.NoError(t, err)
	assert.Equal(t, ds.Cells, back.Cells)
	assert.Equal(t, ds.Matrices[1].RawData(), back.Matrices[1].RawData())
}

func TestWriterShapeErrors(t *testing.T) {
	ds, err := dataio.ReadCSV(strings.NewReader(table))
	require.NoError(t, err)
	var buf bytes.Buffer

	assert.ErrorIs(t, dataio.WriteCoordinates(&buf, ds, nil), dataio.ErrShape)
	assert.ErrorIs(t, dataio.WriteCoordinates(&buf, ds, ds.Matrices[:1]), dataio.ErrShape)
	assert.ErrorIs(t, dataio.WriteExpression(&buf, ds, []int{0}, ds.Matrices), dataio.ErrShape)
	assert.ErrorIs(t, dataio.WriteExpression(&buf, ds, []int{0, 7}, ds.Matrices), dataio.ErrShape)
}

func TestPrecision(t *testing.T) {
	ds, err := dataio.ReadCSV(strings.NewReader("cell,batch,g\na,b,0.123456789\n"))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, dataio.WriteExpression(&buf, ds, []int{0}, ds.Matrices, dataio.WithPrecision(3)))
	assert.Equal(t, "cell,batch,g\na,b,0.123\n", buf.String())
}

func TestDiagnosticsReport(t *testing.T) {
	ds, err := dataio.ReadCSV(strings.NewReader(table))
	require.NoError(t, err)
	res, err := merge.Correct(context.Background(), ds.MergeBatches(),
		merge.WithK(1), merge.WithComponents(2), merge.WithOrder([]int{1, 0}))
	require.NoError(t, err)

	rep := dataio.NewReport(res, 1, 2)
	rep.Mixing = &dataio.Mixing{K: 1, SameBatch: 0.5, ExpectedSameBatch: 0.5}
	var buf bytes.Buffer
	require.NoError(t, dataio.WriteDiagnostics(&buf, rep))

	var got dataio.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	if diff := cmp.Diff(rep, got); diff != "" {
		t.Fatalf("report round trip (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"A", "B"}, got.Order)
	assert.Equal(t, []int{2}, got.PairCounts)
	assert.Contains(t, buf.String(), `"same_batch_fraction": 0.5`)
}

func TestEmptyReportHasNoNulls(t *testing.T) {
	ds, err := dataio.ReadCSV(strings.NewReader("cell,batch,g1,g2\na,b,1,0\nc,b,0,1\n"))
	require.NoError(t, err)
	res, err := merge.Correct(context.Background(), ds.MergeBatches(), merge.WithComponents(1))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, dataio.WriteDiagnostics(&buf, dataio.NewReport(res, 20, 1)))
	assert.NotContains(t, buf.String(), "null")
	assert.NotContains(t, buf.String(), "mixing")
}

func TestStackedRowsAndLabels(t *testing.T) {
	ds, err := dataio.ReadCSV(strings.NewReader(table))
	require.NoError(t, err)
	// Batch B holds c1, c3; batch A holds c2, c4.
	assert.Equal(t, []int{0, 2, 1, 3}, ds.StackedRows())

	var buf bytes.Buffer
	require.NoError(t, dataio.WriteLabels(&buf, ds, "cluster", []int{7, 8, 9, 10}))
	assert.Equal(t, "cell,batch,cluster\nc1,B,7\nc2,A,9\nc3,B,8\nc4,A,10\n", buf.String())
	assert.ErrorIs(t, dataio.WriteLabels(&buf, ds, "cluster", []int{1}), dataio.ErrShape)
}
