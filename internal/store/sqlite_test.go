package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geobrowser/internal/electoral"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_SaveAndLoad(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	src := testDataset(t)

	id, err := st.SaveDataset(ctx, src)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := st.LoadDataset(ctx)
	require.NoError(t, err)
	assert.Equal(t, src.Provinces(), got.Provinces())
	assert.Equal(t, src.Len(), got.Len())

	ajax, ok := got.District("Ontario", "Ajax")
	require.True(t, ok)
	assert.Equal(t, "35001", ajax.Number)
	require.Len(t, ajax.Candidates, 2)
	assert.Equal(t, 30120, ajax.Candidates[0].Votes)
	assert.InDelta(t, 34.9, ajax.Candidates[1].Percentage, 1e-9)
	require.NotNil(t, ajax.Geometry)
	assert.Equal(t, []float64{0, 0, 1, 1}, ajax.Geometry.Bounds().Array())

	algoma, ok := got.District("Ontario", "Algoma")
	require.True(t, ok)
	assert.Empty(t, algoma.Candidates)
	assert.Nil(t, algoma.Geometry)
}

func TestSQLite_UnknownShareSurvives(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	src, err := electoral.Decode(strings.NewReader(
		`{"Ontario":[{"name":"Kenora","candidates":[{"party":"NDP","pct":9},{"party":"Green"}]}]}`))
	require.NoError(t, err)

	_, err = st.SaveDataset(ctx, src)
	require.NoError(t, err)
	got, err := st.LoadDataset(ctx)
	require.NoError(t, err)

	d, ok := got.District("Ontario", "Kenora")
	require.True(t, ok)
	require.Len(t, d.Candidates, 2)
	pct, known := d.Candidates[0].Share()
	assert.True(t, known)
	assert.Equal(t, 9.0, pct)
	_, known = d.Candidates[1].Share()
	assert.False(t, known)
}

func TestSQLite_LoadDataset_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.LoadDataset(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_LoadImport_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.LoadImport(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListAndDeleteImports(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := st.SaveDataset(ctx, testDataset(t))
	require.NoError(t, err)
	second, err := st.SaveDataset(ctx, testDataset(t))
	require.NoError(t, err)

	imports, err := st.ListImports(ctx)
	require.NoError(t, err)
	require.Len(t, imports, 2)
	assert.Equal(t, second, imports[0].ID)
	assert.Equal(t, 2, imports[0].Provinces)
	assert.Equal(t, 3, imports[0].Districts)
	assert.Equal(t, 4, imports[0].Rows)

	require.NoError(t, st.DeleteImport(ctx, second))
	imports, err = st.ListImports(ctx)
	require.NoError(t, err)
	require.Len(t, imports, 1)
	assert.Equal(t, first, imports[0].ID)

	_, err = st.LoadImport(ctx, second)
	assert.ErrorIs(t, err, ErrNotFound)

	err = st.DeleteImport(ctx, second)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_SQLite(t *testing.T) {
	st, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
}
