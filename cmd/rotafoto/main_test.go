package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmaffei/rotafoto/internal/models"
	"github.com/rmaffei/rotafoto/internal/store"
)

func TestSplitEdit(t *testing.T) {
	idx, val, err := splitEdit("2=Concluido")
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	assert.Equal(t, "Concluido", val)

	idx, val, err = splitEdit("0=obra a=b")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "obra a=b", val)

	_, _, err = splitEdit("no-separator")
	assert.Error(t, err)
	_, _, err = splitEdit("=value")
	assert.Error(t, err)
	_, _, err = splitEdit("x=value")
	assert.Error(t, err)
}

func TestApplyEdits(t *testing.T) {
	st := store.New()
	st.Append(
		&models.PhotoRecord{Index: 0, Name: "a.jpg", Status: models.StatusPending},
		&models.PhotoRecord{Index: 1, Name: "b.jpg", Status: models.StatusPending},
		&models.PhotoRecord{Index: 2, Name: "c.jpg", Status: models.StatusPending},
	)

	err := applyEdits(st,
		multiFlag{"1=Concluido"},
		multiFlag{"0=vistoria feita"},
		nil,
		multiFlag{"2"},
	)
	require.NoError(t, err)

	recs := st.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "vistoria feita", recs[0].Description)
	assert.Equal(t, models.StatusDone, recs[1].Status)
}

func TestApplyEditsRemovalOrder(t *testing.T) {
	st := store.New()
	st.Append(
		&models.PhotoRecord{Index: 0, Name: "a.jpg", Status: models.StatusPending},
		&models.PhotoRecord{Index: 1, Name: "b.jpg", Status: models.StatusPending},
		&models.PhotoRecord{Index: 2, Name: "c.jpg", Status: models.StatusPending},
	)

	// Both flags refer to pre-removal indices; removing 0 first would
	// shift 2 out of range.
	err := applyEdits(st, nil, nil, nil, multiFlag{"0", "2"})
	require.NoError(t, err)

	recs := st.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "b.jpg", recs[0].Name)
	assert.Equal(t, 0, recs[0].Index)
}

func TestApplyEditsInvalidStatus(t *testing.T) {
	st := store.New()
	st.Append(&models.PhotoRecord{Index: 0, Name: "a.jpg", Status: models.StatusPending})

	err := applyEdits(st, multiFlag{"0=Unknown"}, nil, nil, nil)
	assert.Error(t, err)
}

func TestPhotoPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.JPG", "a.png", "notes.txt", "c.webp"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o755))

	paths, err := photoPaths(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "b.JPG"),
		filepath.Join(dir, "c.webp"),
	}, paths)
}
