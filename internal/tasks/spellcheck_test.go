package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lectio/internal/common"
	"github.com/ternarybob/lectio/internal/models"
	"github.com/ternarybob/lectio/internal/storage"
)

const spellcheckHOCR = `<body>
<span class="ocr_line">
<span class="ocrx_word">word</span>
<span class="ocrx_word">wrd</span>
<span class="ocrx_word">tree</span>
</span>
</body>`

// newSpellCheckFixture sets up a filestore with a language dictionary,
// its deletion dictionary, and an hOCR input document.
func newSpellCheckFixture(t *testing.T) (*SpellCheck, *storage.Filestore, models.DocumentRef) {
	t.Helper()

	root := t.TempDir()
	cfg := &common.PipelineConfig{
		StoragePath: root,
		LangDicts: map[string]common.PathSegments{
			"lat": {"dicts", "lat.txt"},
		},
	}
	store, err := storage.NewFilestore(arbor.NewLogger(), cfg)
	require.NoError(t, err)

	dictDir := filepath.Join(root, "dicts")
	require.NoError(t, os.MkdirAll(dictDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dictDir, "lat.txt"), []byte("tree\nword\n"), 0o644))
	// Sorted symmetric deletion dictionary at depth 1
	delDict := "ord\tword\nree\ttree\ntee\ttree\ntre\ttree\nwod\tword\nwor\tword\nwrd\tword\n"
	require.NoError(t, os.WriteFile(filepath.Join(dictDir, "lat.deldict"), []byte(delDict), 0o644))

	job, err := store.NewJob()
	require.NoError(t, err)
	doc := models.DocumentRef{Job: job, Path: "page_ocr.hocr"}
	require.NoError(t, store.Store(doc, []byte(spellcheckHOCR)))

	return NewSpellCheck(arbor.NewLogger(), cfg, store), store, doc
}

func TestSpellCheckExecute(t *testing.T) {
	task, store, doc := newSpellCheckFixture(t)

	out, err := task.Execute(context.Background(), doc, map[string]string{"language": "lat"})
	require.NoError(t, err)
	assert.Equal(t, "page_ocr_spellcheck_lat.txt", out.Path)

	data, err := store.Retrieve(out)
	require.NoError(t, err)
	// Only the misspelling appears, with its single suggestion
	assert.Equal(t, "wrd\tword\n", string(data))
}

func TestSpellCheckExecuteAllWordsKnown(t *testing.T) {
	task, store, doc := newSpellCheckFixture(t)
	require.NoError(t, store.Store(doc, []byte(`<body><span class="ocrx_word">word</span></body>`)))

	out, err := task.Execute(context.Background(), doc, map[string]string{"language": "lat"})
	require.NoError(t, err)

	data, err := store.Retrieve(out)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestSpellCheckExecuteMissingLanguage(t *testing.T) {
	task, _, doc := newSpellCheckFixture(t)

	_, err := task.Execute(context.Background(), doc, nil)
	assert.Error(t, err)

	_, err = task.Execute(context.Background(), doc, map[string]string{"language": "unconfigured"})
	assert.Error(t, err)
}

func TestSpellCheckExecuteInvalidDepth(t *testing.T) {
	task, _, doc := newSpellCheckFixture(t)

	_, err := task.Execute(context.Background(), doc, map[string]string{"language": "lat", "depth": "0"})
	assert.Error(t, err)

	_, err = task.Execute(context.Background(), doc, map[string]string{"language": "lat", "depth": "x"})
	assert.Error(t, err)
}
