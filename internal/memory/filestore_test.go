package memory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorage_LoadMissing(t *testing.T) {
	st, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	snap, err := st.Load(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())
	assert.Equal(t, 0, snap.Dim)
}

func TestFileStorage_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFileStorage(dir)
	require.NoError(t, err)
	ctx := context.Background()
	userID := uuid.New()
	msgID := int64(7)

	snap := &Snapshot{
		Dim:     2,
		Vectors: [][]float32{{0.6, 0.8}, {1, 0}},
		Payloads: []Payload{
			{Role: RoleUser, Text: "Öğle yemeğinde mercimek çorbası içtim", SourceMessageID: &msgID},
			{Role: RoleAssistant, Text: "Lif açısından çok iyi!", SourceMessageID: &msgID},
		},
	}
	require.NoError(t, st.Save(ctx, userID, snap, 0))

	got, err := st.Load(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, snap.Dim, got.Dim)
	assert.Equal(t, snap.Vectors, got.Vectors)
	assert.Equal(t, snap.Payloads, got.Payloads)

	// Metadata keeps the ids/payloads layout with type/text/message_id keys.
	raw, err := os.ReadFile(filepath.Join(dir, userID.String()+".meta.json"))
	require.NoError(t, err)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, []any{0.0, 1.0}, meta["ids"])
	first := meta["payloads"].([]any)[0].(map[string]any)
	assert.Equal(t, "user", first["type"])
	assert.Equal(t, 7.0, first["message_id"])
}

func TestFileStorage_NullMessageID(t *testing.T) {
	st, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	userID := uuid.New()

	snap := &Snapshot{Dim: 1, Vectors: [][]float32{{1}}, Payloads: []Payload{{Role: RoleUser, Text: "x"}}}
	require.NoError(t, st.Save(ctx, userID, snap, 0))

	got, err := st.Load(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, got.Payloads[0].SourceMessageID)
}

func TestFileStorage_ReconcilesToShorter(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFileStorage(dir)
	require.NoError(t, err)
	ctx := context.Background()
	userID := uuid.New()

	full := &Snapshot{
		Dim:      1,
		Vectors:  [][]float32{{1}, {1}, {1}},
		Payloads: []Payload{{Text: "a"}, {Text: "b"}, {Text: "c"}},
	}
	require.NoError(t, st.Save(ctx, userID, full, 0))

	// Simulate a crash after the vector file was replaced but before metadata was.
	meta, err := json.Marshal(fileMeta{IDs: []int{0, 1}, Payloads: full.Payloads[:2]})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, userID.String()+".meta.json"), meta, 0o644))

	got, err := st.Load(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
	assert.Len(t, got.Vectors, 2)
}

func TestFileStorage_MetadataWithoutIndex(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFileStorage(dir)
	require.NoError(t, err)
	userID := uuid.New()

	meta, err := json.Marshal(fileMeta{IDs: []int{0}, Payloads: []Payload{{Text: "orphan"}}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, userID.String()+".meta.json"), meta, 0o644))

	got, err := st.Load(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestFileStorage_RejectsForeignFile(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFileStorage(dir)
	require.NoError(t, err)
	userID := uuid.New()

	require.NoError(t, os.WriteFile(filepath.Join(dir, userID.String()+".index"), []byte("garbage!"), 0o644))

	_, err = st.Load(context.Background(), userID)
	assert.Error(t, err)
}

func TestFileStorage_TruncatedVectorTail(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFileStorage(dir)
	require.NoError(t, err)
	ctx := context.Background()
	userID := uuid.New()

	snap := &Snapshot{
		Dim:      2,
		Vectors:  [][]float32{{1, 0}, {0, 1}},
		Payloads: []Payload{{Text: "a"}, {Text: "b"}},
	}
	require.NoError(t, st.Save(ctx, userID, snap, 0))

	path := filepath.Join(dir, userID.String()+".index")
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-4))

	got, err := st.Load(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
	assert.Equal(t, "a", got.Payloads[0].Text)
}

func TestFileStorage_ServiceRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	userID := uuid.New()
	emb := newFakeEmbedder()

	st, err := NewFileStorage(dir)
	require.NoError(t, err)
	svc := NewService(NewRegistry(st), emb)
	require.NoError(t, svc.AddInteraction(ctx, userID, "elma yedim", "tavuk pilav", nil))

	st2, err := NewFileStorage(dir)
	require.NoError(t, err)
	svc2 := NewService(NewRegistry(st2), emb)

	results, err := svc2.Search(ctx, userID, "elma", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, RoleUser, results[0].Payload.Role)
	assert.Equal(t, "elma yedim", results[0].Payload.Text)
}
