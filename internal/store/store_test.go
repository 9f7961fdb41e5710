package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestInitStore(t *testing.T) {
	t.Run("Syncmap Roundtrip", func(t *testing.T) {
		st, err := InitStore("syncmap", "", "json")
		require.NoError(t, err)
		defer st.Close()

		require.NoError(t, st.Set(KeyLedger, payload{Name: "a", Count: 3}))
		var got payload
		found, err := st.Get(KeyLedger, &got)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, payload{Name: "a", Count: 3}, got)
	})

	t.Run("File Roundtrip", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "snapshots")
		st, err := InitStore("file", dir, "json")
		require.NoError(t, err)
		defer st.Close()

		require.NoError(t, st.Set(KeyCoprocessor, payload{Name: "b", Count: 7}))
		var got payload
		found, err := st.Get(KeyCoprocessor, &got)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, payload{Name: "b", Count: 7}, got)
	})

	t.Run("Missing Key Not Found", func(t *testing.T) {
		st, err := InitStore("syncmap", "", "")
		require.NoError(t, err)
		defer st.Close()

		var got payload
		found, err := st.Get("nope", &got)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("File Store Requires Directory", func(t *testing.T) {
		_, err := InitStore("file", "", "json")
		assert.Error(t, err)
	})

	t.Run("Unknown Type Rejected", func(t *testing.T) {
		_, err := InitStore("redis", "", "")
		assert.Error(t, err)
	})

	t.Run("Unknown Codec Rejected", func(t *testing.T) {
		_, err := InitStore("syncmap", "", "xml")
		assert.Error(t, err)
	})
}
