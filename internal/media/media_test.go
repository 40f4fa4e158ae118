package media

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveOpenRemove(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	uri, err := s.Save("Front Door.JPG", strings.NewReader("jpeg bytes"))
	require.NoError(t, err)
	assert.True(t, IsLocal(uri))
	assert.True(t, strings.HasSuffix(uri, ".jpg"))

	f, err := s.Open(uri)
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(body))

	require.NoError(t, s.Remove(uri))
	_, err = s.Open(uri)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoError(t, s.Remove(uri))
}

func TestRejectsForeignURIs(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	testCases := []struct {
		name string
		uri  string
	}{
		{name: "Remote image", uri: "https://cdn.example.com/services/1.jpg"},
		{name: "Outside the media dir", uri: "file:///etc/passwd"},
		{name: "Traversal", uri: "file://" + s.dir + "/../secret.jpg"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Open(tc.uri)
			assert.ErrorIs(t, err, ErrNotLocal)
		})
	}
}
