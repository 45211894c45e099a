package naming

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFolderPath(t *testing.T) {
	cases := map[string]string{
		"":          "",
		"   ":       "",
		"/":         "",
		"a/b":       "a/b/",
		"/a/b/":     "a/b/",
		"pets":      "pets/",
		"pets/":     "pets/",
		"/pets":     "pets/",
		"  pets  ":  "pets/",
		"a/b/c/d":   "a/b/c/d/",
		"/a/b/c/d/": "a/b/c/d/",
	}

	for in, want := range cases {
		assert.Equal(t, want, NormalizeFolderPath(in), "input %q", in)
	}
}

func TestNormalizeFolderPathIdempotent(t *testing.T) {
	inputs := []string{"", "/", "a", "a/b", "/a/b/", "  x/y ", "deep/nested/path/"}
	for _, in := range inputs {
		once := NormalizeFolderPath(in)
		assert.Equal(t, once, NormalizeFolderPath(once), "input %q", in)
	}
}

func TestSanitizeBaseName(t *testing.T) {
	t.Run("StripsDisallowedCharacters", func(t *testing.T) {
		assert.Equal(t, "catphoto", SanitizeBaseName("cat<photo>?#"))
		assert.Equal(t, "my_file-1.v2", SanitizeBaseName("my_file-1.v2"))
	})

	t.Run("CollapsesSeparatorRuns", func(t *testing.T) {
		assert.Equal(t, "a_b", SanitizeBaseName("a   b"))
		assert.Equal(t, "a-b", SanitizeBaseName("a----b"))
	})

	t.Run("TrimsEdgeSeparators", func(t *testing.T) {
		assert.Equal(t, "name", SanitizeBaseName("__name__"))
		assert.Equal(t, "name", SanitizeBaseName("...name..."))
	})

	t.Run("CapsLength", func(t *testing.T) {
		long := strings.Repeat("x", 300)
		assert.Len(t, SanitizeBaseName(long), 100)
	})

	t.Run("FallsBackWhenEmptied", func(t *testing.T) {
		assert.Equal(t, "asset", SanitizeBaseName("<<<>>>"))
		assert.Equal(t, "asset", SanitizeBaseName(""))
	})
}

func TestSplitExt(t *testing.T) {
	base, ext := SplitExt("cat.PNG")
	assert.Equal(t, "cat", base)
	assert.Equal(t, ".png", ext)

	base, ext = SplitExt("archive.tar.gz")
	assert.Equal(t, "archive.tar", base)
	assert.Equal(t, ".gz", ext)

	base, ext = SplitExt("noext")
	assert.Equal(t, "noext", base)
	assert.Equal(t, "", ext)

	base, ext = SplitExt(".hidden")
	assert.Equal(t, ".hidden", base)
	assert.Equal(t, "", ext)
}

func TestAssetIDFromKey(t *testing.T) {
	assert.Equal(t, "cat", AssetIDFromKey("pets/cat.png"))
	assert.Equal(t, "cat", AssetIDFromKey("cat.png"))
	assert.Equal(t, "cat.tar", AssetIDFromKey("a/b/cat.tar.gz"))
	assert.Equal(t, "plain", AssetIDFromKey("plain"))
	assert.Equal(t, ".hidden", AssetIDFromKey("pets/.hidden"))
}

func TestAssetIDMatchesResolvedID(t *testing.T) {
	ctx := context.Background()
	never := func(context.Context, string) (bool, error) { return false, nil }

	for _, filename := range []string{"cat.png", "my.cat.png", "archive.tar.gz", "noext", "a b.jpg"} {
		res, err := ResolveKey(ctx, "pets", filename, never)
		require.NoError(t, err)
		assert.Equal(t, res.AssetID, AssetIDFromKey(res.Key), "filename %q", filename)
	}
}

func TestResolveKey(t *testing.T) {
	ctx := context.Background()
	never := func(context.Context, string) (bool, error) { return false, nil }

	t.Run("PlacesFileUnderNormalizedFolder", func(t *testing.T) {
		res, err := ResolveKey(ctx, "/pets", "cat.png", never)
		require.NoError(t, err)
		assert.Equal(t, "pets/cat.png", res.Key)
		assert.Equal(t, "cat", res.AssetID)
		assert.Equal(t, "pets/", res.FolderPath)
	})

	t.Run("GeneratesIDWhenFilenameMissing", func(t *testing.T) {
		res, err := ResolveKey(ctx, "pets", "", never)
		require.NoError(t, err)
		assert.NotEmpty(t, res.AssetID)
		assert.Equal(t, "pets/"+res.AssetID, res.Key)
	})

	t.Run("AppendsSuffixOnCollision", func(t *testing.T) {
		probes := 0
		exists := func(_ context.Context, key string) (bool, error) {
			probes++
			return key == "pets/cat.png", nil
		}

		res, err := ResolveKey(ctx, "pets", "cat.png", exists)
		require.NoError(t, err)
		assert.Equal(t, 1, probes, "collision is resolved once, no retry loop")
		assert.True(t, strings.HasPrefix(res.Key, "pets/cat_"))
		assert.True(t, strings.HasSuffix(res.Key, ".png"))
		assert.NotEqual(t, "pets/cat.png", res.Key)
		assert.True(t, strings.HasPrefix(res.AssetID, "cat_"))
	})

	t.Run("SanitizesHostileFilename", func(t *testing.T) {
		res, err := ResolveKey(ctx, "", "my photo??.png", never)
		require.NoError(t, err)
		assert.Equal(t, "my_photo.png", res.Key)
	})
}
