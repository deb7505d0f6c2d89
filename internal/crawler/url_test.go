package crawler

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveURL(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("https://WWW.Example.test:443/search?q=a&page=2")
	require.NoError(t, err)

	got, err := ResolveURL(base, "/word/apple#etymonline_v_1")
	require.NoError(t, err)
	require.Equal(t, "https://www.example.test/word/apple", got)

	got, err = ResolveURL(base, "http://other.test:80/word/ant")
	require.NoError(t, err)
	require.Equal(t, "http://other.test/word/ant", got)
}

func TestResolveURLRejectsRelativeWithoutBase(t *testing.T) {
	t.Parallel()

	_, err := ResolveURL(nil, "/word/apple")
	require.Error(t, err)
}
