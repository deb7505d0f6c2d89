package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlphabetIsOrderedAndComplete(t *testing.T) {
	t.Parallel()

	buckets := Alphabet()
	require.Len(t, buckets, 26)
	require.Equal(t, Bucket('a'), buckets[0])
	require.Equal(t, Bucket('z'), buckets[25])
	for i := 1; i < len(buckets); i++ {
		require.Less(t, buckets[i-1], buckets[i])
	}
}

func TestParseBuckets(t *testing.T) {
	t.Parallel()

	got, err := ParseBuckets("cAbc")
	require.NoError(t, err)
	require.Equal(t, []Bucket{'a', 'b', 'c'}, got)

	all, err := ParseBuckets("  ")
	require.NoError(t, err)
	require.Len(t, all, 26)

	_, err = ParseBuckets("a1")
	require.Error(t, err)
	_, err = ParseBuckets("aé")
	require.Error(t, err)
}

func TestParseOnErrorPolicy(t *testing.T) {
	t.Parallel()

	p, err := ParseOnErrorPolicy("")
	require.NoError(t, err)
	require.Equal(t, OnErrorAbort, p)

	p, err = ParseOnErrorPolicy(" SKIP ")
	require.NoError(t, err)
	require.Equal(t, OnErrorSkip, p)

	_, err = ParseOnErrorPolicy("retry")
	require.Error(t, err)
}
