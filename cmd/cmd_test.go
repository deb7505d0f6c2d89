package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/etym-crawler/internal/cache"
	"github.com/JakeFAU/etym-crawler/internal/config"
	"github.com/JakeFAU/etym-crawler/internal/crawler"
	"github.com/JakeFAU/etym-crawler/internal/id/uuid"
)

type fakeHarvester struct {
	runErr error
	ran    bool
	closed bool
	cfg    config.Config
}

func (f *fakeHarvester) Run(context.Context) error {
	f.ran = true
	return f.runErr
}

func (f *fakeHarvester) Close() { f.closed = true }

// stubFactories replaces the package factories for one test. Tests using it
// must not run in parallel.
func stubFactories(t *testing.T, fs afero.Fs, h *fakeHarvester) {
	t.Helper()
	origLoad, origLogger, origFs, origApp := loadConfig, newLogger, newFs, newApp
	t.Cleanup(func() {
		loadConfig, newLogger, newFs, newApp = origLoad, origLogger, origFs, origApp
	})

	loadConfig = func(string) (config.Config, error) {
		return config.Config{Cache: config.CacheConfig{Dir: "/default-cache"}}, nil
	}
	newLogger = func(bool) (*zap.Logger, error) { return zap.NewNop(), nil }
	newFs = func() afero.Fs { return fs }
	newApp = func(cfg config.Config, _ *zap.Logger, _ afero.Fs) (Harvester, error) {
		h.cfg = cfg
		return h, nil
	}
}

func run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestFetchSucceeds(t *testing.T) {
	h := &fakeHarvester{}
	stubFactories(t, afero.NewMemMapFs(), h)

	code, stdout, stderr := run("fetch")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "Success!\n", stdout)
	assert.True(t, h.ran)
	assert.True(t, h.closed)
	assert.Equal(t, "/default-cache", h.cfg.Cache.Dir)
}

func TestFetchRefusesExistingDirWithoutForce(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/custom", 0o750))
	h := &fakeHarvester{}
	stubFactories(t, fs, h)

	code, stdout, stderr := run("fetch", "--cache-dir", "/custom")
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Failure: cache directory /custom already exists")
	assert.False(t, h.ran)
}

func TestFetchForceOverridesExistingDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/custom", 0o750))
	h := &fakeHarvester{}
	stubFactories(t, fs, h)

	code, _, stderr := run("fetch", "--cache-dir", "/custom", "--force")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "/custom", h.cfg.Cache.Dir)
}

func TestFetchRefusesExistingFile(t *testing.T) {
	for _, args := range [][]string{
		{"fetch", "--cache-dir", "/notes.txt"},
		{"fetch", "--cache-dir", "/notes.txt", "--force"},
	} {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/notes.txt", []byte("keep me"), 0o600))
		h := &fakeHarvester{}
		stubFactories(t, fs, h)

		code, _, stderr := run(args...)
		assert.Equal(t, 1, code, args)
		assert.Contains(t, stderr, "Failure: cache path /notes.txt exists and is not a directory")
		assert.False(t, h.ran, args)

		data, err := afero.ReadFile(fs, "/notes.txt")
		require.NoError(t, err)
		assert.Equal(t, "keep me", string(data))
	}
}

func TestFetchReportsRunFailure(t *testing.T) {
	h := &fakeHarvester{runErr: crawler.DiscoveryError(crawler.Bucket('b'), "page count not found", errors.New("no pagination control"))}
	stubFactories(t, afero.NewMemMapFs(), h)

	code, stdout, stderr := run("fetch")
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Failure: ")
	assert.Contains(t, stderr, "page count not found")
	assert.True(t, h.closed)
}

func TestConfigLoadFailure(t *testing.T) {
	stubFactories(t, afero.NewMemMapFs(), &fakeHarvester{})
	loadConfig = func(string) (config.Config, error) { return config.Config{}, errors.New("bad yaml") }

	code, _, stderr := run("fetch")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "load config: bad yaml")
}

func TestStatsSummarizesCache(t *testing.T) {
	fs := afero.NewMemMapFs()
	w, err := cache.New(fs, "/default-cache", uuid.New(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, w.Reset())
	_, err = w.WriteBatch(context.Background(), []crawler.Record{{Term: "ax", Text: "tool"}, {Term: "ax", Text: "again"}})
	require.NoError(t, err)
	_, err = w.WriteBatch(context.Background(), []crawler.Record{{Term: "yew", Text: "tree"}})
	require.NoError(t, err)
	stubFactories(t, fs, &fakeHarvester{})

	code, stdout, stderr := run("stats")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "files:     2")
	assert.Contains(t, stdout, "records:   3")
	assert.Contains(t, stdout, "terms:     2")
}

func TestStatsMissingDir(t *testing.T) {
	stubFactories(t, afero.NewMemMapFs(), &fakeHarvester{})

	code, _, stderr := run("stats", "--cache-dir", "/nowhere")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "cache directory /nowhere does not exist")
}
