package runner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vfrank66/lucas-download/internal/clock/system"
	"github.com/vfrank66/lucas-download/internal/diario"
	"github.com/vfrank66/lucas-download/internal/fetch"
	iduuid "github.com/vfrank66/lucas-download/internal/id/uuid"
	"github.com/vfrank66/lucas-download/internal/ledger"
	"github.com/vfrank66/lucas-download/internal/metrics"
	"github.com/vfrank66/lucas-download/internal/policy/ratelimit"
	"github.com/vfrank66/lucas-download/internal/pool"
	"github.com/vfrank66/lucas-download/internal/storage/local"
)

func editionsAt(serverURL string, days int) []diario.Edition {
	eds := make([]diario.Edition, 0, days)
	for day := 1; day <= days; day++ {
		ed := diario.NewEdition(1996, time.March, day)
		ed.PDFURL = serverURL + "/Imagem/d/pdf/" + ed.Code() + ".PDF"
		eds = append(eds, ed)
	}
	return eds
}

func newRunner(t *testing.T, dir string, workers int) (*Runner, *ledger.File) {
	t.Helper()
	metrics.Init()

	led, err := ledger.OpenFile(ledger.FileConfig{Path: filepath.Join(dir, "download_progress.json")})
	require.NoError(t, err)

	store, err := local.New(local.Config{BaseDir: filepath.Join(dir, "downloads")})
	require.NoError(t, err)

	fetcher := fetch.New(
		fetch.Config{RetryAttempts: 2, RetryDelay: time.Millisecond, RecordNotFound: true},
		store, led, ratelimit.New(ratelimit.Config{}), zap.NewNop(),
	)
	p := pool.New(pool.Config{Workers: workers}, fetcher, nil, nil)
	return New(led, p, nil, iduuid.NewUUIDGenerator(), system.New(), zap.NewNop()), led
}

func TestRunIdempotentResume(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte("%PDF-1.4 edition"))
	}))
	defer ts.Close()

	dir := t.TempDir()
	eds := editionsAt(ts.URL, 5)

	r1, _ := newRunner(t, dir, 3)
	sum, err := r1.Run(context.Background(), pool.NewSliceSource(eds))
	require.NoError(t, err)
	require.Equal(t, 5, sum.Success)
	require.Equal(t, int32(5), requests.Load())

	// Second run over the same range: the persisted ledger makes it a no-op.
	r2, _ := newRunner(t, dir, 3)
	sum, err = r2.Run(context.Background(), pool.NewSliceSource(eds))
	require.NoError(t, err)
	require.Equal(t, 5, sum.AlreadyDone)
	require.Zero(t, sum.Success)
	require.Equal(t, int32(5), requests.Load(), "a resumed run must not touch the network")
}

func TestRunRecordedMissingDatesAreNotReprobed(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	dir := t.TempDir()
	eds := editionsAt(ts.URL, 4)

	r1, _ := newRunner(t, dir, 2)
	sum, err := r1.Run(context.Background(), pool.NewSliceSource(eds))
	require.NoError(t, err)
	require.Equal(t, 4, sum.NotFound)
	require.Zero(t, sum.Failed, "a missing edition is not an error")

	r2, _ := newRunner(t, dir, 2)
	sum, err = r2.Run(context.Background(), pool.NewSliceSource(eds))
	require.NoError(t, err)
	require.Equal(t, 4, sum.NotFound)
	require.Equal(t, int32(4), requests.Load(), "recorded missing dates must be skipped without a probe")
}

func TestRunOneFatalItemDoesNotFailTheRun(t *testing.T) {
	t.Parallel()

	bad := diario.NewEdition(1996, time.March, 7).Code()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, bad) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("%PDF-1.4 edition"))
	}))
	defer ts.Close()

	dir := t.TempDir()
	r, _ := newRunner(t, dir, 4)
	sum, err := r.Run(context.Background(), pool.NewSliceSource(editionsAt(ts.URL, 10)))
	require.NoError(t, err, "per-item failures never abort the run")
	require.Equal(t, 9, sum.Success)
	require.Equal(t, 1, sum.Failed)
}

func TestRunClosesLedgerBeforeReporting(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer ts.Close()

	dir := t.TempDir()
	r, led := newRunner(t, dir, 2)
	_, err := r.Run(context.Background(), pool.NewSliceSource(editionsAt(ts.URL, 3)))
	require.NoError(t, err)

	// The runner owns the ledger lifecycle; completions must already be
	// durable once Run returns.
	require.Error(t, led.MarkDone(context.Background(), "late"), "ledger must be closed after the run")

	reopened, err := ledger.OpenFile(ledger.FileConfig{Path: filepath.Join(dir, "download_progress.json")})
	require.NoError(t, err)
	require.Equal(t, 3, reopened.Len())
}
