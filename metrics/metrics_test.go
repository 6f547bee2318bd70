package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSyncAndTransfer(t *testing.T) {
	RecordSync("metrics-test", "send", 3*time.Millisecond)
	RecordTransfer("metrics-test", "send", 10)
	RecordTransfer("metrics-test", "send", 5)

	assert.Equal(t, 1.0, testutil.ToFloat64(Syncs.WithLabelValues("metrics-test", "send")))
	assert.Equal(t, 2.0, testutil.ToFloat64(Transfers.WithLabelValues("metrics-test", "send")))
	assert.Equal(t, 15.0, testutil.ToFloat64(Values.WithLabelValues("metrics-test", "send")))
	assert.Equal(t, 0.0, testutil.ToFloat64(Syncs.WithLabelValues("metrics-test", "recv")))
}

func TestHandler(t *testing.T) {
	RecordTransfer("handler-test", "recv", 1)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `dgcoupling_channel_transfers_total{coupling="handler-test",direction="recv"} 1`))
}
