package collect

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigrise-data/bigrise/internal/config"
	"github.com/bigrise-data/bigrise/pkg/riseetf"
)

type fakeRiseETF struct {
	etfs     []riseetf.ETF
	listErr  error
	holdings map[string][]riseetf.Holding
	fail     map[string]error
}

func (f *fakeRiseETF) ListETFs(context.Context) ([]riseetf.ETF, error) {
	return f.etfs, f.listErr
}

func (f *fakeRiseETF) Holdings(_ context.Context, detailURL string) ([]riseetf.Holding, error) {
	if err := f.fail[detailURL]; err != nil {
		return nil, err
	}
	return f.holdings[detailURL], nil
}

func TestRiseETFCollect_FlattensHoldings(t *testing.T) {
	client := &fakeRiseETF{
		etfs: []riseetf.ETF{
			{Name: "RISE 반도체", Price: "12,345", Change: "상승 120", DetailURL: "https://x/detail?code=A"},
			{Name: "RISE 2차전지", Price: "9,870", Change: "하락 55", DetailURL: "https://x/detail?code=B"},
		},
		holdings: map[string][]riseetf.Holding{
			"https://x/detail?code=A": {
				{Number: "1", ItemName: "삼성전자", ItemCode: "005930", BasePrice: "71,000", Ratio: "25.31", Value: "1,234"},
				{Number: "2", ItemName: "SK하이닉스", ItemCode: "000660", BasePrice: "180,500", Ratio: "18.02", Value: "987"},
			},
			"https://x/detail?code=B": {
				{Number: "1", ItemName: "LG에너지솔루션", ItemCode: "373220", BasePrice: "400,000", Ratio: "30.00", Value: "555"},
			},
		},
	}

	c := NewRiseETFCollector(config.RiseETFConfig{Concurrency: 4}, client)
	result, err := c.Collect(context.Background(), Params{TargetDate: "20251110", DataDir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Rows)
	assert.Equal(t, "rise_finder_20251110_with_holdings_flattened.csv", filepath.Base(result.OutputPath))

	records := readCSV(t, result.OutputPath)
	require.Len(t, records, 4)
	assert.Equal(t, holdingsColumns, records[0])

	// Fund columns repeat on every constituent row, in finder order.
	assert.Equal(t, []string{
		"RISE 반도체", "12,345", "상승 120", "https://x/detail?code=A",
		"1", "삼성전자", "005930", "71,000", "25.31", "1,234",
	}, records[1])
	assert.Equal(t, "SK하이닉스", records[2][5])
	assert.Equal(t, "RISE 2차전지", records[3][0])
}

func TestRiseETFCollect_SkipsFailedFund(t *testing.T) {
	client := &fakeRiseETF{
		etfs: []riseetf.ETF{
			{Name: "RISE 반도체", DetailURL: "https://x/a"},
			{Name: "RISE 헬스케어", DetailURL: "https://x/b"},
		},
		holdings: map[string][]riseetf.Holding{
			"https://x/a": {{Number: "1", ItemName: "삼성전자"}},
		},
		fail: map[string]error{"https://x/b": eris.New("timeout")},
	}

	c := NewRiseETFCollector(config.RiseETFConfig{Concurrency: 2}, client)
	result, err := c.Collect(context.Background(), Params{TargetDate: "20251110", DataDir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Rows)
	assert.Equal(t, 1, result.Metadata["failed_etfs"])
}

func TestRiseETFCollect_ListFailureIsFatal(t *testing.T) {
	client := &fakeRiseETF{listErr: eris.New("502")}

	c := NewRiseETFCollector(config.RiseETFConfig{Concurrency: 2}, client)
	_, err := c.Collect(context.Background(), Params{TargetDate: "20251110", DataDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list etfs")
}
