package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"options-paper-ledger/internal/models"
)

const valuesPrefix = "/v4/spreadsheets/sid/values"

// fakeSheet is a tiny in-memory stand-in for the Sheets values API.
type fakeSheet struct {
	mu    sync.Mutex
	grid  [][]string
	calls  map[string]int
	fail   map[string][]int // request kind -> status codes to return first
	ranges []string
}

func newFakeSheet() *fakeSheet {
	return &fakeSheet{calls: map[string]int{}, fail: map[string][]int{}}
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	var kind string
	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(path, valuesPrefix+"/"):
		kind = "get"
	case r.Method == http.MethodPut && strings.HasPrefix(path, valuesPrefix+"/"):
		kind = "put"
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		kind = "append"
	case r.Method == http.MethodPost && path == valuesPrefix+":batchUpdate":
		kind = "batch"
	default:
		http.NotFound(w, r)
		return
	}

	f.calls[kind]++
	if codes := f.fail[kind]; len(codes) > 0 {
		f.fail[kind] = codes[1:]
		w.WriteHeader(codes[0])
		_, _ = w.Write([]byte(`{"error":{"message":"injected"}}`))
		return
	}

	if kind != "batch" {
		f.ranges = append(f.ranges, strings.TrimSuffix(strings.TrimPrefix(path, valuesPrefix+"/"), ":append"))
	}

	switch kind {
	case "get":
		rng := strings.TrimPrefix(path, valuesPrefix+"/")
		grid := f.grid
		if strings.HasSuffix(rng, "!1:1") && len(grid) > 1 {
			grid = grid[:1]
		}
		vr := valueRange{Range: rng, MajorDimension: "ROWS"}
		for _, row := range grid {
			vr.Values = append(vr.Values, stringsToCells(row))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(vr)
		return
	case "put":
		var vr valueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		row := cellsToStrings(vr.Values[0])
		if len(f.grid) == 0 {
			f.grid = append(f.grid, row)
		} else {
			f.grid[0] = row
		}
	case "append":
		var vr valueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.grid = append(f.grid, cellsToStrings(vr.Values[0]))
	case "batch":
		var req batchUpdateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, d := range req.Data {
			f.ranges = append(f.ranges, d.Range)
			col, row := parseA1(d.Range[strings.LastIndex(d.Range, "!")+1:])
			for len(f.grid) <= row {
				f.grid = append(f.grid, nil)
			}
			for len(f.grid[row]) <= col {
				f.grid[row] = append(f.grid[row], "")
			}
			f.grid[row][col] = cellsToStrings(d.Values[0])[0]
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{}`))
}

// parseA1 turns a cell reference like "J3" into zero-based column and row indexes.
func parseA1(cell string) (int, int) {
	n, i := 0, 0
	for ; i < len(cell) && cell[i] >= 'A' && cell[i] <= 'Z'; i++ {
		n = n*26 + int(cell[i]-'A'+1)
	}
	row, _ := strconv.Atoi(cell[i:])
	return n - 1, row - 1
}

func setupSheetsTest(t *testing.T) (*SheetsStore, *fakeSheet) {
	t.Helper()
	return setupSheetsTestWithWorksheet(t, "Trades")
}

func setupSheetsTestWithWorksheet(t *testing.T, worksheet string) (*SheetsStore, *fakeSheet) {
	t.Helper()
	fake := newFakeSheet()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client := resty.New().SetBaseURL(server.URL)
	st := newSheetsStore(client, "sid", worksheet, zap.NewNop(), rate.NewLimiter(rate.Inf, 1))
	st.retryBase = time.Millisecond
	return st, fake
}

func TestSheetsStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st, fake := setupSheetsTest(t)

	require.NoError(t, st.EnsureHeader(ctx, models.Header))
	assert.Equal(t, models.Header, fake.grid[0])
	require.NoError(t, st.EnsureHeader(ctx, models.Header))
	assert.Equal(t, 1, fake.calls["put"], "header is written once")

	require.NoError(t, st.Append(ctx, sampleRow("1", "OPEN")))
	require.NoError(t, st.Append(ctx, sampleRow("2", "OPEN")))

	require.NoError(t, st.UpdateFields(ctx, 1, models.Row{
		models.ColStatus:    "CLOSED",
		models.ColExitPrice: "130",
		models.ColPnL:       "2250",
	}))
	assert.Equal(t, 1, fake.calls["batch"], "all cells go in one request")

	rows, err := st.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "OPEN", rows[0][models.ColStatus])
	assert.Equal(t, "CLOSED", rows[1][models.ColStatus])
	assert.Equal(t, "130", rows[1][models.ColExitPrice])
	assert.Equal(t, "2250", rows[1][models.ColPnL])
	assert.Equal(t, "2", rows[1][models.ColID])
}

func TestSheetsStore_ShortRowsArePadded(t *testing.T) {
	ctx := context.Background()
	st, fake := setupSheetsTest(t)
	// The API drops trailing empty cells.
	fake.grid = [][]string{models.Header, {"1", "asha", "NIFTY"}}

	rows, err := st.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "NIFTY", rows[0][models.ColUnderlying])
	assert.Equal(t, "", rows[0][models.ColInvestment])
}

func TestSheetsStore_RetriesReadsOnServerError(t *testing.T) {
	ctx := context.Background()
	st, fake := setupSheetsTest(t)
	fake.grid = [][]string{models.Header}
	fake.fail["get"] = []int{http.StatusServiceUnavailable, http.StatusInternalServerError}

	rows, err := st.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 3, fake.calls["get"])
}

func TestSheetsStore_GivesUpAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	st, fake := setupSheetsTest(t)
	fake.fail["get"] = []int{500, 500, 500, 500}

	_, err := st.ReadAll(ctx)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, maxSheetsRetries, fake.calls["get"])
}

func TestSheetsStore_AppendIsNotRetriedOnServerError(t *testing.T) {
	ctx := context.Background()
	st, fake := setupSheetsTest(t)
	require.NoError(t, st.EnsureHeader(ctx, models.Header))
	fake.fail["append"] = []int{http.StatusBadGateway}

	err := st.Append(ctx, sampleRow("1", "OPEN"))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, 1, fake.calls["append"])
	assert.Len(t, fake.grid, 1)
}

func TestSheetsStore_AppendIsRetriedWhenThrottled(t *testing.T) {
	ctx := context.Background()
	st, fake := setupSheetsTest(t)
	require.NoError(t, st.EnsureHeader(ctx, models.Header))
	fake.fail["append"] = []int{http.StatusTooManyRequests}

	require.NoError(t, st.Append(ctx, sampleRow("1", "OPEN")))
	assert.Equal(t, 2, fake.calls["append"])
	assert.Len(t, fake.grid, 2)
}

func TestSheetsStore_ClientErrorIsNotRetried(t *testing.T) {
	ctx := context.Background()
	st, fake := setupSheetsTest(t)
	fake.fail["get"] = []int{http.StatusForbidden}

	err := st.EnsureHeader(ctx, models.Header)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, 1, fake.calls["get"])
}

func TestSheetsStore_UpdateValidation(t *testing.T) {
	ctx := context.Background()
	st, _ := setupSheetsTest(t)
	require.NoError(t, st.EnsureHeader(ctx, models.Header))

	assert.ErrorIs(t, st.UpdateFields(ctx, -1, models.Row{models.ColStatus: "CLOSED"}), ErrRowOutOfRange)
	assert.ErrorIs(t, st.UpdateFields(ctx, 0, models.Row{"Broker": "x"}), ErrUnknownColumn)
}

func TestSheetsStore_QuotesWorksheetName(t *testing.T) {
	ctx := context.Background()
	st, fake := setupSheetsTestWithWorksheet(t, "Asha's Trades")

	require.NoError(t, st.EnsureHeader(ctx, models.Header))
	require.NoError(t, st.Append(ctx, sampleRow("1", "OPEN")))
	require.NoError(t, st.UpdateFields(ctx, 0, models.Row{models.ColStatus: "CLOSED"}))
	rows, err := st.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "CLOSED", rows[0][models.ColStatus])

	statusCol := columnLetter(indexOf(models.Header, models.ColStatus))
	assert.Equal(t, []string{
		"'Asha''s Trades'!1:1",
		"'Asha''s Trades'!A1",
		"'Asha''s Trades'!A1",
		"'Asha''s Trades'!" + statusCol + "2",
		"'Asha''s Trades'",
	}, fake.ranges)
}

func TestQuoteSheetName(t *testing.T) {
	assert.Equal(t, "'Trades'", quoteSheetName("Trades"))
	assert.Equal(t, "'Paper Trades'", quoteSheetName("Paper Trades"))
	assert.Equal(t, "'It''s'", quoteSheetName("It's"))
}

func indexOf(values []string, want string) int {
	for i, v := range values {
		if v == want {
			return i
		}
	}
	return -1
}

func TestColumnLetter(t *testing.T) {
	testCases := map[int]string{0: "A", 9: "J", 14: "O", 25: "Z", 26: "AA", 27: "AB", 701: "ZZ", 702: "AAA"}
	for in, want := range testCases {
		assert.Equal(t, want, columnLetter(in), "column %d", in)
	}
}

func TestCellsToStrings(t *testing.T) {
	got := cellsToStrings([]interface{}{"NIFTY", 22500.0, 120.5, true, nil})
	assert.Equal(t, []string{"NIFTY", "22500", "120.5", "true", ""}, got)
}
