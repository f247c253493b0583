package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"

	"options-paper-ledger/internal/config"
	"options-paper-ledger/internal/models"
)

const (
	sheetsScope      = "https://www.googleapis.com/auth/spreadsheets"
	valueInputRaw    = "RAW"
	maxSheetsRetries = 3
)

// valueRange mirrors the ValueRange resource of the Sheets v4 API.
type valueRange struct {
	Range          string          `json:"range,omitempty"`
	MajorDimension string          `json:"majorDimension,omitempty"`
	Values         [][]interface{} `json:"values,omitempty"`
}

type batchUpdateRequest struct {
	ValueInputOption string       `json:"valueInputOption"`
	Data             []valueRange `json:"data"`
}

// SheetsStore keeps the ledger in one worksheet of a Google spreadsheet.
// Row 1 holds the header, so data position p lives on sheet row p+2.
type SheetsStore struct {
	client        *resty.Client
	spreadsheetID string
	worksheet     string
	logger        *zap.Logger
	limiter       *rate.Limiter
	retryBase     time.Duration

	mu     sync.Mutex
	header []string
}

var _ RecordStore = (*SheetsStore)(nil)

// NewSheetsStore creates a Sheets API client. When a service account
// credentials file is configured, requests are authorized with it.
func NewSheetsStore(ctx context.Context, cfg *config.Sheets, logger *zap.Logger) (*SheetsStore, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("sheets.spreadsheet_id is required")
	}

	var client *resty.Client
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("could not read sheets credentials: %w", err)
		}
		jwtCfg, err := google.JWTConfigFromJSON(data, sheetsScope)
		if err != nil {
			return nil, fmt.Errorf("could not parse sheets credentials: %w", err)
		}
		client = resty.NewWithClient(jwtCfg.Client(ctx))
	} else {
		logger.Warn("No sheets credentials configured, sending unauthenticated requests")
		client = resty.New()
	}
	client.SetBaseURL(cfg.BaseURL)
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return newSheetsStore(client, cfg.SpreadsheetID, cfg.Worksheet, logger, limiter), nil
}

func newSheetsStore(client *resty.Client, spreadsheetID, worksheet string, logger *zap.Logger, limiter *rate.Limiter) *SheetsStore {
	return &SheetsStore{
		client:        client,
		spreadsheetID: spreadsheetID,
		worksheet:     worksheet,
		logger:        logger.Named("sheets-store"),
		limiter:       limiter,
		retryBase:     time.Second,
	}
}

func (s *SheetsStore) EnsureHeader(ctx context.Context, header []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vr, err := s.getValues(ctx, s.a1("1:1"))
	if err != nil {
		return unavailable("read header", err)
	}

	if len(vr.Values) > 0 && len(vr.Values[0]) > 0 {
		have := cellsToStrings(vr.Values[0])
		if err := checkHeader(have, header); err != nil {
			return err
		}
		s.header = have
		return nil
	}

	s.logger.Info("Writing header to empty worksheet", zap.String("worksheet", s.worksheet))
	body := valueRange{
		Range:          s.a1("A1"),
		MajorDimension: "ROWS",
		Values:         [][]interface{}{stringsToCells(header)},
	}
	req := s.client.R().
		SetPathParams(map[string]string{"spreadsheetId": s.spreadsheetID, "range": s.a1("A1")}).
		SetQueryParam("valueInputOption", valueInputRaw).
		SetBody(body)
	if _, err := s.doRequest(ctx, http.MethodPut, "/v4/spreadsheets/{spreadsheetId}/values/{range}", req, true); err != nil {
		return unavailable("write header", err)
	}
	s.header = append([]string(nil), header...)
	return nil
}

func (s *SheetsStore) ReadAll(ctx context.Context) ([]models.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vr, err := s.getValues(ctx, s.a1(""))
	if err != nil {
		return nil, unavailable("read rows", err)
	}
	if len(vr.Values) == 0 {
		return nil, nil
	}

	header := cellsToStrings(vr.Values[0])
	s.header = header

	rows := make([]models.Row, 0, len(vr.Values)-1)
	for _, cells := range vr.Values[1:] {
		rows = append(rows, models.RowFromValues(header, cellsToStrings(cells)))
	}
	return rows, nil
}

func (s *SheetsStore) Append(ctx context.Context, row models.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	header, err := s.currentHeader(ctx)
	if err != nil {
		return err
	}

	body := valueRange{
		MajorDimension: "ROWS",
		Values:         [][]interface{}{stringsToCells(row.Values(header))},
	}
	req := s.client.R().
		SetPathParams(map[string]string{"spreadsheetId": s.spreadsheetID, "range": s.a1("A1")}).
		SetQueryParams(map[string]string{
			"valueInputOption": valueInputRaw,
			"insertDataOption": "INSERT_ROWS",
		}).
		SetBody(body)

	// Not idempotent: a retried append after a lost response would duplicate the row.
	if _, err := s.doRequest(ctx, http.MethodPost, "/v4/spreadsheets/{spreadsheetId}/values/{range}:append", req, false); err != nil {
		return unavailable("append row", err)
	}
	return nil
}

// UpdateFields writes all cells with a single values:batchUpdate call.
func (s *SheetsStore) UpdateFields(ctx context.Context, position int, fields models.Row) error {
	if position < 0 {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, position)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	header, err := s.currentHeader(ctx)
	if err != nil {
		return err
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[col] = i
	}

	sheetRow := position + 2
	data := make([]valueRange, 0, len(fields))
	for _, col := range header {
		v, ok := fields[col]
		if !ok {
			continue
		}
		data = append(data, valueRange{
			Range:  s.a1(columnLetter(index[col]) + strconv.Itoa(sheetRow)),
			Values: [][]interface{}{{v}},
		})
	}
	if len(data) != len(fields) {
		for col := range fields {
			if _, ok := index[col]; !ok {
				return fmt.Errorf("%w: %q", ErrUnknownColumn, col)
			}
		}
	}

	req := s.client.R().
		SetPathParam("spreadsheetId", s.spreadsheetID).
		SetBody(batchUpdateRequest{ValueInputOption: valueInputRaw, Data: data})
	if _, err := s.doRequest(ctx, http.MethodPost, "/v4/spreadsheets/{spreadsheetId}/values:batchUpdate", req, true); err != nil {
		return unavailable("update row", err)
	}
	return nil
}

func (s *SheetsStore) Close() error { return nil }

func (s *SheetsStore) currentHeader(ctx context.Context) ([]string, error) {
	if s.header != nil {
		return s.header, nil
	}
	vr, err := s.getValues(ctx, s.a1("1:1"))
	if err != nil {
		return nil, unavailable("read header", err)
	}
	if len(vr.Values) == 0 || len(vr.Values[0]) == 0 {
		return nil, unavailable("read header", errors.New("worksheet has no header"))
	}
	s.header = cellsToStrings(vr.Values[0])
	return s.header, nil
}

func (s *SheetsStore) getValues(ctx context.Context, a1 string) (*valueRange, error) {
	req := s.client.R().
		SetPathParams(map[string]string{"spreadsheetId": s.spreadsheetID, "range": a1}).
		SetResult(&valueRange{})

	resp, err := s.doRequest(ctx, http.MethodGet, "/v4/spreadsheets/{spreadsheetId}/values/{range}", req, true)
	if err != nil {
		return nil, err
	}
	return resp.Result().(*valueRange), nil
}

// doRequest handles the actual request execution with rate limiting and retry logic.
// Requests that are not idempotent are only retried when the API rejected them with 429.
func (s *SheetsStore) doRequest(ctx context.Context, method, url string, req *resty.Request, idempotent bool) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	req.SetContext(ctx)

	for i := 0; i < maxSheetsRetries; i++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		s.logger.Debug("Executing request", zap.String("method", method), zap.String("url", url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}

		shouldRetry := false
		var retryAfter time.Duration

		if err == nil {
			statusCode := resp.StatusCode()
			switch {
			case statusCode == http.StatusTooManyRequests:
				shouldRetry = true
				if seconds, err := strconv.Atoi(resp.Header().Get("Retry-After")); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			case statusCode >= 500:
				shouldRetry = idempotent
			}
			if !shouldRetry {
				return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
			}
			err = fmt.Errorf("request failed with status %s", resp.Status())
		} else {
			shouldRetry = idempotent
			if !shouldRetry {
				return nil, err
			}
		}

		if retryAfter == 0 {
			// Exponential backoff: base, 2*base, 4*base
			retryAfter = time.Duration(math.Pow(2, float64(i))) * s.retryBase
		}

		s.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxSheetsRetries, err)
}

// a1 prefixes ref with the quoted worksheet name, e.g. 'Paper Trades'!A1.
// An empty ref selects the whole worksheet.
func (s *SheetsStore) a1(ref string) string {
	if ref == "" {
		return quoteSheetName(s.worksheet)
	}
	return quoteSheetName(s.worksheet) + "!" + ref
}

func quoteSheetName(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// columnLetter converts a zero-based column index to A1 notation (0 -> A, 26 -> AA).
func columnLetter(i int) string {
	name := ""
	for i >= 0 {
		name = string(rune('A'+i%26)) + name
		i = i/26 - 1
	}
	return name
}

func cellsToStrings(cells []interface{}) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		switch v := c.(type) {
		case string:
			out[i] = v
		case float64:
			out[i] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			out[i] = strconv.FormatBool(v)
		case nil:
			out[i] = ""
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}

func stringsToCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
