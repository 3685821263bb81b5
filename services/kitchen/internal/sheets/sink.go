package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/appetiteclub/comanda/pkg"
	"github.com/appetiteclub/comanda/pkg/order"
	"github.com/aquamarinepk/aqm"
)

const (
	DefaultBaseURL   = "https://sheets.googleapis.com/v4"
	DefaultSheetName = "PedidosTerminados"
	defaultTimeout   = 10 * time.Second
)

var ErrNotConfigured = errors.New("sheets sink is not configured")

type Settings struct {
	BaseURL       string
	SpreadsheetID string
	APIKey        string
	SheetName     string
	Timeout       time.Duration
}

func LoadSettings(config *aqm.Config) Settings {
	return Settings{
		BaseURL:       pkg.StringOr(config, "sink.sheets.base_url", DefaultBaseURL),
		SpreadsheetID: pkg.StringOr(config, "sink.sheets.spreadsheet_id", ""),
		APIKey:        pkg.StringOr(config, "sink.sheets.api_key", ""),
		SheetName:     pkg.StringOr(config, "sink.sheets.sheet", DefaultSheetName),
		Timeout:       pkg.DurationOr(config, "sink.sheets.timeout", defaultTimeout),
	}
}

// Sink appends terminated orders as rows of a Google Sheets tab.
type Sink struct {
	settings Settings
	client   *http.Client
	logger   aqm.Logger
}

func NewSink(settings Settings, client *http.Client, logger aqm.Logger) *Sink {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if settings.BaseURL == "" {
		settings.BaseURL = DefaultBaseURL
	}
	if settings.SheetName == "" {
		settings.SheetName = DefaultSheetName
	}
	if client == nil {
		timeout := settings.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Sink{settings: settings, client: client, logger: logger}
}

// Start makes sure the tab exists. A freshly created tab gets the header row.
func (s *Sink) Start(ctx context.Context) error {
	if !s.configured() {
		return ErrNotConfigured
	}

	exists, err := s.sheetExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := s.addSheet(ctx); err != nil {
		return err
	}
	headers := make([]interface{}, 0, len(order.Headers))
	for _, h := range order.Headers {
		headers = append(headers, h)
	}
	if err := s.appendRow(ctx, headers); err != nil {
		return fmt.Errorf("cannot write header row: %w", err)
	}

	s.logger.Info("sheet created", "sheet", s.settings.SheetName)
	return nil
}

func (s *Sink) Stop(ctx context.Context) error {
	return nil
}

func (s *Sink) Record(ctx context.Context, p order.Pending, completedAt time.Time) error {
	if !s.configured() {
		return ErrNotConfigured
	}
	return s.appendRow(ctx, order.NewTerminated(p, completedAt).Row())
}

// ListByDate reads the whole tab and keeps the rows of date, skipping the
// header row.
func (s *Sink) ListByDate(ctx context.Context, date string) ([]order.Terminated, error) {
	if !s.configured() {
		return nil, ErrNotConfigured
	}

	endpoint := s.valuesURL("!A:G", "")
	var body struct {
		Values [][]interface{} `json:"values"`
	}
	if err := s.do(ctx, http.MethodGet, endpoint, nil, &body); err != nil {
		return nil, fmt.Errorf("cannot read sheet: %w", err)
	}

	records := []order.Terminated{}
	if len(body.Values) < 2 {
		return records, nil
	}
	for _, row := range body.Values[1:] {
		rec, ok := parseRow(row)
		if !ok || rec.Date != date {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Sink) configured() bool {
	return s.settings.SpreadsheetID != "" && s.settings.APIKey != ""
}

func (s *Sink) sheetExists(ctx context.Context) (bool, error) {
	endpoint := fmt.Sprintf("%s/spreadsheets/%s?key=%s",
		s.settings.BaseURL,
		url.PathEscape(s.settings.SpreadsheetID),
		url.QueryEscape(s.settings.APIKey))

	var body struct {
		Sheets []struct {
			Properties struct {
				Title string `json:"title"`
			} `json:"properties"`
		} `json:"sheets"`
	}
	if err := s.do(ctx, http.MethodGet, endpoint, nil, &body); err != nil {
		return false, fmt.Errorf("cannot read spreadsheet: %w", err)
	}

	for _, sh := range body.Sheets {
		if sh.Properties.Title == s.settings.SheetName {
			return true, nil
		}
	}
	return false, nil
}

func (s *Sink) addSheet(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/spreadsheets/%s:batchUpdate?key=%s",
		s.settings.BaseURL,
		url.PathEscape(s.settings.SpreadsheetID),
		url.QueryEscape(s.settings.APIKey))

	req := map[string]interface{}{
		"requests": []interface{}{
			map[string]interface{}{
				"addSheet": map[string]interface{}{
					"properties": map[string]string{"title": s.settings.SheetName},
				},
			},
		},
	}
	if err := s.do(ctx, http.MethodPost, endpoint, req, nil); err != nil {
		return fmt.Errorf("cannot create sheet %s: %w", s.settings.SheetName, err)
	}
	return nil
}

func (s *Sink) appendRow(ctx context.Context, row []interface{}) error {
	endpoint := s.valuesURL("!A:append", "valueInputOption=RAW")
	req := map[string]interface{}{
		"values": [][]interface{}{row},
	}
	return s.do(ctx, http.MethodPost, endpoint, req, nil)
}

func (s *Sink) valuesURL(suffix, query string) string {
	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s%s?",
		s.settings.BaseURL,
		url.PathEscape(s.settings.SpreadsheetID),
		url.PathEscape(s.settings.SheetName),
		suffix)
	if query != "" {
		endpoint += query + "&"
	}
	return endpoint + "key=" + url.QueryEscape(s.settings.APIKey)
}

func (s *Sink) do(ctx context.Context, method, endpoint string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sheets API returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func parseRow(row []interface{}) (order.Terminated, bool) {
	if len(row) < 7 {
		return order.Terminated{}, false
	}
	cell := func(i int) string { return fmt.Sprint(row[i]) }

	table, err := strconv.Atoi(cell(2))
	if err != nil {
		return order.Terminated{}, false
	}
	completedAt, _ := time.Parse(time.RFC3339, cell(6))

	return order.Terminated{
		Date:        cell(0),
		Time:        cell(1),
		Table:       table,
		Products:    cell(3),
		Notes:       cell(4),
		Status:      cell(5),
		CompletedAt: completedAt,
	}, true
}
