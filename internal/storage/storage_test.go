package storage

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/lib/pq"

	"github.com/IshaanNene/PharmCrawl/internal/catalog"
	"github.com/IshaanNene/PharmCrawl/internal/config"
	"github.com/IshaanNene/PharmCrawl/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func ptr(s string) *string { return &s }

func testRecord(rpc string) *catalog.ProductRecord {
	return &catalog.ProductRecord{
		Timestamp:     1709294400.5,
		RPC:           rpc,
		URL:           "https://apteka-ot-sklada.ru/catalog/item_" + rpc,
		Title:         "Компливит <60>",
		MarketingTags: []string{"Акция"},
		Brand:         ptr("Отисифарм"),
		Section:       []string{"Главная", "Каталог"},
		PriceData:     catalog.PriceData{Current: 150, Original: 200, SaleTag: "Скидка 25.0%"},
		Stock:         catalog.StockInfo{InStock: true},
		Assets:        catalog.ResolveAssets("https", "apteka-ot-sklada.ru", []string{"/1.jpg"}),
		Metadata:      catalog.Metadata{Description: "Описание", Article: rpc, Country: ptr("Россия")},
		Variants:      1,
	}
}

func TestJSONLStorage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage("jsonl", dir, testLogger)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Store([]*types.Item{testRecord("1").Item(), testRecord("2").Item()}); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "products.jsonl"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var doc map[string]any
		if err := json.Unmarshal(sc.Bytes(), &doc); err != nil {
			t.Fatalf("line %d: %v", len(lines), err)
		}
		lines = append(lines, doc)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[1]["RPC"] != "2" {
		t.Errorf("second line RPC: got %v", lines[1]["RPC"])
	}
	if _, ok := lines[0]["_url"]; ok {
		t.Error("records must not carry internal keys")
	}
	if lines[0]["title"] != "Компливит <60>" {
		t.Errorf("title: got %v", lines[0]["title"])
	}
}

func TestJSONLKeepsRecordFieldOrder(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewFileStorage("jsonl", dir, testLogger)
	s.Store([]*types.Item{testRecord("1").Item()})
	s.Close()

	data, err := os.ReadFile(filepath.Join(dir, "products.jsonl"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(data), `{"timestamp":1709294400.5,"RPC":"1",`) {
		t.Errorf("unexpected field order: %s", data)
	}
	if !strings.Contains(string(data), "<60>") {
		t.Error("HTML characters should not be escaped")
	}
}

func TestJSONStorage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage("json", dir, testLogger)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	s.Store([]*types.Item{testRecord("1").Item()})
	s.Store([]*types.Item{testRecord("2").Item()})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "products.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var docs []catalog.ProductRecord
	if err := json.Unmarshal(data, &docs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(docs) != 2 || docs[0].Metadata.Article != "1" || docs[1].PriceData.SaleTag != "Скидка 25.0%" {
		t.Errorf("unexpected documents %+v", docs)
	}
}

func TestJSONStorageEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage("json", dir, testLogger)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "products.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "[]\n" {
		t.Errorf("empty output: got %q", data)
	}
}

func TestJSONLWritesNullBrand(t *testing.T) {
	dir := t.TempDir()
	rec := testRecord("1")
	rec.Brand = nil
	rec.Metadata.Country = nil

	s, _ := NewFileStorage("jsonl", dir, testLogger)
	s.Store([]*types.Item{rec.Item()})
	s.Close()

	data, err := os.ReadFile(filepath.Join(dir, "products.jsonl"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"brand":null`) || !strings.Contains(string(data), `"СТРАНА ПРОИЗВОДИТЕЛЬ":null`) {
		t.Errorf("absent brand and country should be null: %s", data)
	}
}

func readCSV(t *testing.T, path string) []map[string]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) == 0 {
		t.Fatal("no header row")
	}
	var out []map[string]string
	for _, row := range rows[1:] {
		m := make(map[string]string, len(row))
		for i, h := range rows[0] {
			m[h] = row[i]
		}
		out = append(out, m)
	}
	return out
}

func TestCSVStorage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage("csv", dir, testLogger)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	s.Store([]*types.Item{testRecord("1").Item()})
	s.Close()

	rows := readCSV(t, filepath.Join(dir, "products.csv"))
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}

	tests := map[string]string{
		"RPC":                 "1",
		"section":             `["Главная","Каталог"]`,
		"brand":               "Отисифарм",
		"price_data.current":  "150",
		"price_data.sale_tag": "Скидка 25.0%",
		"stock.in_stock":      "true",
		"stock.count":         "0",
		"assets.main_image":   "https://apteka-ot-sklada.ru/1.jpg",
		"metadata.АРТИКУЛ":    "1",
		"timestamp":           "1709294400.5",
	}
	for col, want := range tests {
		if got := rows[0][col]; got != want {
			t.Errorf("%s: got %q, want %q", col, got, want)
		}
	}
}

func TestCSVHeaderWithoutRecords(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewFileStorage("csv", dir, testLogger)
	s.Close()

	data, err := os.ReadFile(filepath.Join(dir, "products.csv"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	header := strings.TrimSpace(string(data))
	if !strings.HasPrefix(header, "timestamp,RPC,url,title,") || !strings.HasSuffix(header, ",variants") {
		t.Errorf("unexpected header %q", header)
	}
}

func TestCSVSkipsForeignItems(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewFileStorage("csv", dir, testLogger)

	foreign := types.NewItem("https://apteka-ot-sklada.ru/catalog")
	foreign.Set("note", "listing")
	rec := testRecord("1")
	rec.Brand = nil
	if err := s.Store([]*types.Item{foreign, rec.Item()}); err != nil {
		t.Fatalf("store: %v", err)
	}
	s.Close()

	if s.count != 1 || s.skipped != 1 {
		t.Errorf("count=%d skipped=%d", s.count, s.skipped)
	}
	rows := readCSV(t, filepath.Join(dir, "products.csv"))
	if len(rows) != 1 || rows[0]["brand"] != "" {
		t.Errorf("unexpected rows %v", rows)
	}
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(config.StorageConfig{Type: "parquet"}, testLogger)
	var se *types.StorageError
	if !errors.As(err, &se) || se.Backend != "parquet" {
		t.Errorf("expected StorageError for parquet, got %v", err)
	}
}

func TestMultiStorage(t *testing.T) {
	dir := t.TempDir()
	cfg := config.StorageConfig{Type: "multi", Backends: []string{"jsonl", "csv"}, OutputPath: dir}

	s, err := New(cfg, testLogger)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.Name() != "multi" {
		t.Errorf("name: got %q", s.Name())
	}
	if err := s.Store([]*types.Item{testRecord("1").Item()}); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for _, name := range []string{"products.jsonl", "products.csv"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil || info.Size() == 0 {
			t.Errorf("%s not written: %v", name, err)
		}
	}
}

type failingStorage struct{ name string }

func (f failingStorage) Name() string               { return f.name }
func (f failingStorage) Store([]*types.Item) error { return errors.New("disk full") }
func (f failingStorage) Close() error               { return nil }

func TestMultiStorageKeepsGoing(t *testing.T) {
	dir := t.TempDir()
	file, err := NewFileStorage("jsonl", dir, testLogger)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	s := NewMultiStorage([]Storage{failingStorage{name: "broken"}, file}, testLogger)

	err = s.Store([]*types.Item{testRecord("1").Item()})
	var se *types.StorageError
	if !errors.As(err, &se) || se.Backend != "multi" || !strings.Contains(err.Error(), "broken: disk full") {
		t.Errorf("expected wrapped backend error, got %v", err)
	}
	if file.count != 1 {
		t.Errorf("healthy backend should still store, count=%d", file.count)
	}
	if err := s.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestMongoDocuments(t *testing.T) {
	foreign := types.NewItem("https://apteka-ot-sklada.ru/catalog")
	docs, skipped := mongoDocuments([]*types.Item{testRecord("1").Item(), foreign})
	if len(docs) != 1 || skipped != 1 {
		t.Fatalf("docs=%d skipped=%d", len(docs), skipped)
	}
	if rec, ok := docs[0].(*catalog.ProductRecord); !ok || rec.RPC != "1" {
		t.Errorf("unexpected document %#v", docs[0])
	}
}

func TestBuildInsert(t *testing.T) {
	query, args, err := buildInsert("products", []*catalog.ProductRecord{testRecord("1"), testRecord("2")})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if !strings.HasPrefix(query, `INSERT INTO "products" (rpc,url,title,brand,country,section,marketing_tags,price_current,price_original,sale_tag,in_stock,scraped_at,record) VALUES ($1,`) {
		t.Errorf("unexpected query %s", query)
	}
	if !strings.Contains(query, "$26)") {
		t.Errorf("expected 26 placeholders, got %s", query)
	}
	if len(args) != 26 {
		t.Fatalf("expected 26 args, got %d", len(args))
	}

	if args[0] != "1" || args[13] != "2" {
		t.Errorf("rpc args: %v %v", args[0], args[13])
	}
	section, ok := args[5].(pq.StringArray)
	if !ok || len(section) != 2 || section[0] != "Главная" {
		t.Errorf("section arg: %#v", args[5])
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(args[12].(string)), &doc); err != nil {
		t.Fatalf("record arg is not JSON: %v", err)
	}
	if doc["RPC"] != "1" {
		t.Errorf("record RPC: got %v", doc["RPC"])
	}
}

func TestBuildInsertEmptySlices(t *testing.T) {
	rec := testRecord("1")
	rec.MarketingTags = nil

	_, args, err := buildInsert("products", []*catalog.ProductRecord{rec})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if tags := args[6].(pq.StringArray); tags == nil {
		t.Error("nil tags should be written as an empty array")
	}
}

func TestBuildInsertNullBrand(t *testing.T) {
	rec := testRecord("1")
	rec.Brand = nil

	_, args, err := buildInsert("products", []*catalog.ProductRecord{rec})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if brand, ok := args[3].(*string); !ok || brand != nil {
		t.Errorf("brand arg should be a nil *string, got %#v", args[3])
	}
	if country, ok := args[4].(*string); !ok || country == nil || *country != "Россия" {
		t.Errorf("country arg: %#v", args[4])
	}
}

func TestBatchesStayUnderParameterLimit(t *testing.T) {
	records := make([]*catalog.ProductRecord, 6000)
	for i := range records {
		records[i] = testRecord(strconv.Itoa(i))
	}

	chunks := batches(records, rowsPerInsert)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	total := 0
	for _, chunk := range chunks {
		_, args, err := buildInsert("products", chunk)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if len(args) > maxParams {
			t.Errorf("chunk of %d rows binds %d parameters", len(chunk), len(args))
		}
		total += len(chunk)
	}
	if total != len(records) {
		t.Errorf("chunks cover %d of %d records", total, len(records))
	}
	if chunks[1][0].RPC != strconv.Itoa(rowsPerInsert) {
		t.Errorf("second chunk starts at %s", chunks[1][0].RPC)
	}
}

func TestBatchesEmpty(t *testing.T) {
	if got := batches(nil, 10); len(got) != 0 {
		t.Errorf("expected no chunks, got %d", len(got))
	}
	if got := batches([]*catalog.ProductRecord{testRecord("1")}, 10); len(got) != 1 {
		t.Errorf("expected one chunk, got %d", len(got))
	}
}
