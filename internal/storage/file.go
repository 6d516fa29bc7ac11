package storage

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/IshaanNene/PharmCrawl/internal/catalog"
	"github.com/IshaanNene/PharmCrawl/internal/types"
)

// fileFormat encodes records into an output file.
type fileFormat interface {
	begin(w io.Writer) error
	// write reports false when the item cannot be represented.
	write(w io.Writer, item *types.Item) (bool, error)
	end(w io.Writer) error
}

// FileStorage streams records into products.{json,jsonl,csv} under an
// output directory. Every Store call is flushed to disk before it returns.
type FileStorage struct {
	name    string
	path    string
	file    *os.File
	buf     *bufio.Writer
	format  fileFormat
	mu      sync.Mutex
	count   int
	skipped int
	logger  *slog.Logger
}

// NewFileStorage creates products.<storageType> in outputDir.
func NewFileStorage(storageType, outputDir string, logger *slog.Logger) (*FileStorage, error) {
	var format fileFormat
	switch storageType {
	case "json":
		format = &jsonArrayFormat{}
	case "jsonl":
		format = jsonLinesFormat{}
	case "csv":
		format = &csvFormat{}
	default:
		return nil, &types.StorageError{Backend: storageType, Err: fmt.Errorf("unsupported file storage type")}
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, &types.StorageError{Backend: storageType, Err: fmt.Errorf("create output dir: %w", err)}
	}
	path := filepath.Join(outputDir, "products."+storageType)
	f, err := os.Create(path)
	if err != nil {
		return nil, &types.StorageError{Backend: storageType, Err: fmt.Errorf("create output file: %w", err)}
	}

	s := &FileStorage{
		name:   storageType,
		path:   path,
		file:   f,
		buf:    bufio.NewWriter(f),
		format: format,
		logger: logger.With("component", storageType+"_storage"),
	}
	if err := format.begin(s.buf); err != nil {
		f.Close()
		return nil, &types.StorageError{Backend: storageType, Err: err}
	}
	return s, nil
}

func (s *FileStorage) Name() string { return s.name }

func (s *FileStorage) Store(items []*types.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		ok, err := s.format.write(s.buf, item)
		if err != nil {
			return &types.StorageError{Backend: s.name, Err: err}
		}
		if !ok {
			s.skipped++
			s.logger.Warn("item is not a product record, skipped", "url", item.URL)
			continue
		}
		s.count++
	}
	if err := s.buf.Flush(); err != nil {
		return &types.StorageError{Backend: s.name, Err: err}
	}
	return nil
}

func (s *FileStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.format.end(s.buf)
	if err == nil {
		err = s.buf.Flush()
	}
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	s.logger.Info("output written", "path", s.path, "records", s.count, "skipped", s.skipped)
	if err != nil {
		return &types.StorageError{Backend: s.name, Err: err}
	}
	return nil
}

// marshalDocument encodes an item without HTML escaping, so titles keep
// their literal <, > and & characters.
func marshalDocument(item *types.Item) ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(document(item)); err != nil {
		return nil, fmt.Errorf("encode %s: %w", item.URL, err)
	}
	return bytes.TrimRight(b.Bytes(), "\n"), nil
}

// jsonLinesFormat writes one document per line.
type jsonLinesFormat struct{}

func (jsonLinesFormat) begin(io.Writer) error { return nil }
func (jsonLinesFormat) end(io.Writer) error   { return nil }

func (jsonLinesFormat) write(w io.Writer, item *types.Item) (bool, error) {
	doc, err := marshalDocument(item)
	if err != nil {
		return false, err
	}
	_, err = fmt.Fprintf(w, "%s\n", doc)
	return err == nil, err
}

// jsonArrayFormat streams a JSON array, one element per line.
type jsonArrayFormat struct {
	n int
}

func (f *jsonArrayFormat) begin(w io.Writer) error {
	_, err := io.WriteString(w, "[")
	return err
}

func (f *jsonArrayFormat) write(w io.Writer, item *types.Item) (bool, error) {
	doc, err := marshalDocument(item)
	if err != nil {
		return false, err
	}
	sep := ",\n  "
	if f.n == 0 {
		sep = "\n  "
	}
	if _, err := io.WriteString(w, sep); err != nil {
		return false, err
	}
	if _, err := w.Write(doc); err != nil {
		return false, err
	}
	f.n++
	return true, nil
}

func (f *jsonArrayFormat) end(w io.Writer) error {
	closing := "\n]\n"
	if f.n == 0 {
		closing = "]\n"
	}
	_, err := io.WriteString(w, closing)
	return err
}

// csvColumn is one flattened record field. Lists are written as JSON arrays
// and an absent brand or country as an empty cell.
type csvColumn struct {
	name  string
	value func(r *catalog.ProductRecord) string
}

var csvColumns = []csvColumn{
	{"timestamp", func(r *catalog.ProductRecord) string { return formatNumber(r.Timestamp) }},
	{"RPC", func(r *catalog.ProductRecord) string { return r.RPC }},
	{"url", func(r *catalog.ProductRecord) string { return r.URL }},
	{"title", func(r *catalog.ProductRecord) string { return r.Title }},
	{"marketing_tags", func(r *catalog.ProductRecord) string { return jsonList(r.MarketingTags) }},
	{"brand", func(r *catalog.ProductRecord) string { return deref(r.Brand) }},
	{"section", func(r *catalog.ProductRecord) string { return jsonList(r.Section) }},
	{"price_data.current", func(r *catalog.ProductRecord) string { return formatNumber(r.PriceData.Current) }},
	{"price_data.original", func(r *catalog.ProductRecord) string { return formatNumber(r.PriceData.Original) }},
	{"price_data.sale_tag", func(r *catalog.ProductRecord) string { return r.PriceData.SaleTag }},
	{"stock.in_stock", func(r *catalog.ProductRecord) string { return strconv.FormatBool(r.Stock.InStock) }},
	{"stock.count", func(r *catalog.ProductRecord) string { return strconv.Itoa(r.Stock.Count) }},
	{"assets.main_image", func(r *catalog.ProductRecord) string { return r.Assets.MainImage }},
	{"assets.set_images", func(r *catalog.ProductRecord) string { return jsonList(r.Assets.SetImages) }},
	{"assets.view360", func(r *catalog.ProductRecord) string { return jsonList(r.Assets.View360) }},
	{"assets.video", func(r *catalog.ProductRecord) string { return jsonList(r.Assets.Video) }},
	{"metadata.__description", func(r *catalog.ProductRecord) string { return r.Metadata.Description }},
	{"metadata.АРТИКУЛ", func(r *catalog.ProductRecord) string { return r.Metadata.Article }},
	{"metadata.СТРАНА ПРОИЗВОДИТЕЛЬ", func(r *catalog.ProductRecord) string { return deref(r.Metadata.Country) }},
	{"variants", func(r *catalog.ProductRecord) string { return strconv.Itoa(r.Variants) }},
}

// csvFormat writes one row per product record under a fixed header.
type csvFormat struct {
	cw *csv.Writer
}

func (f *csvFormat) begin(w io.Writer) error {
	f.cw = csv.NewWriter(w)
	header := make([]string, len(csvColumns))
	for i, c := range csvColumns {
		header[i] = c.name
	}
	return f.flushRow(header)
}

func (f *csvFormat) write(_ io.Writer, item *types.Item) (bool, error) {
	rec, ok := catalog.RecordFromItem(item)
	if !ok {
		return false, nil
	}
	row := make([]string, len(csvColumns))
	for i, c := range csvColumns {
		row[i] = c.value(rec)
	}
	return true, f.flushRow(row)
}

func (f *csvFormat) end(io.Writer) error { return nil }

func (f *csvFormat) flushRow(row []string) error {
	if err := f.cw.Write(row); err != nil {
		return err
	}
	f.cw.Flush()
	return f.cw.Error()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func jsonList(values []string) string {
	if values == nil {
		values = []string{}
	}
	b, _ := json.Marshal(values)
	return string(b)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
