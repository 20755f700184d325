package dataset

import (
	"context"
	"encoding/csv"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"superstore-dashboard/internal/models"
)

const (
	batchSize    = 10000
	maxWorkers   = 10
	cacheVersion = "v2"
)

var ErrNoRecords = errors.New("no records found")

// Dataset is an immutable snapshot of the orders file. It is safe for
// concurrent reads and must never be mutated after New returns.
type Dataset struct {
	Orders   []models.Order
	Options  models.Options
	LoadedAt time.Time
}

func New(orders []models.Order) *Dataset {
	return &Dataset{
		Orders:   orders,
		Options:  BuildOptions(orders),
		LoadedAt: time.Now(),
	}
}

// BuildOptions collects distinct dimension values in first-appearance order
// and the date span of orders.
func BuildOptions(orders []models.Order) models.Options {
	opts := models.Options{
		Regions:    distinct(orders, models.DimRegion),
		Categories: distinct(orders, models.DimCategory),
		Segments:   distinct(orders, models.DimSegment),
		ShipModes:  distinct(orders, models.DimShipMode),
	}
	for i, o := range orders {
		if i == 0 || o.OrderDate.Before(opts.MinDate) {
			opts.MinDate = o.OrderDate
		}
		if i == 0 || o.OrderDate.After(opts.MaxDate) {
			opts.MaxDate = o.OrderDate
		}
	}
	return opts
}

func distinct(orders []models.Order, d models.Dimension) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, o := range orders {
		v := o.Value(d)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

type Loader struct {
	cacheDir string
	logger   *slog.Logger
}

// NewLoader returns a loader that keeps a gob snapshot of parsed files in
// cacheDir. An empty cacheDir disables the snapshot.
func NewLoader(cacheDir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{cacheDir: cacheDir, logger: logger}
}

func (l *Loader) Load(ctx context.Context, filename string) (*Dataset, error) {
	info, err := os.Stat(filename)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	if cached, err := l.loadFromCache(filename); err == nil && cached.matches(info) {
		l.logger.Info("loaded from cache", "records", len(cached.Orders))
		return New(cached.Orders), nil
	}

	start := time.Now()
	l.logger.Info("processing CSV file", "filename", filename)

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	orders, err := Parse(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("process csv: %w", err)
	}

	ds := New(orders)
	if err := l.saveToCache(filename, info, ds); err != nil {
		l.logger.Warn("failed to save cache", "error", err)
	}

	duration := time.Since(start)
	l.logger.Info("csv processing complete",
		"records", len(orders),
		"duration", duration,
		"rate", fmt.Sprintf("%.0f records/sec", float64(len(orders))/duration.Seconds()))

	return ds, nil
}

type batch struct {
	lines []int
	rows  [][]string
}

// Parse reads an orders CSV. Any malformed row fails the whole parse with
// the offending line number.
func Parse(ctx context.Context, r io.Reader) ([]models.Order, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	s, err := resolveSchema(header)
	if err != nil {
		return nil, err
	}

	var batches []batch
	var current batch
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		line, _ := reader.FieldPos(0)
		current.lines = append(current.lines, line)
		current.rows = append(current.rows, record)
		if len(current.rows) >= batchSize {
			batches = append(batches, current)
			current = batch{}
		}
	}
	if len(current.rows) > 0 {
		batches = append(batches, current)
	}
	if len(batches) == 0 {
		return nil, ErrNoRecords
	}

	parsed := make([][]models.Order, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)
	for i, b := range batches {
		g.Go(func() error {
			out := make([]models.Order, 0, len(b.rows))
			for j, row := range b.rows {
				if j%1000 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				o, err := s.parseOrder(row)
				if err != nil {
					return fmt.Errorf("line %d: %w", b.lines[j], err)
				}
				out = append(out, o)
			}
			parsed[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, p := range parsed {
		total += len(p)
	}
	orders := make([]models.Order, 0, total)
	for _, p := range parsed {
		orders = append(orders, p...)
	}
	return orders, nil
}

// snapshot is the gob cache entry. It is only reused while the source file
// still has the size and modification time it had when parsed.
type snapshot struct {
	Orders        []models.Order
	LoadedAt      time.Time
	SourceSize    int64
	SourceModTime time.Time
}

func (s *snapshot) matches(info os.FileInfo) bool {
	return s.SourceSize == info.Size() && s.SourceModTime.Equal(info.ModTime())
}

func (l *Loader) cacheFilename(csvPath string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(csvPath)
	return filepath.Join(l.cacheDir, fmt.Sprintf("%s_%s.gob", name, cacheVersion))
}

func (l *Loader) saveToCache(csvPath string, info os.FileInfo, ds *Dataset) error {
	if l.cacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(l.cacheDir, 0755); err != nil {
		return err
	}

	file, err := os.Create(l.cacheFilename(csvPath))
	if err != nil {
		return err
	}
	defer file.Close()

	return gob.NewEncoder(file).Encode(snapshot{
		Orders:        ds.Orders,
		LoadedAt:      ds.LoadedAt,
		SourceSize:    info.Size(),
		SourceModTime: info.ModTime(),
	})
}

func (l *Loader) loadFromCache(csvPath string) (*snapshot, error) {
	if l.cacheDir == "" {
		return nil, os.ErrNotExist
	}
	file, err := os.Open(l.cacheFilename(csvPath))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var snap snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return nil, err
	}
	if len(snap.Orders) == 0 {
		return nil, ErrNoRecords
	}
	return &snap, nil
}
