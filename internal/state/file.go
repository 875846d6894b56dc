package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	seenFileName    = "seen.txt"
	pricesFileName  = "prices.json"
	historyFileName = "history.jsonl"
)

// FileStore keeps state in a directory: a sorted line-oriented seen list, a
// JSON price record map, and an append-only JSONL observation history.
type FileStore struct {
	dir string
}

// NewFileStore builds a file-backed store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("state dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Load reads the seen set and price records. Missing files yield empty
// structures; malformed data yields a wrapped ErrCorrupt.
func (f *FileStore) Load(ctx context.Context) (SeenSet, map[string]PriceRecord, error) {
	seen, err := f.loadSeen()
	if err != nil {
		return nil, nil, err
	}
	prices, err := f.loadPrices()
	if err != nil {
		return nil, nil, err
	}
	return seen, prices, nil
}

func (f *FileStore) loadSeen() (SeenSet, error) {
	file, err := os.Open(filepath.Join(f.dir, seenFileName))
	if os.IsNotExist(err) {
		return NewSeenSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seen file: %w", err)
	}
	defer file.Close()

	seen := NewSeenSet()
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id != "" {
			seen.Add(id)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan seen file: %v", ErrCorrupt, err)
	}
	return seen, nil
}

func (f *FileStore) loadPrices() (map[string]PriceRecord, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, pricesFileName))
	if os.IsNotExist(err) {
		return make(map[string]PriceRecord), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read prices file: %w", err)
	}
	if len(data) == 0 {
		return make(map[string]PriceRecord), nil
	}

	prices := make(map[string]PriceRecord)
	if err := json.Unmarshal(data, &prices); err != nil {
		return nil, fmt.Errorf("%w: decode prices file: %v", ErrCorrupt, err)
	}
	for asset, rec := range prices {
		if asset == "" || rec.LastCheck.IsZero() {
			return nil, fmt.Errorf("%w: invalid price record for %q", ErrCorrupt, asset)
		}
	}
	return prices, nil
}

// Save writes both records via write-new-then-replace so a crash mid-write
// never truncates previously committed state.
func (f *FileStore) Save(ctx context.Context, seen SeenSet, prices map[string]PriceRecord) error {
	var builder strings.Builder
	for _, id := range seen.Sorted() {
		builder.WriteString(id)
		builder.WriteByte('\n')
	}
	if err := f.writeAtomic(seenFileName, []byte(builder.String())); err != nil {
		return fmt.Errorf("write seen file: %w", err)
	}

	data, err := json.MarshalIndent(prices, "", "  ")
	if err != nil {
		return fmt.Errorf("encode prices: %w", err)
	}
	data = append(data, '\n')
	if err := f.writeAtomic(pricesFileName, data); err != nil {
		return fmt.Errorf("write prices file: %w", err)
	}
	return nil
}

func (f *FileStore) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(f.dir, name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(f.dir, name)); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// AppendHistory appends observation points to the JSONL history file.
func (f *FileStore) AppendHistory(ctx context.Context, points []PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	file, err := os.OpenFile(filepath.Join(f.dir, historyFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	for _, point := range points {
		if err := enc.Encode(point); err != nil {
			return fmt.Errorf("append history point: %w", err)
		}
	}
	return nil
}

// ListHistory returns points for assetID observed in [from, to), in append order.
func (f *FileStore) ListHistory(ctx context.Context, assetID string, from, to time.Time) ([]PricePoint, error) {
	file, err := os.Open(filepath.Join(f.dir, historyFileName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer file.Close()

	var points []PricePoint
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var point PricePoint
		if err := json.Unmarshal([]byte(line), &point); err != nil {
			return nil, fmt.Errorf("%w: decode history line: %v", ErrCorrupt, err)
		}
		if point.AssetID != assetID {
			continue
		}
		if point.ObservedAt.Before(from) || !point.ObservedAt.Before(to) {
			continue
		}
		points = append(points, point)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan history file: %v", ErrCorrupt, err)
	}
	return points, nil
}

// Close is a no-op for the file backend.
func (f *FileStore) Close() {}

var _ Store = (*FileStore)(nil)
