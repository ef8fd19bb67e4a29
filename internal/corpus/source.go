package corpus

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Source delivers the current set of postings. Ingestion owns the data; the
// recommender only reads snapshots of it.
type Source interface {
	Name() string
	Load(ctx context.Context) (*Corpus, []Issue, error)
}

// FileSource reads a JSON array or JSON-lines dump, optionally gzip
// compressed (".gz" suffix).
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Name() string { return "file:" + s.Path }

func (s *FileSource) Load(_ context.Context) (*Corpus, []Issue, error) {
	records, err := ReadRecordsFile(s.Path)
	if err != nil {
		return nil, nil, err
	}
	return DecodeRecords(records)
}

// ReadRecordsFile loads loosely typed records from a JSON array or JSON-lines
// file. It is shared with the profile and persona loaders.
func ReadRecordsFile(path string) ([]map[string]any, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("open gzip %s: %w", path, err)
		}
		defer gz.Close()
		reader = gz
	}

	records, err := ReadRecords(reader)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}

// ReadRecords accepts either a JSON array of objects, an object with an
// "items" array, or one object per line.
func ReadRecords(r io.Reader) ([]map[string]any, error) {
	br := bufio.NewReader(r)
	first, err := firstByte(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	switch first {
	case '[':
		var records []map[string]any
		if err := json.NewDecoder(br).Decode(&records); err != nil {
			return nil, err
		}
		return records, nil
	case '{':
		data, err := io.ReadAll(br)
		if err != nil {
			return nil, err
		}
		var envelope struct {
			Items []map[string]any `json:"items"`
		}
		if err := json.Unmarshal(data, &envelope); err == nil && envelope.Items != nil {
			return envelope.Items, nil
		}
		return readLines(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unexpected leading character %q", first)
	}
}

func readLines(r io.Reader) ([]map[string]any, error) {
	var records []map[string]any
	dec := json.NewDecoder(r)
	for {
		var record map[string]any
		err := dec.Decode(&record)
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
}

func firstByte(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return 0, err
		}
		return b, nil
	}
}
