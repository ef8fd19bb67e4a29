package artifact

import (
	"bufio"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spigell/job-recommender/internal/corpus"
	"github.com/spigell/job-recommender/internal/dense"
	"github.com/spigell/job-recommender/internal/features"
	"github.com/spigell/job-recommender/internal/lexical"
)

const (
	corpusFile   = "corpus.json.gz"
	lexicalFile  = "lexical.gob.gz"
	denseFile    = "dense.gob.gz"
	manifestFile = "manifest.json"
	currentFile  = "CURRENT"
)

var ErrNoVersion = errors.New("no artifact version published")

// Store persists snapshots as <root>/<version>/{corpus,lexical,dense,manifest}
// and names the published one in <root>/CURRENT. Directories and CURRENT are
// written under temporary names and renamed into place.
type Store struct {
	root string
}

func NewStore(root string) *Store { return &Store{root: root} }

func (s *Store) Root() string { return s.root }

func (s *Store) Save(snap *Snapshot) error {
	version := snap.Version()
	if version == "" {
		return errors.New("snapshot has no version")
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return err
	}

	tmp, err := os.MkdirTemp(s.root, ".tmp-"+version+"-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	files := map[string]func(io.Writer) error{
		corpusFile:  func(w io.Writer) error { return json.NewEncoder(w).Encode(snap.Corpus) },
		lexicalFile: snap.Lexical.Encode,
		denseFile:   snap.Dense.Encode,
	}
	sums := make(map[string]string, len(files))
	for name, encode := range files {
		sum, err := writeGzip(filepath.Join(tmp, name), encode)
		if err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		sums[name] = sum
	}

	manifest := snap.Manifest
	manifest.Files = sums
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(tmp, manifestFile), data, 0o644); err != nil {
		return err
	}

	if err := os.Rename(tmp, filepath.Join(s.root, version)); err != nil {
		return fmt.Errorf("move artifact into place: %w", err)
	}
	snap.Manifest.Files = sums
	return nil
}

// SetCurrent points CURRENT at version.
func (s *Store) SetCurrent(version string) error {
	if _, err := os.Stat(filepath.Join(s.root, version, manifestFile)); err != nil {
		return fmt.Errorf("version %s: %w", version, err)
	}
	tmp := filepath.Join(s.root, "."+currentFile+".tmp")
	if err := os.WriteFile(tmp, []byte(version+"\n"), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(s.root, currentFile))
}

func (s *Store) Current() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.root, currentFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoVersion
	}
	if err != nil {
		return "", err
	}
	version := strings.TrimSpace(string(data))
	if version == "" {
		return "", ErrNoVersion
	}
	return version, nil
}

// Versions lists stored versions, oldest first.
func (s *Store) Versions() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	slices.Sort(out)
	return out, nil
}

func (s *Store) LoadCurrent(ex *features.Extractor, searcher dense.Searcher) (*Snapshot, error) {
	version, err := s.Current()
	if err != nil {
		return nil, err
	}
	return s.Load(version, ex, searcher)
}

// Load reads a stored version, verifies file checksums and re-derives the
// features, which are a pure function of the postings.
func (s *Store) Load(version string, ex *features.Extractor, searcher dense.Searcher) (*Snapshot, error) {
	dir := filepath.Join(s.root, version)
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	snap := &Snapshot{Manifest: manifest}
	c := &corpus.Corpus{}
	readers := []struct {
		name   string
		decode func(io.Reader) error
	}{
		{corpusFile, func(r io.Reader) error { return json.NewDecoder(r).Decode(c) }},
		{lexicalFile, func(r io.Reader) (err error) { snap.Lexical, err = lexical.Decode(r); return err }},
		{denseFile, func(r io.Reader) (err error) { snap.Dense, err = dense.Decode(r, searcher); return err }},
	}
	for _, rd := range readers {
		if err := readGzip(filepath.Join(dir, rd.name), manifest.Files[rd.name], rd.decode); err != nil {
			return nil, fmt.Errorf("read %s: %w", rd.name, err)
		}
	}

	snap.Corpus = c
	snap.Features = ex.Jobs(c)
	if err := snap.Check(); err != nil {
		return nil, fmt.Errorf("artifact %s is inconsistent: %w", version, err)
	}
	return snap, nil
}

// Prune removes the oldest versions beyond keep. CURRENT is never removed.
func (s *Store) Prune(keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	versions, err := s.Versions()
	if err != nil {
		return nil, err
	}
	current, _ := s.Current()

	var removed []string
	for len(versions) > keep {
		v := versions[0]
		versions = versions[1:]
		if v == current {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.root, v)); err != nil {
			return removed, err
		}
		removed = append(removed, v)
	}
	return removed, nil
}

func writeGzip(path string, encode func(io.Writer) error) (string, error) {
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := sha256.New()
	buf := bufio.NewWriter(io.MultiWriter(f, hash))
	gz := gzip.NewWriter(buf)
	if err := encode(gz); err != nil {
		return "", err
	}
	if err := gz.Close(); err != nil {
		return "", err
	}
	if err := buf.Flush(); err != nil {
		return "", err
	}
	if err := f.Sync(); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

func readGzip(path, wantSum string, decode func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	hash := sha256.New()
	gz, err := gzip.NewReader(io.TeeReader(bufio.NewReader(f), hash))
	if err != nil {
		return err
	}
	defer gz.Close()
	if err := decode(gz); err != nil {
		return err
	}
	// Drain so the checksum covers the whole file.
	if _, err := io.Copy(io.Discard, gz); err != nil {
		return err
	}
	if wantSum != "" {
		if got := hex.EncodeToString(hash.Sum(nil)); got != wantSum {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, wantSum)
		}
	}
	return nil
}
