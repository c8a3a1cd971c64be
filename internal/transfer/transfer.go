package transfer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"

	"substance-journal/internal/model"
	"substance-journal/internal/repository"
	"substance-journal/internal/service"
)

// Summary counts what an import or export carried.
type Summary struct {
	Experiences      int `json:"experiences"`
	Ingestions       int `json:"ingestions"`
	Photos           int `json:"photos"`
	CustomUnits      int `json:"customUnits"`
	CustomRecipes    int `json:"customRecipes"`
	CustomSubstances int `json:"customSubstances"`
	Reminders        int `json:"reminders"`
}

func summarize(doc *Document) Summary {
	s := Summary{
		Experiences:      len(doc.Experiences),
		CustomUnits:      len(doc.CustomUnits),
		CustomRecipes:    len(doc.CustomRecipes),
		CustomSubstances: len(doc.CustomSubstances),
		Reminders:        len(doc.IngestionReminders),
	}
	for _, exp := range doc.Experiences {
		s.Ingestions += len(exp.Ingestions)
		for _, note := range exp.TimedNotes {
			s.Photos += len(note.Photos)
		}
	}
	return s
}

// Service exports and imports the journal. Every returned error is an *Error.
type Service struct {
	store    *repository.Store
	photos   *service.PhotoStore
	maxBytes int64
	log      *zap.Logger
	now      func() time.Time
}

// New limits imports to maxBytes; 0 disables the limit.
func New(store *repository.Store, photos *service.PhotoStore, maxBytes int64, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, photos: photos, maxBytes: maxBytes, log: log, now: time.Now}
}

// Export writes the whole journal to w.
func (s *Service) Export(ctx context.Context, w io.Writer) (Summary, error) {
	data, err := s.store.Snapshot(ctx)
	if err != nil {
		return Summary{}, Classify(err)
	}
	doc, err := newDocument(data, s.now(), s.readPhoto)
	if err != nil {
		return Summary{}, Classify(err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return Summary{}, Classify(fmt.Errorf("encode document: %w", err))
	}
	return summarize(doc), nil
}

func (s *Service) readPhoto(name string) ([]byte, error) {
	raw, err := s.photos.Read(name)
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Warn("photo file missing, skipped", zap.String("file", name))
		return nil, nil
	}
	return raw, err
}

// ExportFile writes the journal to path atomically.
func (s *Service) ExportFile(ctx context.Context, path string) (Summary, error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return Summary{}, Classify(fmt.Errorf("create export file: %w", err))
	}
	buf := bufio.NewWriter(f)
	sum, err := s.Export(ctx, buf)
	if err == nil {
		err = buf.Flush()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return Summary{}, Classify(err)
	}
	return sum, nil
}

// Import replaces the whole journal with the document read from r. Photos
// are written first and the previous photo files removed only after the
// database swap committed.
func (s *Service) Import(ctx context.Context, r io.Reader) (Summary, error) {
	doc, err := s.decode(r)
	if err != nil {
		return Summary{}, Classify(err)
	}
	if err := doc.check(); err != nil {
		return Summary{}, Classify(err)
	}

	var written []string
	data, err := doc.dataset(func(raw []byte, ext string) (string, error) {
		name, err := s.photos.Save(raw, ext)
		if err == nil {
			written = append(written, name)
		}
		return name, err
	})
	if err == nil {
		err = s.store.ReplaceAll(ctx, data)
	}
	if err != nil {
		if rmErr := s.photos.Remove(written...); rmErr != nil {
			s.log.Warn("remove imported photos", zap.Error(rmErr))
		}
		return Summary{}, Classify(err)
	}

	if err := s.photos.RemoveExcept(written...); err != nil {
		s.log.Warn("remove replaced photos", zap.Error(err))
	}
	sum := summarize(doc)
	s.log.Info("journal imported",
		zap.Int("experiences", sum.Experiences),
		zap.Int("ingestions", sum.Ingestions),
		zap.Int("photos", sum.Photos))
	return sum, nil
}

// ImportFile imports the document stored at path.
func (s *Service) ImportFile(ctx context.Context, path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, Classify(fmt.Errorf("open import file: %w", err))
	}
	defer f.Close()
	return s.Import(ctx, f)
}

// ImportCustomSubstances merges custom substances by name. r holds either a
// full export document or a bare JSON array of substances.
func (s *Service) ImportCustomSubstances(ctx context.Context, r io.Reader) (created, updated int, err error) {
	raw, err := s.readLimited(r)
	if err != nil {
		return 0, 0, Classify(err)
	}
	var list []model.CustomSubstance
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &list)
	} else {
		var doc Document
		err = json.Unmarshal(raw, &doc)
		list = doc.CustomSubstances
	}
	if err != nil {
		return 0, 0, Classify(fmt.Errorf("decode custom substances: %w", err))
	}
	for _, sub := range list {
		if sub.Name == "" {
			return 0, 0, Classify(fmt.Errorf("%w: custom substance without name", errInvalid))
		}
	}
	created, updated, err = s.store.MergeCustomSubstances(ctx, list)
	if err != nil {
		return 0, 0, Classify(err)
	}
	return created, updated, nil
}

func (s *Service) decode(r io.Reader) (*Document, error) {
	raw, err := s.readLimited(r)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc.Version > FormatVersion {
		return nil, fmt.Errorf("%w: document version %d is newer than %d", errUnsupported, doc.Version, FormatVersion)
	}
	return &doc, nil
}

func (s *Service) readLimited(r io.Reader) ([]byte, error) {
	if s.maxBytes <= 0 {
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read document: %w", err)
		}
		return raw, nil
	}
	raw, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if int64(len(raw)) > s.maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", errTooLarge, s.maxBytes)
	}
	return raw, nil
}
