package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"modelkeep/internal/catalog"
	"modelkeep/internal/config"
	"modelkeep/internal/contenthash"
	"modelkeep/internal/fileutil"
	"modelkeep/internal/logging"
	"modelkeep/internal/services/civitai"
)

// Scanner discovers model files under the library roots and registers them
// with the catalog store.
type Scanner struct {
	cfg    *config.Config
	store  *catalog.Store
	logger *slog.Logger
	exts   map[string]struct{}
}

// New constructs a scanner over the configured roots.
func New(cfg *config.Config, store *catalog.Store, logger *slog.Logger) *Scanner {
	exts := make(map[string]struct{}, len(cfg.Scanner.Extensions))
	for _, ext := range cfg.Scanner.Extensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}
	return &Scanner{
		cfg:    cfg,
		store:  store,
		logger: logging.WithComponent(logger, "scanner"),
		exts:   exts,
	}
}

// observation is one model file ready to be recorded: the upsert parameters
// plus the metadata-derived decorations applied after the upsert.
type observation struct {
	params    catalog.ObserveParams
	modelName string
	tags      []string
}

// ScanAll walks every configured root in label order and observes each model
// file found. Per-root failures are reported but do not stop the remaining
// roots. Returns the number of files observed.
func (s *Scanner) ScanAll(ctx context.Context) (int, error) {
	var errs []error
	observed := 0
	for _, label := range s.cfg.SortedLabels() {
		count, err := s.ScanRoot(ctx, label)
		observed += count
		if err != nil {
			s.logger.Error("root scan failed", logging.String("label", label), logging.Error(err))
			errs = append(errs, fmt.Errorf("scan root %s: %w", label, err))
		}
	}
	return observed, errors.Join(errs...)
}

// ScanRoot walks one labeled root. Hashing runs on a bounded worker pool;
// catalog writes happen sequentially afterwards so the store sees one writer.
func (s *Scanner) ScanRoot(ctx context.Context, label string) (int, error) {
	root, ok := s.cfg.RootFor(label)
	if !ok {
		return 0, fmt.Errorf("no root configured for label %q", label)
	}

	files, err := s.collectModelFiles(root)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, nil
	}

	observations := make([]*observation, len(files))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.Scanner.HashWorkers)
	for i, file := range files {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			obs, err := s.buildObservation(file, label, root)
			if err != nil {
				// A single unreadable file should not abort the scan.
				s.logger.Warn("skipping file", logging.String("path", file), logging.Error(err))
				return nil
			}
			observations[i] = obs
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return 0, err
	}

	observed := 0
	for _, obs := range observations {
		if obs == nil {
			continue
		}
		if _, err := s.apply(ctx, obs); err != nil {
			return observed, err
		}
		observed++
	}
	return observed, nil
}

// IngestFile registers a single absolute path, resolving which root it lives
// under. Used after a completed download.
func (s *Scanner) IngestFile(ctx context.Context, absPath string) (int64, error) {
	for _, label := range s.cfg.SortedLabels() {
		root, _ := s.cfg.RootFor(label)
		if !fileutil.Inside(root, absPath) {
			continue
		}
		obs, err := s.buildObservation(absPath, label, root)
		if err != nil {
			return 0, err
		}
		return s.apply(ctx, obs)
	}
	return 0, fmt.Errorf("path %s is outside every configured root", absPath)
}

func (s *Scanner) collectModelFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			// Hidden directories hold trash and tooling state, never models.
			if path != root && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(entry.Name()), "."))
		if _, ok := s.exts[ext]; ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

func (s *Scanner) buildObservation(absPath, label, root string) (*observation, error) {
	rel, err := fileutil.RelativePath(root, absPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}

	version := readVersionSidecar(absPath)
	hash, metadata, err := resolveHash(absPath, version)
	if err != nil {
		return nil, err
	}

	model := readModelSidecar(absPath)

	obs := &observation{
		params: catalog.ObserveParams{
			Path:        rel,
			BaseLabel:   label,
			Name:        filepath.Base(absPath),
			ContentHash: hash,
			ModifiedAt:  info.ModTime().UnixMilli(),
		},
		modelName: model.Name,
	}

	appendTag := func(tag string) {
		if strings.TrimSpace(tag) != "" {
			obs.tags = append(obs.tags, tag)
		}
	}
	appendTag(version.BaseModel)
	appendTag(model.Type)
	for _, tag := range model.Tags {
		appendTag(tag)
	}
	appendTag(metadata.FP)
	appendTag(metadata.Format)

	return obs, nil
}

func (s *Scanner) apply(ctx context.Context, obs *observation) (int64, error) {
	id, err := s.store.Observe(ctx, obs.params)
	if err != nil {
		return 0, err
	}

	if len(obs.tags) > 0 {
		if err := s.store.ReplaceTags(ctx, id, obs.tags); err != nil {
			return 0, err
		}
	}
	if obs.modelName != "" {
		if err := s.store.SetModelName(ctx, id, obs.modelName); err != nil {
			return 0, err
		}
	}
	s.logger.Debug("observed entry",
		logging.Int64("id", id),
		logging.String("label", obs.params.BaseLabel),
		logging.String("path", obs.params.Path))
	return id, nil
}

// readVersionSidecar parses <stem>.json. A missing or malformed sidecar is
// normal for files never seen by the metadata provider.
func readVersionSidecar(modelPath string) civitai.Version {
	var version civitai.Version
	data, err := os.ReadFile(fileutil.SwapExt(modelPath, "json"))
	if err != nil {
		return version
	}
	_ = json.Unmarshal(data, &version)
	return version
}

func readModelSidecar(modelPath string) civitai.Model {
	var model civitai.Model
	data, err := os.ReadFile(fileutil.SwapExt(modelPath, "model.json"))
	if err != nil {
		return model
	}
	_ = json.Unmarshal(data, &model)
	return model
}

// resolveHash picks the entry's content hash. A single-file sidecar is
// trusted as-is; with zero or several file blocks the file is hashed locally,
// and the matching block (if any) supplies the precision/format metadata.
func resolveHash(modelPath string, version civitai.Version) (string, civitai.FileMetadata, error) {
	if len(version.Files) == 1 {
		if hash := strings.ToLower(strings.TrimSpace(version.Files[0].Hashes.BLAKE3)); hash != "" {
			return hash, version.Files[0].Metadata, nil
		}
	}

	digest, err := contenthash.SumFile(modelPath)
	if err != nil {
		return "", civitai.FileMetadata{}, err
	}
	for _, file := range version.Files {
		if strings.ToLower(file.Hashes.BLAKE3) == digest {
			return digest, file.Metadata, nil
		}
	}
	if len(version.Files) == 1 {
		return digest, version.Files[0].Metadata, nil
	}
	return digest, civitai.FileMetadata{}, nil
}
