package main

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/extract"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/importer"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/ocr"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/store"
)

// importEnv holds the store and orchestrator needed by the import and serve
// commands.
type importEnv struct {
	Store    store.Store
	Importer *importer.Orchestrator
	Metrics  *importer.Metrics
}

// Close releases resources held by the environment.
func (e *importEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initImporter validates the config for mode, opens and migrates the store,
// and builds the orchestrator. Callers should defer env.Close().
func initImporter(ctx context.Context, mode string, reg prometheus.Registerer) (*importEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	dict, err := loadDictionary(cfg.Extract.DictionaryPath)
	if err != nil {
		return nil, err
	}

	recognizer, err := ocr.NewExtractor(cfg.OCR)
	if err != nil {
		return nil, eris.Wrap(err, "init ocr")
	}

	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	m := importer.NewMetrics(reg)
	orch := importer.New(cfg, st, recognizer, extract.New(cfg.Extract.Config, dict), m)

	zap.L().Info("importer ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("ocr", cfg.OCR.Provider),
		zap.Int("insurers", len(dict.Insurers)),
		zap.Int("branches", len(dict.Branches)),
	)
	return &importEnv{Store: st, Importer: orch, Metrics: m}, nil
}

// loadDictionary reads a keyword dictionary file, or returns the built-in
// one when path is empty.
func loadDictionary(path string) (*extract.Dictionary, error) {
	if path == "" {
		return extract.DefaultDictionary(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read dictionary")
	}
	dict, err := extract.ParseDictionary(data)
	if err != nil {
		return nil, eris.Wrapf(err, "parse dictionary %s", path)
	}
	return dict, nil
}
