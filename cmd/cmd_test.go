//go:build !integration

package main

import (
	"path/filepath"
	"testing"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/config"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/scorer"
)

// testConfig returns a config backed by a temporary SQLite file and the
// plain-text OCR provider.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "policies.db"),
		},
		OCR: config.OCRConfig{
			Provider:     "text",
			TimeoutSecs:  5,
			MaxAttempts:  1,
			FailureLimit: 5,
		},
		Scoring:   scorer.DefaultConfig(),
		Reconcile: config.ReconcileConfig{NameThreshold: 0.85, MaxCandidates: 10},
		Import: config.ImportConfig{
			MaxConcurrentDocuments: 2,
			MaxConcurrentCommits:   1,
			CommitTimeoutSecs:      10,
		},
		Server: config.ServerConfig{Port: 8080},
	}
}

const samplePolicy = `APÓLICE DE SEGURO AUTO
Seguradora: Porto Seguro Cia de Seguros Gerais
Número da Apólice: 7700.10.000001
Segurado: João da Silva
CPF: 123.456.789-00
Ramo: Automóvel
Início de Vigência: 01/02/2024
Fim de Vigência: 01/02/2025
Prêmio Total: R$ 1.325,70
`
