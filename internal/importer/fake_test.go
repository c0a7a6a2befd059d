package importer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/config"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/extract"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/model"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/ocr"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/scorer"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/store"
)

// memStore is an in-memory Store with the uniqueness rules of the real ones.
type memStore struct {
	mu       sync.Mutex
	clients  map[string]model.Client
	insurers map[string]model.Insurer
	branches map[string]model.Branch
	policies map[string]model.Policy
	items    map[string][]model.PolicyItem

	clientCreates int
	policyErr     func(p *model.Policy) error

	// Hooks run outside the lock so they may block on ctx.
	lookupHook func(ctx context.Context) error
	policyHook func(ctx context.Context, p *model.Policy) error
}

func newMemStore() *memStore {
	return &memStore{
		clients:  make(map[string]model.Client),
		insurers: make(map[string]model.Insurer),
		branches: make(map[string]model.Branch),
		policies: make(map[string]model.Policy),
		items:    make(map[string][]model.PolicyItem),
	}
}

func (s *memStore) GetClient(_ context.Context, id string) (*model.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (s *memStore) GetInsurer(_ context.Context, id string) (*model.Insurer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.insurers[id]; ok {
		return &i, nil
	}
	return nil, nil
}

func (s *memStore) GetBranch(_ context.Context, id string) (*model.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.branches[id]; ok {
		return &b, nil
	}
	return nil, nil
}

func (s *memStore) FindClientByIdentifier(_ context.Context, documentID string) (*model.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if c.DocumentID == documentID {
			return &c, nil
		}
	}
	return nil, nil
}

// FindClientsByName returns every client; the engine applies the threshold.
func (s *memStore) FindClientsByName(ctx context.Context, _ string, _ int) ([]model.Client, error) {
	if s.lookupHook != nil {
		if err := s.lookupHook(ctx); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	return out, nil
}

func (s *memStore) FindInsurerByCode(_ context.Context, code string) (*model.Insurer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.insurers {
		if i.Code == code {
			return &i, nil
		}
	}
	return nil, nil
}

func (s *memStore) FindBranchByCode(_ context.Context, code string) (*model.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.branches {
		if b.Code == code {
			return &b, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListInsurers(_ context.Context) ([]model.Insurer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Insurer, 0, len(s.insurers))
	for _, i := range s.insurers {
		out = append(out, i)
	}
	return out, nil
}

func (s *memStore) ListBranches(_ context.Context) ([]model.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Branch, 0, len(s.branches))
	for _, b := range s.branches {
		out = append(out, b)
	}
	return out, nil
}

func (s *memStore) CreateClient(_ context.Context, c *model.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientCreates++
	for _, existing := range s.clients {
		if c.DocumentID != "" && existing.DocumentID == c.DocumentID {
			return eris.Wrap(store.ErrConflict, "create client")
		}
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	s.clients[c.ID] = *c
	return nil
}

func (s *memStore) CreateInsurer(_ context.Context, i *model.Insurer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.insurers {
		if existing.Code == i.Code {
			return eris.Wrap(store.ErrConflict, "create insurer")
		}
	}
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	s.insurers[i.ID] = *i
	return nil
}

func (s *memStore) CreateBranch(_ context.Context, b *model.Branch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.branches {
		if existing.Code == b.Code {
			return eris.Wrap(store.ErrConflict, "create branch")
		}
	}
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	s.branches[b.ID] = *b
	return nil
}

func (s *memStore) CreatePolicy(ctx context.Context, p *model.Policy, items []model.PolicyItem) error {
	if s.policyHook != nil {
		if err := s.policyHook(ctx, p); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.policyErr != nil {
		if err := s.policyErr(p); err != nil {
			return err
		}
	}
	for _, existing := range s.policies {
		if p.Number != "" && existing.InsurerID == p.InsurerID && existing.Number == p.Number {
			return eris.Wrap(store.ErrConflict, "create policy")
		}
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	s.policies[p.ID] = *p
	s.items[p.ID] = items
	return nil
}

func (s *memStore) counts() (clients, insurers, branches, policies int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients), len(s.insurers), len(s.branches), len(s.policies)
}

func (s *memStore) addInsurer(id, code, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insurers[id] = model.Insurer{ID: id, Code: code, Name: name}
}

func (s *memStore) addClient(id, name, documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[id] = model.Client{ID: id, Name: name, DocumentID: documentID}
}

// scriptedOCR returns the document bytes as text unless fn intercepts it.
type scriptedOCR struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, doc []byte) (ocr.Result, error)
}

func (f *scriptedOCR) ExtractText(ctx context.Context, doc []byte) (ocr.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, doc)
	}
	return ocr.PlainText{}.ExtractText(ctx, doc)
}

func testConfig() *config.Config {
	return &config.Config{
		OCR: config.OCRConfig{
			TimeoutSecs:  5,
			MaxAttempts:  1,
			FailureLimit: 5,
		},
		Scoring:   scorer.DefaultConfig(),
		Reconcile: config.ReconcileConfig{NameThreshold: 0.85, MaxCandidates: 10},
		Import: config.ImportConfig{
			MaxConcurrentDocuments: 4,
			MaxConcurrentCommits:   4,
			CommitTimeoutSecs:      5,
		},
	}
}

func newTestOrchestrator(t *testing.T, st Store, recognizer ocr.Extractor, cfg *config.Config) *Orchestrator {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	if recognizer == nil {
		recognizer = ocr.PlainText{}
	}
	return New(cfg, st, recognizer, extract.New(extract.DefaultConfig(), nil), nil)
}

// policyText renders a recognized auto policy. An empty cpf omits the line.
func policyText(name, cpf, number string) string {
	var sb strings.Builder
	sb.WriteString("APÓLICE DE SEGURO AUTO\n")
	sb.WriteString("Seguradora: Porto Seguro Cia de Seguros Gerais\n")
	fmt.Fprintf(&sb, "Número da Apólice: %s\n", number)
	fmt.Fprintf(&sb, "Segurado: %s\n", name)
	if cpf != "" {
		fmt.Fprintf(&sb, "CPF: %s\n", cpf)
	}
	sb.WriteString("Ramo: Automóvel\n")
	sb.WriteString("Início de Vigência: 01/02/2024\n")
	sb.WriteString("Fim de Vigência: 01/02/2025\n")
	sb.WriteString("Veículo: Honda Civic EXL 2.0 2022\n")
	sb.WriteString("Prêmio Líquido: R$ 1.234,56\n")
	sb.WriteString("Prêmio Total: R$ 1.325,70\n")
	return sb.String()
}

func doc(name, text string) Document {
	return Document{Name: name, Content: []byte(text)}
}

// startAndWait starts a batch and waits for processing to finish.
func startAndWait(t *testing.T, o *Orchestrator, docs ...Document) (string, BatchStatus) {
	t.Helper()
	ctx := context.Background()
	id, err := o.StartBatch(ctx, docs)
	require.NoError(t, err)
	require.NoError(t, o.Wait(ctx, id))
	st, err := o.GetBatchStatus(id)
	require.NoError(t, err)
	return id, st
}
