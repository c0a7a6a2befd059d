package reconcile

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/config"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/model"
)

func newEngine() *Engine {
	return NewEngine(config.ReconcileConfig{NameThreshold: DefaultThreshold})
}

func snapshotOf(clients ...model.Client) Snapshot {
	s := NewSnapshot()
	for _, c := range clients {
		s.AddClient(c)
	}
	return s
}

func TestReconcile_IdentifierMatch(t *testing.T) {
	snap := snapshotOf(model.Client{ID: "c1", Name: "Outro Nome", DocumentID: "12345678900"})
	rec := model.ExtractedPolicyRecord{Client: model.ClientData{Name: "João", DocumentID: "123.456.789-00"}}

	res, err := newEngine().Reconcile(rec, snap, Pins{})
	require.NoError(t, err)
	assert.Equal(t, ResolutionMatched, res.Client.Resolution)
	assert.Equal(t, "c1", res.Client.ID)
	assert.Equal(t, BasisIdentifier, res.Client.Basis)
	assert.Equal(t, "id:12345678900", res.ClientKey)
}

func TestReconcile_NameMatch(t *testing.T) {
	snap := snapshotOf(model.Client{ID: "c2", Name: "JOÃO DA SILVA LTDA"})
	rec := model.ExtractedPolicyRecord{Client: model.ClientData{Name: "Joao da Silva"}}

	res, err := newEngine().Reconcile(rec, snap, Pins{})
	require.NoError(t, err)
	assert.Equal(t, ResolutionMatched, res.Client.Resolution)
	assert.Equal(t, "c2", res.Client.ID)
	assert.Equal(t, BasisName, res.Client.Basis)
	assert.InDelta(t, 1.0, res.Client.Similarity, 0.0001)
}

func TestReconcile_Ambiguous(t *testing.T) {
	snap := snapshotOf(
		model.Client{ID: "c3", Name: "Maria Souza"},
		model.Client{ID: "c4", Name: "MARIA SOUZA ME"},
	)
	rec := model.ExtractedPolicyRecord{Client: model.ClientData{Name: "Maria Souza"}}

	res, err := newEngine().Reconcile(rec, snap, Pins{})
	require.Error(t, err)

	var amb *AmbiguousMatchError
	require.True(t, errors.As(err, &amb))
	assert.Len(t, amb.Candidates, 2)
	assert.Equal(t, ResolutionAmbiguous, res.Client.Resolution)
	assert.Empty(t, res.Client.ID)
	assert.Contains(t, err.Error(), "c3")
	assert.Contains(t, err.Error(), "c4")
}

func TestReconcile_PinResolvesAmbiguity(t *testing.T) {
	snap := snapshotOf(
		model.Client{ID: "c3", Name: "Maria Souza"},
		model.Client{ID: "c4", Name: "MARIA SOUZA ME"},
	)
	rec := model.ExtractedPolicyRecord{Client: model.ClientData{Name: "Maria Souza"}}

	res, err := newEngine().Reconcile(rec, snap, Pins{ClientID: "c4"})
	require.NoError(t, err)
	assert.Equal(t, "c4", res.Client.ID)
	assert.Equal(t, BasisPin, res.Client.Basis)
}

func TestReconcile_UnknownPinIgnored(t *testing.T) {
	snap := snapshotOf(model.Client{ID: "c1", DocumentID: "12345678900"})
	rec := model.ExtractedPolicyRecord{Client: model.ClientData{DocumentID: "12345678900"}}

	res, err := newEngine().Reconcile(rec, snap, Pins{ClientID: "ghost", InsurerID: "ghost-i"})
	require.NoError(t, err)
	assert.Equal(t, "c1", res.Client.ID)
	assert.Equal(t, BasisIdentifier, res.Client.Basis)
	assert.Equal(t, []string{"client:ghost", "insurer:ghost-i"}, res.IgnoredPins)
}

func TestReconcile_ConflictingIdentifierBlocksNameMatch(t *testing.T) {
	snap := snapshotOf(model.Client{ID: "c5", Name: "Pedro Alves", DocumentID: "11111111111"})
	rec := model.ExtractedPolicyRecord{Client: model.ClientData{Name: "Pedro Alves", DocumentID: "22222222222"}}

	res, err := newEngine().Reconcile(rec, snap, Pins{})
	require.NoError(t, err)
	assert.Equal(t, ResolutionCreate, res.Client.Resolution)
	assert.Empty(t, res.Client.ID)
}

func TestReconcile_BelowThresholdCreates(t *testing.T) {
	snap := snapshotOf(model.Client{ID: "c6", Name: "Ana Lima"})
	rec := model.ExtractedPolicyRecord{Client: model.ClientData{Name: "Bruno Costa"}}

	res, err := newEngine().Reconcile(rec, snap, Pins{})
	require.NoError(t, err)
	assert.Equal(t, ResolutionCreate, res.Client.Resolution)
	assert.Equal(t, "name:BRUNO COSTA", res.ClientKey)
}

func TestReconcile_NothingToResolve(t *testing.T) {
	res, err := newEngine().Reconcile(model.ExtractedPolicyRecord{}, NewSnapshot(), Pins{})
	require.NoError(t, err)
	assert.Equal(t, ResolutionMissing, res.Client.Resolution)
	assert.Equal(t, ResolutionMissing, res.Insurer.Resolution)
	assert.Equal(t, ResolutionMissing, res.Branch.Resolution)
}

func TestReconcile_InsurerAndBranchByCode(t *testing.T) {
	snap := NewSnapshot()
	snap.AddInsurer(model.Insurer{ID: "i1", Code: "porto", Name: "Porto Seguro"})
	snap.AddBranch(model.Branch{ID: "b1", Code: "auto", Name: "Automóvel"})

	rec := model.ExtractedPolicyRecord{Policy: model.PolicyData{
		InsurerName: "Porto Seguro", InsurerCode: "porto",
		Branch: "Automóvel", BranchCode: "auto",
	}}
	res, err := newEngine().Reconcile(rec, snap, Pins{})
	require.NoError(t, err)
	assert.Equal(t, "i1", res.Insurer.ID)
	assert.Equal(t, BasisCode, res.Insurer.Basis)
	assert.Equal(t, "b1", res.Branch.ID)

	rec.Policy.InsurerCode = ""
	rec.Policy.InsurerName = "Nova Seguradora"
	res, err = newEngine().Reconcile(rec, snap, Pins{})
	require.NoError(t, err)
	assert.Equal(t, ResolutionCreate, res.Insurer.Resolution)
	assert.Equal(t, "nova_seguradora", res.InsurerCode)
}

func TestReconcile_InsurerByName(t *testing.T) {
	snap := NewSnapshot()
	snap.AddInsurer(model.Insurer{ID: "i1", Code: "alfa", Name: "Seguradora Alfa"})
	snap.AddInsurer(model.Insurer{ID: "i2", Code: "porto", Name: "Porto Seguro"})

	rec := model.ExtractedPolicyRecord{Policy: model.PolicyData{InsurerName: "Seguradora Alfa S.A."}}
	res, err := newEngine().Reconcile(rec, snap, Pins{})
	require.NoError(t, err)
	assert.Equal(t, ResolutionMatched, res.Insurer.Resolution)
	assert.Equal(t, "i1", res.Insurer.ID)
	assert.Equal(t, BasisName, res.Insurer.Basis)
	assert.Equal(t, "seguradora_alfa", res.InsurerCode)
}

func TestReconcile_BranchByName(t *testing.T) {
	snap := NewSnapshot()
	snap.AddBranch(model.Branch{ID: "b1", Code: "auto", Name: "Automóvel"})
	snap.AddBranch(model.Branch{ID: "b2", Code: "vida", Name: "Vida"})

	rec := model.ExtractedPolicyRecord{Policy: model.PolicyData{Branch: "Automovel"}}
	res, err := newEngine().Reconcile(rec, snap, Pins{})
	require.NoError(t, err)
	assert.Equal(t, ResolutionMatched, res.Branch.Resolution)
	assert.Equal(t, "b1", res.Branch.ID)
	assert.Equal(t, BasisName, res.Branch.Basis)
}

func TestReconcile_AmbiguousInsurerName(t *testing.T) {
	snap := NewSnapshot()
	snap.AddInsurer(model.Insurer{ID: "i1", Code: "alfa", Name: "Seguradora Alfa"})
	snap.AddInsurer(model.Insurer{ID: "i2", Code: "alfa_sp", Name: "Seguradora Alfa Ltda"})

	rec := model.ExtractedPolicyRecord{
		Client: model.ClientData{DocumentID: "12345678900"},
		Policy: model.PolicyData{InsurerName: "Seguradora Alfa"},
	}
	res, err := newEngine().Reconcile(rec, snap, Pins{})

	var amb *AmbiguousMatchError
	require.True(t, errors.As(err, &amb))
	assert.Equal(t, "insurer", amb.Entity)
	assert.Len(t, amb.Candidates, 2)
	assert.Equal(t, ResolutionAmbiguous, res.Insurer.Resolution)
	assert.Empty(t, res.Insurer.ID)

	res, err = newEngine().Reconcile(rec, snap, Pins{InsurerID: "i2"})
	require.NoError(t, err)
	assert.Equal(t, "i2", res.Insurer.ID)
}

func TestReconcile_UnrelatedInsurerNameCreates(t *testing.T) {
	snap := NewSnapshot()
	snap.AddInsurer(model.Insurer{ID: "i1", Code: "alfa", Name: "Seguradora Alfa"})

	rec := model.ExtractedPolicyRecord{Policy: model.PolicyData{InsurerName: "Beta Seguros"}}
	res, err := newEngine().Reconcile(rec, snap, Pins{})
	require.NoError(t, err)
	assert.Equal(t, ResolutionCreate, res.Insurer.Resolution)
}

func TestReconcile_NeverInventsIDs(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	names := []string{"Ana Lima", "Ana Lima ME", "Bruno Costa", "Carla Dias", "Carlos Dias", "Daniel Reis", "Acme Ltda"}
	digits := func() string {
		if rng.IntN(2) == 0 {
			return ""
		}
		return fmt.Sprintf("%011d", rng.IntN(5))
	}

	e := newEngine()
	for i := 0; i < 500; i++ {
		snap := NewSnapshot()
		for j := 0; j < rng.IntN(6); j++ {
			snap.AddClient(model.Client{ID: fmt.Sprintf("c%d", rng.IntN(20)), Name: names[rng.IntN(len(names))], DocumentID: digits()})
		}
		rec := model.ExtractedPolicyRecord{Client: model.ClientData{Name: names[rng.IntN(len(names))], DocumentID: digits()}}
		pins := Pins{}
		if rng.IntN(3) == 0 {
			pins.ClientID = fmt.Sprintf("c%d", rng.IntN(20))
		}

		res, err := e.Reconcile(rec, snap, pins)
		if res.Client.Resolution == ResolutionMatched {
			_, ok := snap.Clients[res.Client.ID]
			require.True(t, ok, "matched id %q not in snapshot", res.Client.ID)
		} else {
			assert.Empty(t, res.Client.ID)
		}
		if err != nil {
			assert.Equal(t, ResolutionAmbiguous, res.Client.Resolution)
			for _, c := range res.Client.Candidates {
				_, ok := snap.Clients[c.ID]
				require.True(t, ok)
			}
		}
	}
}

func TestReconcile_Deterministic(t *testing.T) {
	snap := snapshotOf(
		model.Client{ID: "a", Name: "Carla Dias"},
		model.Client{ID: "b", Name: "Carla Dias"},
		model.Client{ID: "c", Name: "Carla Diaz"},
	)
	rec := model.ExtractedPolicyRecord{Client: model.ClientData{Name: "Carla Dias"}}

	first, _ := newEngine().Reconcile(rec, snap, Pins{})
	for range 20 {
		got, _ := newEngine().Reconcile(rec, snap, Pins{})
		assert.Equal(t, first, got)
	}
}

func TestNewEngine_InvalidThresholdFallsBack(t *testing.T) {
	assert.InDelta(t, DefaultThreshold, NewEngine(config.ReconcileConfig{}).threshold, 0.0001)
	assert.InDelta(t, 0.9, NewEngine(config.ReconcileConfig{NameThreshold: 0.9}).threshold, 0.0001)
}
