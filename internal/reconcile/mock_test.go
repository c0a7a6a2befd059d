package reconcile

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/model"
)

type mockLookup struct {
	mock.Mock
}

func (m *mockLookup) GetClient(ctx context.Context, id string) (*model.Client, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Client), args.Error(1)
}

func (m *mockLookup) GetInsurer(ctx context.Context, id string) (*model.Insurer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Insurer), args.Error(1)
}

func (m *mockLookup) GetBranch(ctx context.Context, id string) (*model.Branch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Branch), args.Error(1)
}

func (m *mockLookup) FindClientByIdentifier(ctx context.Context, documentID string) (*model.Client, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Client), args.Error(1)
}

func (m *mockLookup) FindClientsByName(ctx context.Context, name string, limit int) ([]model.Client, error) {
	args := m.Called(ctx, name, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Client), args.Error(1)
}

func (m *mockLookup) FindInsurerByCode(ctx context.Context, code string) (*model.Insurer, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Insurer), args.Error(1)
}

func (m *mockLookup) FindBranchByCode(ctx context.Context, code string) (*model.Branch, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Branch), args.Error(1)
}

func (m *mockLookup) ListInsurers(ctx context.Context) ([]model.Insurer, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Insurer), args.Error(1)
}

func (m *mockLookup) ListBranches(ctx context.Context) ([]model.Branch, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Branch), args.Error(1)
}
