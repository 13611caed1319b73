package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/killkli/boyo-app-share/internal/service"
)

// MockAppService is a testify-based mock of service.AppService.
type MockAppService struct {
	mock.Mock
}

var _ service.AppService = (*MockAppService)(nil)

func (m *MockAppService) Create(ctx context.Context, in service.CreateInput) (*service.AppResult, error) {
	args := m.Called(ctx, in)
	var res *service.AppResult
	if v := args.Get(0); v != nil {
		res = v.(*service.AppResult)
	}
	return res, args.Error(1)
}

func (m *MockAppService) Reupload(ctx context.Context, id string, in service.ReuploadInput) (*service.AppResult, error) {
	args := m.Called(ctx, id, in)
	var res *service.AppResult
	if v := args.Get(0); v != nil {
		res = v.(*service.AppResult)
	}
	return res, args.Error(1)
}

func (m *MockAppService) UpdateMetadata(ctx context.Context, id string, in service.UpdateMetadataInput) (*service.AppResult, error) {
	args := m.Called(ctx, id, in)
	var res *service.AppResult
	if v := args.Get(0); v != nil {
		res = v.(*service.AppResult)
	}
	return res, args.Error(1)
}

func (m *MockAppService) Get(ctx context.Context, id string) (*service.AppResult, error) {
	args := m.Called(ctx, id)
	var res *service.AppResult
	if v := args.Get(0); v != nil {
		res = v.(*service.AppResult)
	}
	return res, args.Error(1)
}

func (m *MockAppService) List(ctx context.Context, q service.ListQuery) (*service.AppListResult, error) {
	args := m.Called(ctx, q)
	var res *service.AppListResult
	if v := args.Get(0); v != nil {
		res = v.(*service.AppListResult)
	}
	return res, args.Error(1)
}

func (m *MockAppService) GetManifest(ctx context.Context, id string) (map[string]string, error) {
	args := m.Called(ctx, id)
	var res map[string]string
	if v := args.Get(0); v != nil {
		res = v.(map[string]string)
	}
	return res, args.Error(1)
}

func (m *MockAppService) GetManifests(ctx context.Context, ids []string) (map[string]map[string]string, error) {
	args := m.Called(ctx, ids)
	var res map[string]map[string]string
	if v := args.Get(0); v != nil {
		res = v.(map[string]map[string]string)
	}
	return res, args.Error(1)
}

func (m *MockAppService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
