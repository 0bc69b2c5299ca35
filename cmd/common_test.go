package cmd

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/dataporter/mysql-porter/pkg/core"
	"github.com/dataporter/mysql-porter/pkg/progress"
	"github.com/dataporter/mysql-porter/pkg/scheduler"
)

type mockExecs struct {
	mock.Mock
	logger      *log.Logger
	failPartial bool
}

func newMockExecs() *mockExecs {
	return &mockExecs{}
}

func (m *mockExecs) SetLogger(logger *log.Logger) {
	m.logger = logger
}

func (m *mockExecs) GetLogger() *log.Logger {
	return m.logger
}

func (m *mockExecs) Dump(ctx context.Context, opts core.DumpOptions) (core.Results, error) {
	args := m.Called(opts)
	if m.failPartial {
		return core.Results{
			State:    progress.RunPartial,
			Failures: []scheduler.UnitFailure{{ID: "data:s1.t1:00000"}},
		}, args.Error(0)
	}
	return core.Results{State: progress.RunCompleted}, args.Error(0)
}

func (m *mockExecs) Load(ctx context.Context, opts core.LoadOptions) (core.Results, error) {
	args := m.Called(opts)
	return core.Results{State: progress.RunCompleted}, args.Error(0)
}
