package cmd

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dataporter/mysql-porter/pkg/core"
	"github.com/dataporter/mysql-porter/pkg/database"
	"github.com/dataporter/mysql-porter/pkg/scheduler"
)

func TestLoadCmd(t *testing.T) {
	tests := []struct {
		name         string
		args         []string // "load" will be prepended automatically
		wantErr      bool
		expectedOpts *core.LoadOptions
	}{
		{"missing dir", []string{"--server", "abc"}, true, nil},
		{"defaults", []string{"--server", "abc", "--dir", "/backups/d1"}, false, &core.LoadOptions{
			DBConn:  database.Connection{Host: "abc", Port: defaultPort},
			Dir:     "/backups/d1",
			Workers: scheduler.DefaultWorkers,
			Retries: scheduler.DefaultRetries,
		}},
		{"all flags", []string{
			"--server", "abc", "--port", "3307", "--user", "u", "--pass", "p",
			"--dir", "/backups/d1", "--workers", "2", "--retries", "1", "--fail-fast",
		}, false, &core.LoadOptions{
			DBConn:   database.Connection{Host: "abc", Port: 3307, User: "u", Pass: "p"},
			Dir:      "/backups/d1",
			Workers:  2,
			Retries:  1,
			FailFast: true,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMockExecs()
			m.On("Load", mock.Anything).Return(nil)

			err := executeCmd(m, append([]string{"load"}, tt.args...))
			if tt.wantErr {
				require.Error(t, err)
				m.AssertNotCalled(t, "Load", mock.Anything)
				return
			}
			require.NoError(t, err)
			m.AssertExpectations(t)

			got := m.Calls[0].Arguments.Get(0).(core.LoadOptions)
			require.NotEqual(t, uuid.Nil, got.Run)
			got.Run = uuid.Nil
			if diff := cmp.Diff(*tt.expectedOpts, got); diff != "" {
				t.Errorf("load options mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
