package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationStatus_Next(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		from    MigrationStatus
		to      MigrationStatus
		wantErr bool
	}{
		{"idle to preparing", Idle(), Preparing("connecting"), false},
		{"idle to running", Idle(), Running("copying", 0), true},
		{"idle to completed", Idle(), Completed(), true},
		{"preparing to running", Preparing("connecting"), Running("copying", 0), false},
		{"preparing to failed", Preparing("connecting"), Failed("offline"), false},
		{"preparing to completed", Preparing("connecting"), Completed(), true},
		{"running forward", Running("copying", 0.25), Running("copying", 0.5), false},
		{"running same progress", Running("copying", 0.5), Running("copying", 0.5), false},
		{"running backwards", Running("copying", 0.5), Running("copying", 0.25), true},
		{"running above one", Running("copying", 0.5), Running("copying", 1.5), true},
		{"running to completed at one", Running("done", 1), Completed(), false},
		{"running to completed early", Running("copying", 0.5), Completed(), true},
		{"running to failed", Running("copying", 0.5), Failed("write error"), false},
		{"failed to preparing", Failed("offline"), Preparing("retrying"), false},
		{"failed to running", Failed("offline"), Running("copying", 0), true},
		{"completed to running", Completed(), Running("copying", 0), true},
		{"completed to preparing", Completed(), Preparing("again"), true},
		{"completed to failed", Completed(), Failed("late"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.from.Next(tt.to)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrIllegalTransition)
				assert.Equal(t, tt.from, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, got)
		})
	}
}

func TestMigrationStatus_Terminal(t *testing.T) {
	t.Parallel()

	assert.True(t, Completed().Terminal())
	assert.False(t, Failed("x").Terminal())
	assert.False(t, Idle().Terminal())
	assert.Equal(t, float64(1), Completed().Progress)
}
