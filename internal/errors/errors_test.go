package errors_test

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/michaelscutari/romlint/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndWrap(t *testing.T) {
	tests := []struct {
		name    string
		err     *errors.RomlintError
		wantStr string
		code    errors.ErrorCode
	}{
		{
			name:    "plain",
			err:     errors.New(errors.ErrEngine, "interpreter failed to start"),
			wantStr: "interpreter failed to start",
			code:    errors.ErrEngine,
		},
		{
			name:    "formatted",
			err:     errors.Newf(errors.ErrCatalogName, "no system for %s", "x.dat"),
			wantStr: "no system for x.dat",
			code:    errors.ErrCatalogName,
		},
		{
			name:    "wrapped",
			err:     errors.Wrap(fs.ErrNotExist, errors.ErrConfigLoad, "reading config"),
			wantStr: "reading config: file does not exist",
			code:    errors.ErrConfigLoad,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStr, tt.err.Error())
			assert.Equal(t, tt.code, errors.GetErrorCode(tt.err))
		})
	}
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, errors.Wrap(nil, errors.ErrIO, "nothing"))
	assert.Nil(t, errors.IO(nil, "/tmp"))
}

func TestIOCarriesPath(t *testing.T) {
	err := errors.IO(fs.ErrPermission, "/roms/snes")
	require.NotNil(t, err)

	assert.True(t, stderrors.Is(err, fs.ErrPermission))
	assert.Equal(t, "/roms/snes", errors.GetErrorDetails(err)["path"])
	assert.Contains(t, err.Error(), "/roms/snes")
}

func TestIsErrorCodeThroughChain(t *testing.T) {
	inner := errors.New(errors.ErrBrokenPipe, "receiver gone")
	outer := errors.Wrap(inner, errors.ErrInternal, "sending report")
	wrapped := fmt.Errorf("scan: %w", outer)

	assert.True(t, errors.IsErrorCode(wrapped, errors.ErrInternal))
	assert.True(t, errors.IsErrorCode(wrapped, errors.ErrBrokenPipe))
	assert.False(t, errors.IsErrorCode(wrapped, errors.ErrIO))
	assert.False(t, errors.IsErrorCode(nil, errors.ErrIO))
}

func TestIsComparesCodes(t *testing.T) {
	err := errors.Wrap(fs.ErrClosed, errors.ErrBrokenPipe, "send")
	assert.True(t, stderrors.Is(err, errors.New(errors.ErrBrokenPipe, "")))
	assert.False(t, stderrors.Is(err, errors.New(errors.ErrIO, "")))
	assert.Equal(t, errors.ErrUnknown, errors.GetErrorCode(fs.ErrClosed))
}
