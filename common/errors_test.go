package common

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	err := Wrapf(ErrIO, fs.ErrPermission, "create %s", "out.exe")

	assert.True(t, errors.Is(err, ErrIO))
	assert.True(t, errors.Is(err, fs.ErrPermission))
	assert.False(t, errors.Is(err, ErrNotAPEFile))
	assert.Equal(t, "create out.exe: i/o error: permission denied", err.Error())

	var tagged *Error
	assert.True(t, errors.As(err, &tagged))
	assert.Equal(t, ErrIO, tagged.Kind)
}

func TestErrorWithoutCause(t *testing.T) {
	err := Wrap(ErrMissingOptionalHeader, nil, "resolve")
	assert.True(t, errors.Is(err, ErrMissingOptionalHeader))
	assert.Equal(t, "resolve: missing optional header", err.Error())
}
