package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsBothChains(t *testing.T) {
	cause := errors.New("read udp: i/o timeout")
	err := Wrap(ErrPunchTimeout, cause)

	assert.True(t, errors.Is(err, ErrPunchTimeout))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "hole punch timed out")
	assert.Contains(t, err.Error(), "i/o timeout")
}
