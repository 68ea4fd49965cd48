package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindHTTPStatus(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindAutomation, http.StatusBadGateway},
		{KindConfiguration, http.StatusInternalServerError},
		{KindUpstream, http.StatusInternalServerError},
		{KindProtocol, http.StatusInternalServerError},
		{KindStorage, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.kind.HTTPStatus())
		})
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindUpstream, "token endpoint unreachable", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "upstream")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindStorage, KindOf(New(KindStorage, "uploading object")))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))

	// Classification survives fmt.Errorf wrapping.
	wrapped := fmt.Errorf("pipeline: %w", Newf(KindProtocol, "missing %s", "url"))
	assert.Equal(t, KindProtocol, KindOf(wrapped))
}
