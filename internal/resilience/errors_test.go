package resilience

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", eris.New("boom"), false},
		{"explicit transient", NewTransientError(eris.New("rate limited"), 429), true},
		{"wrapped transient", eris.Wrap(NewTransientError(eris.New("502"), 502), "fetch"), true},
		{"explicit permanent", NewPermanentError(eris.New("missing domain")), false},
		{"permanent wrapping transient stays permanent", NewPermanentError(NewTransientError(eris.New("x"), 500)), false},
		{"connection reset string", eris.New("read tcp: connection reset by peer"), true},
		{"dns string", eris.New("dial tcp: lookup x.com: no such host"), true},
		{"io timeout string", eris.New("context deadline exceeded (Client.Timeout exceeded): i/o timeout"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(NewPermanentError(eris.New("bad input"))))
	assert.True(t, IsPermanent(eris.Wrap(NewPermanentError(eris.New("bad input")), "stage")))
	assert.False(t, IsPermanent(NewTransientError(eris.New("503"), 503)))
	assert.False(t, IsPermanent(nil))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "%d", code)
	}
	for _, code := range []int{200, 201, 301, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "%d", code)
	}
}
