package requesttime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"anonid/pkg/requestcontext"
)

func TestWithClock(t *testing.T) {
	pinned := time.Date(2026, 6, 30, 23, 59, 59, 0, time.UTC)
	var seen []time.Time
	h := WithClock(func() time.Time { return pinned })(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = append(seen, requestcontext.Now(r.Context()), requestcontext.Now(r.Context()))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []time.Time{pinned, pinned}, seen)
}
