package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHiscoresCSV() string {
	var b strings.Builder
	for i := range skillOrder {
		// rank,level,xp per line, values derived from the index so the
		// mapping order is verifiable.
		fmt.Fprintf(&b, "%d,%d,%d\n", 1000+i, i+1, i*500)
	}
	// Activity lines after the skills must be ignored.
	b.WriteString("5000,12\n")
	return b.String()
}

func TestParseHiscoresCSV(t *testing.T) {
	res, err := parseHiscoresCSV("IronAlice", sampleHiscoresCSV())
	require.NoError(t, err)

	assert.Equal(t, "IronAlice", res.Meta["username"])
	require.Len(t, res.Skills, len(skillOrder))

	overall := res.Skills["overall"]
	assert.EqualValues(t, 1000, overall.Rank)
	assert.EqualValues(t, 1, overall.Level)

	construction := res.Skills["construction"]
	assert.EqualValues(t, 1023, construction.Rank)
	assert.EqualValues(t, 24, construction.Level)
	assert.EqualValues(t, 23*500, construction.XP)
}

func TestParseHiscoresCSVShort(t *testing.T) {
	_, err := parseHiscoresCSV("x", "1,2,3\n4,5,6\n")
	assert.Error(t, err)
}

func TestHiscoresHandler(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "IronAlice", r.URL.Query().Get("player"))
		_, _ = w.Write([]byte(sampleHiscoresCSV()))
	}))
	defer upstream.Close()

	_, h := newTestServer(t, func(c *Config) { c.HiscoresURL = upstream.URL })

	w := doJSON(t, h, "GET", "/api/hiscores?username=IronAlice", nil)
	require.Equal(t, 200, w.Code, w.Body.String())

	res := decode[hiscoresResult](t, w)
	assert.Equal(t, "IronAlice", res.Meta["username"])
	assert.EqualValues(t, 24, res.Skills["construction"].Level)
}

func TestHiscoresHandlerPlayerMissing(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	_, h := newTestServer(t, func(c *Config) { c.HiscoresURL = upstream.URL })

	w := doJSON(t, h, "GET", "/api/hiscores?player=ghost", nil)
	assert.Equal(t, 404, w.Code)
}

func TestHiscoresHandlerRequiresPlayer(t *testing.T) {
	_, h := newTestServer(t, nil)
	w := doJSON(t, h, "GET", "/api/hiscores", nil)
	assert.Equal(t, 400, w.Code)
}

func TestTestWebhookNotConfigured(t *testing.T) {
	_, h := newTestServer(t, nil)
	w := doJSON(t, h, "POST", "/api/test-webhook", map[string]any{"username": "alice"})
	assert.Equal(t, 400, w.Code)
}
