package nest

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storyreel/internal/config"

	"github.com/stretchr/testify/require"
)

const indexJSON = `[
  {"id": 1, "title": "Morning Brief", "slug": "morning-brief", "duration": 5, "featured": true, "excerpt": "Today in five pages"},
  {"id": 2, "title": "Match Report", "slug": "match-report", "duration": "4"}
]`

const briefJSON = `{
  "id": 1, "title": "Morning Brief", "slug": "morning-brief", "duration": 5,
  "pages": [
    {"type": "text", "title": "Hello", "text": "World"},
    {"type": "image", "url": "https://cdn.example.com/a.jpg", "title": "Skyline"}
  ]
}`

const reportJSON = `{"id": 2, "title": "Match Report", "slug": "match-report", "pages": []}`

const articleJSON = `{
  "id": 1,
  "title": {"rendered": "Morning Brief"},
  "content": {"rendered": "<p>First paragraph.</p><p>Second paragraph.</p>"}
}`

// newStoryServer serves a small story collection under the usual namespaces
func newStoryServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/cm/v1/stories", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-WP-Total", "2")
		w.Header().Set("X-WP-TotalPages", "1")
		w.Write([]byte(indexJSON))
	})
	mux.HandleFunc("/wp-json/cm/v1/stories/1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(briefJSON))
	})
	mux.HandleFunc("/wp-json/cm/v1/stories/2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(reportJSON))
	})
	mux.HandleFunc("/wp-json/wp/v2/cm_story/1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(articleJSON))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		API: config.APIConfig{
			BaseURL: baseURL + "/wp-json/cm/v1/",
			Timeout: 5 * time.Second,
		},
		Player: config.PlayerConfig{
			DeepLink:     true,
			ShowProgress: true,
			ShowControls: true,
		},
		TTS: config.TTSConfig{Type: "mock"},
	}
}

func newTestNest(t *testing.T) *StoryNest {
	t.Helper()
	srv := newStoryServer(t)
	cfg := testConfig(srv.URL)
	cfg.Index.CachePath = t.TempDir()
	sn, err := NewStoryNest(cfg)
	require.NoError(t, err)
	t.Cleanup(sn.Shutdown)
	return sn
}
