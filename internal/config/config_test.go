package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	SetDefaults()

	cfg, err := Unmarshal(viper.GetViper())
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/wp-json/cm/v1/", cfg.API.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, 20, cfg.Index.PerPage)
	assert.Equal(t, 10*time.Minute, cfg.Index.CacheMaxAge)
	assert.True(t, cfg.Player.DeepLink)
	assert.Zero(t, cfg.Player.AutoCloseDelay())
	assert.Equal(t, "auto", cfg.TTS.Type)
	assert.Equal(t, "#3498DB", cfg.Player.AccentColor)
}

func TestUnmarshalYAML(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
api:
  base_url: https://news.example.com/wp-json/cm/v1/
  timeout: 5s
  requests_per_second: 2.5
index:
  featured: true
  per_page: 10
player:
  auto_close: 3
  deep_link: false
tts:
  type: espeak
  speed: 1.5
log:
  level: debug
`)))

	cfg, err := Unmarshal(v)
	require.NoError(t, err)

	assert.Equal(t, "https://news.example.com/wp-json/cm/v1/", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 2.5, cfg.API.RequestsPerSecond)
	assert.True(t, cfg.Index.Featured)
	assert.Equal(t, 10, cfg.Index.PerPage)
	assert.False(t, cfg.Player.DeepLink)
	assert.Equal(t, 3*time.Second, cfg.Player.AutoCloseDelay())
	assert.Equal(t, "espeak", cfg.TTS.Type)
	assert.Equal(t, 1.5, cfg.TTS.Speed)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("STORYREEL_PLAYER_AUTO_CLOSE", "7")
	t.Setenv("STORYREEL_API_BASE_URL", "https://env.example.com/wp-json/cm/v1/")

	Init()
	SetDefaults()
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Player.AutoClose)
	assert.Equal(t, "https://env.example.com/wp-json/cm/v1/", cfg.API.BaseURL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "missing base url",
			cfg:  Config{},
			want: "api.base_url",
		},
		{
			name: "auto close too long",
			cfg:  Config{API: APIConfig{BaseURL: "http://x/"}, Player: PlayerConfig{AutoClose: 61}},
			want: "player.auto_close",
		},
		{
			name: "negative auto close",
			cfg:  Config{API: APIConfig{BaseURL: "http://x/"}, Player: PlayerConfig{AutoClose: -1}},
			want: "player.auto_close",
		},
		{
			name: "negative page size",
			cfg:  Config{API: APIConfig{BaseURL: "http://x/"}, Index: IndexConfig{PerPage: -1}},
			want: "index.per_page",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorContains(t, tt.cfg.Validate(), tt.want)
		})
	}

	ok := Config{API: APIConfig{BaseURL: "http://x/"}, Player: PlayerConfig{AutoClose: 60}}
	assert.NoError(t, ok.Validate())
}

func TestAutoCloseDelayClamps(t *testing.T) {
	assert.Equal(t, MaxAutoClose, PlayerConfig{AutoClose: 600}.AutoCloseDelay())
	assert.Zero(t, PlayerConfig{AutoClose: -5}.AutoCloseDelay())
}
