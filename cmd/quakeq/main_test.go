package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureFeed = "../../internal/adapter/usgs/testdata/all_day.geojson"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestAsk_FeedFile(t *testing.T) {
	out, err := execute(t, "ask", "--feed-file", fixtureFeed, "--now", "2024-04-26T12:00:00Z", "magnitude", "6+", "in", "Japan")
	require.NoError(t, err)

	assert.Contains(t, out, "Found 1 earthquake in Japan in the last 24 hours (M6.0+):")
	assert.Contains(t, out, "1. M6.4 - 120 km E of Miyako, Japan")
	assert.Contains(t, out, "[ORANGE ALERT] [TSUNAMI WARNING]")
}

func TestAsk_JSON(t *testing.T) {
	out, err := execute(t, "ask", "--json", "--feed-file", fixtureFeed, "--now", "2024-04-26T12:00:00Z", "show 2 recent quakes")
	require.NoError(t, err)

	var got askOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "query", string(got.Kind))
	assert.Equal(t, 3, got.Total)
	require.Len(t, got.Events, 2)
	assert.Equal(t, "us7000abcd", got.Events[0].ID)
	assert.Equal(t, "ci40123", got.Events[1].ID)
}

func TestAsk_Greeting(t *testing.T) {
	out, err := execute(t, "ask", "--feed-file", "does-not-exist.geojson", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "Hello!")
}

func TestAsk_Unavailable(t *testing.T) {
	out, err := execute(t, "ask", "--feed-file", "does-not-exist.geojson", "quakes today")
	require.ErrorIs(t, err, errUnavailable)
	assert.Contains(t, out, "temporarily unavailable")
}

func TestAsk_InvalidNow(t *testing.T) {
	_, err := execute(t, "ask", "--feed-file", fixtureFeed, "--now", "yesterday", "quakes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --now")
}

func TestAsk_RequiresQuestion(t *testing.T) {
	_, err := execute(t, "ask")
	require.Error(t, err)
}

func TestParse(t *testing.T) {
	out, err := execute(t, "parse", "Magnitude 6+ in Japan last week")
	require.NoError(t, err)

	assert.Contains(t, out, "magnitude: M6.0+")
	assert.Contains(t, out, "window:    last 7 days")
	assert.Contains(t, out, "location:  Japan")
	assert.Contains(t, out, "limit:     10")
}

func TestParse_JSON(t *testing.T) {
	out, err := execute(t, "parse", "--json", "between 4 and 6 in the last 3 days")
	require.NoError(t, err)
	assert.JSONEq(t, `{"magnitude_min":4,"magnitude_max":6,"since_hours":72,"limit":10}`, out)
}
