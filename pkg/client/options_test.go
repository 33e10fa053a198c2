package client

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithHTTPClient(t *testing.T) {
	custom := &http.Client{Timeout: 60 * time.Second}
	c := &Client{}
	WithHTTPClient(custom)(c)
	assert.Same(t, custom, c.httpClient)

	WithHTTPClient(nil)(c)
	assert.Same(t, custom, c.httpClient)
}

func TestWithTimeout(t *testing.T) {
	c := &Client{httpClient: &http.Client{}}
	WithTimeout(5 * time.Second)(c)
	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)
	WithTimeout(0)(c)
	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)
}

func TestWithRetryMax(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"positive value", 5, 5},
		{"zero value", 0, 0},
		{"negative value ignored", -1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{retryMax: 2}
			WithRetryMax(tt.input)(c)
			assert.Equal(t, tt.expected, c.retryMax)
		})
	}
}

func TestWithRetryWait(t *testing.T) {
	tests := []struct {
		name    string
		min     time.Duration
		max     time.Duration
		wantMin time.Duration
		wantMax time.Duration
	}{
		{"valid", time.Second, 10 * time.Second, time.Second, 10 * time.Second},
		{"max below min keeps old max", 2 * time.Second, time.Second, 2 * time.Second, 5 * time.Second},
		{"zero min ignored", 0, time.Second, 500 * time.Millisecond, 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{retryWaitMin: 500 * time.Millisecond, retryWaitMax: 5 * time.Second}
			WithRetryWait(tt.min, tt.max)(c)
			assert.Equal(t, tt.wantMin, c.retryWaitMin)
			assert.Equal(t, tt.wantMax, c.retryWaitMax)
		})
	}
}

func TestWithUserAgent(t *testing.T) {
	c := &Client{userAgent: "default"}
	WithUserAgent("")(c)
	assert.Equal(t, "default", c.userAgent)
	WithUserAgent("ops/2")(c)
	assert.Equal(t, "ops/2", c.userAgent)
}
