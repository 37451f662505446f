package expiration_test

import (
	"testing"
	"time"

	"github.com/krisalay/marketplace/expiration"
)

func TestExpireAfterWrite(t *testing.T) {
	exp := &expiration.ExpireAfterWrite{Timeout: 90000 * time.Millisecond}
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		after time.Duration
		want  bool
	}{
		{0, false},
		{50 * time.Second, false},
		{90 * time.Second, false},
		{90*time.Second + time.Nanosecond, true},
		{95 * time.Second, true},
	}

	for _, tc := range cases {
		if got := exp.IsExpired(created, created.Add(tc.after)); got != tc.want {
			t.Fatalf("after %v: expected expired=%v, got %v", tc.after, tc.want, got)
		}
	}
}
