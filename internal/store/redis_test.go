package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

func TestRedis(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	prefix := fmt.Sprintf("nodelayout-test-%d:", time.Now().UnixNano())
	s, err := NewRedis(context.Background(), url, prefix)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()

	exerciseStore(t, s)
}
