package snapshot

import "testing"

func TestResolvedEndpointAddsSchemeWhenMissing(t *testing.T) {
	cfg := ClientConfig{Endpoint: "minio.internal:9000"}
	if got := cfg.resolvedEndpoint(); got != "http://minio.internal:9000" {
		t.Fatalf("got %q, want http scheme added", got)
	}

	cfg.UseSSL = true
	if got := cfg.resolvedEndpoint(); got != "https://minio.internal:9000" {
		t.Fatalf("got %q, want https scheme added", got)
	}
}

func TestResolvedEndpointLeavesExplicitSchemeAlone(t *testing.T) {
	cfg := ClientConfig{Endpoint: "https://s3.custom.example:443"}
	if got := cfg.resolvedEndpoint(); got != cfg.Endpoint {
		t.Fatalf("got %q, want endpoint left unchanged", got)
	}
}

func TestValidateRequiresBucketAndRegion(t *testing.T) {
	if err := (ClientConfig{}).validate(); err == nil {
		t.Fatal("expected error for empty bucket and region")
	}
	if err := (ClientConfig{Bucket: "b"}).validate(); err == nil {
		t.Fatal("expected error for empty region")
	}
	if err := (ClientConfig{Bucket: "b", Region: "r"}).validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
