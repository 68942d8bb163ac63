package s3

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"

	"scoutcore/internal/blob/core"
)

func TestStore_MockedBasicFlow(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	if store.Driver() != core.DriverS3 {
		t.Fatalf("expected s3 driver")
	}
	info, err := store.Put(ctx, "exports/run.csv", bytes.NewReader([]byte("hello")), core.PutOptions{ContentType: "text/csv"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "exports/run.csv" || info.ContentType != "text/csv" || info.Size < 5 {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "exports/run.csv", bytes.NewReader([]byte("ignored")), core.PutOptions{}); err == nil {
		t.Fatalf("expected duplicate put error")
	}
	if _, err := store.Head(ctx, "exports/run.csv"); err != nil {
		t.Fatalf("head: %v", err)
	}
	_, rc, err := store.Get(ctx, "exports/run.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "hello" {
		t.Fatalf("get mismatch: %q", string(data))
	}
	list, err := store.List(ctx, "exports/")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %+v", err, list)
	}
	if url, err := store.PresignURL(ctx, "exports/run.csv", core.SignedURLOptions{}); err != nil || url == "" {
		t.Fatalf("presign: %v %s", err, url)
	}
	if ok, err := store.Delete(ctx, "exports/run.csv"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
}

func TestStore_ErrorPaths(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	if _, err := store.Head(ctx, "nope"); err == nil {
		t.Fatalf("expected head error for missing key")
	}
	if _, _, err := store.Get(ctx, "nope"); err == nil {
		t.Fatalf("expected get error for missing key")
	}
	if _, err := store.PresignURL(ctx, "k", core.SignedURLOptions{Method: "PUT"}); err == nil {
		t.Fatalf("expected presign unsupported error")
	}
}

func TestStore_ListPaginatesAndPresignExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	if _, err := store.Put(ctx, "k1.txt", bytes.NewReader([]byte("body")), core.PutOptions{}); err != nil {
		t.Fatalf("put1: %v", err)
	}
	if _, err := store.Put(ctx, "k2.txt", bytes.NewReader([]byte("body2")), core.PutOptions{}); err != nil {
		t.Fatalf("put2: %v", err)
	}
	// Fake returns one key per page for multi-key prefixes, driving the
	// continuation-token loop.
	list, err := store.List(ctx, "k")
	if err != nil || len(list) != 2 {
		t.Fatalf("expected two items via pagination: %v %+v", err, list)
	}
	if empty, err := store.List(ctx, "no-such-prefix/"); err != nil || len(empty) != 0 {
		t.Fatalf("expected empty list: %v %+v", err, empty)
	}
	if url, err := store.PresignURL(ctx, "k1.txt", core.SignedURLOptions{Expiry: 30 * time.Second}); err != nil || url == "" {
		t.Fatalf("presign custom expiry: %v %s", err, url)
	}
}

func TestStore_ConfigValidation(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIA")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "SECRET")
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
	s, err := New(context.Background(), Config{Bucket: "bkt", Endpoint: "https://mock.s3.local", PathStyle: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Driver() != core.DriverS3 {
		t.Fatalf("expected s3 driver")
	}
}

func TestOpenFromEnv(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIA")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "SECRET")
	t.Setenv("SCOUTCORE_BLOB_S3_BUCKET", "")
	if _, err := OpenFromEnv(context.Background()); err == nil || !strings.Contains(err.Error(), "SCOUTCORE_BLOB_S3_BUCKET") {
		t.Fatalf("expected missing bucket error, got %v", err)
	}
	t.Setenv("SCOUTCORE_BLOB_S3_BUCKET", "env-bucket")
	t.Setenv("SCOUTCORE_BLOB_S3_REGION", "us-east-1")
	t.Setenv("SCOUTCORE_BLOB_S3_PATH_STYLE", "TRUE")
	if _, err := OpenFromEnv(context.Background()); err != nil {
		t.Fatalf("OpenFromEnv: %v", err)
	}
}

func TestInfoFromNilBranches(t *testing.T) {
	store := NewMockForTests()
	info := store.infoFrom("k", 10, nil, aws.String("\"etagval\""), map[string]string{"x": "y"}, nil)
	if info.ETag != "etagval" || info.ContentType != "" || info.Key != "k" || info.Size != 10 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.LastModified.IsZero() {
		t.Fatalf("expected fallback timestamp")
	}
}

func TestDecodeAWSChunked(t *testing.T) {
	if _, ok := decodeAWSChunked([]byte("not-chunked")); ok {
		t.Fatalf("expected failure for plain payload")
	}
	if _, ok := decodeAWSChunked([]byte("5\r\nabc\r\n0\r\n")); ok {
		t.Fatalf("size mismatch should fail")
	}
	if b, ok := decodeAWSChunked([]byte("5\r\nhello\r\n0\r\n")); !ok || string(b) != "hello" {
		t.Fatalf("expected decode hello, got %q %v", b, ok)
	}
	if _, err := parseHex("zz"); err == nil {
		t.Fatalf("expected invalid hex error")
	}
}

func TestFakeTransportUnsupportedMethod(t *testing.T) {
	rt := &fakeTransport{objects: make(map[string]fakeObject)}
	req, _ := http.NewRequest(http.MethodPatch, "https://mock.s3.local/bucket/key", nil)
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("roundtrip: %v", err)
	}
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", resp.StatusCode)
	}
}
