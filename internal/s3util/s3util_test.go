package s3util

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeBucket serves a fixed key list in pages of pageSize.
type fakeBucket struct {
	keys     []string
	objects  map[string]string
	pageSize int
	calls    int
}

func (f *fakeBucket) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.calls++
	start := 0
	if in.ContinuationToken != nil {
		start, _ = strconv.Atoi(*in.ContinuationToken)
	}
	prefix := aws.ToString(in.Prefix)
	var matching []string
	for _, k := range f.keys {
		if strings.HasPrefix(k, prefix) {
			matching = append(matching, k)
		}
	}
	end := start + f.pageSize
	if end > len(matching) {
		end = len(matching)
	}
	out := &s3.ListObjectsV2Output{}
	for _, k := range matching[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(matching) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (f *fakeBucket) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestListKeysFollowsPages(t *testing.T) {
	bucket := &fakeBucket{keys: []string{"p/a", "p/b", "p/c", "p/d", "p/e", "q/z"}, pageSize: 2}

	keys, err := ListKeys(context.Background(), bucket, "b", "p/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 5 {
		t.Errorf("expected 5 keys, got %v", keys)
	}
	if bucket.calls != 3 {
		t.Errorf("expected 3 pages, got %d", bucket.calls)
	}
}

func TestFindFirstSuffixStopsEarly(t *testing.T) {
	bucket := &fakeBucket{keys: []string{"l/1.jpg", "l/x_bbox.json", "l/2.jpg", "l/3.jpg", "l/y_bbox.json"}, pageSize: 2}

	key, ok, err := FindFirstSuffix(context.Background(), bucket, "b", "l/", "_bbox.json")
	if err != nil || !ok {
		t.Fatalf("expected match, got %v %v", ok, err)
	}
	if key != "l/x_bbox.json" {
		t.Errorf("unexpected key %q", key)
	}
	if bucket.calls != 1 {
		t.Errorf("expected listing to stop after first page, got %d calls", bucket.calls)
	}

	_, ok, err = FindFirstSuffix(context.Background(), bucket, "b", "l/", ".png")
	if err != nil || ok {
		t.Errorf("expected no match, got %v %v", ok, err)
	}
}

func TestListKeysWithSuffix(t *testing.T) {
	bucket := &fakeBucket{keys: []string{"a_bbox.json", "b.jpg", "c_bbox.json"}, pageSize: 10}
	keys, err := ListKeysWithSuffix(context.Background(), bucket, "b", "", "_bbox.json")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 {
		t.Errorf("expected 2 keys, got %v", keys)
	}
}

func TestGetJSON(t *testing.T) {
	bucket := &fakeBucket{objects: map[string]string{"k.json": `{"n": 3}`, "bad.json": "nope"}}

	got, err := GetJSON[struct{ N int }](context.Background(), bucket, "b", "k.json")
	if err != nil || got.N != 3 {
		t.Fatalf("unexpected %+v %v", got, err)
	}
	if _, err := GetJSON[struct{ N int }](context.Background(), bucket, "b", "bad.json"); err == nil {
		t.Error("expected parse error")
	}
	if _, err := GetJSON[struct{ N int }](context.Background(), bucket, "b", "missing.json"); err == nil {
		t.Error("expected get error")
	}
}
