package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestFileSnapshotStoreRoundTrip(t *testing.T) {
	s := NewFileSnapshotStore(filepath.Join(t.TempDir(), "snapshots"))
	ctx := context.Background()

	missing, err := s.Get(ctx, "20260101")
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil) for missing snapshot, got %v %v", missing, err)
	}

	snap := NewSnapshot("20260102", time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC))
	snap.Jobs[11] = JobCounts{AnnotatedFrameCount: 10, ShapeCount: 22}
	if err := s.Put(ctx, snap); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, "20260102")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Jobs[11].AnnotatedFrameCount != 10 || got.Jobs[11].ShapeCount != 22 {
		t.Errorf("unexpected jobs %+v", got.Jobs)
	}
	if filepath.Base(s.Path("20260102")) != "daily_20260102.json" {
		t.Errorf("unexpected path %s", s.Path("20260102"))
	}
}

func TestFileSnapshotStoreLegacyKeys(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSnapshotStore(dir)
	legacy := `{"date": "20251201", "jobs": {"7": {"annotated_frames": 4, "shapes": 9}}}`
	if err := os.WriteFile(s.Path("20251201"), []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(context.Background(), "20251201")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Jobs[7] != (JobCounts{AnnotatedFrameCount: 4, ShapeCount: 9}) {
		t.Errorf("legacy keys not decoded: %+v", got.Jobs)
	}
}

func TestPreviousDate(t *testing.T) {
	got, err := PreviousDate("20260301")
	if err != nil || got != "20260228" {
		t.Errorf("PreviousDate = %q %v", got, err)
	}
	if _, err := PreviousDate("2026-03-01"); err == nil {
		t.Error("expected parse error")
	}
}

// fakeDynamo keeps items in memory keyed by PK|SK.
type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue
}

func itemKey(key map[string]types.AttributeValue) string {
	return key["PK"].(*types.AttributeValueMemberS).Value + "|" + key["SK"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.items[itemKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(in.Key)]}, nil
}

func TestDynamoSnapshotStoreRoundTrip(t *testing.T) {
	fake := &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
	s := NewDynamoSnapshotStore(fake, "snapshots")
	ctx := context.Background()

	if got, err := s.Get(ctx, "20260105"); err != nil || got != nil {
		t.Fatalf("expected (nil, nil), got %v %v", got, err)
	}

	snap := NewSnapshot("20260105", time.Now())
	snap.Note = "backfill"
	snap.Jobs[3] = JobCounts{AnnotatedFrameCount: 1, ShapeCount: 2}
	snap.Jobs[40] = JobCounts{AnnotatedFrameCount: 5, ShapeCount: 8}
	if err := s.Put(ctx, snap); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok := fake.items["SNAPSHOT#20260105|META"]; !ok {
		t.Fatalf("expected item under SNAPSHOT#20260105/META, have %v", fake.items)
	}

	got, err := s.Get(ctx, "20260105")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Note != "backfill" || len(got.Jobs) != 2 || got.Jobs[40].ShapeCount != 8 {
		t.Errorf("unexpected snapshot %+v", got)
	}
}
