package inventory

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestBuildGroupsByChunk(t *testing.T) {
	inv := Build([]string{
		"dev/session_A/0000/down/labels/frame_1.jpg",
		"dev/session_A/0000/down/labels/frame_2.jpg",
		"dev/session_A/0001/down/labels/frame_1.jpg",
		"dev/session_A/meta.json",
		"dev/session_B/0000/frame_1.png",
		"dev/other/readme.txt",
		"dev/session_A/",
	})

	if len(inv.Sessions) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(inv.Sessions))
	}
	a0 := inv.Sessions["session_A_0000"]
	if a0 == nil || len(a0.Images) != 2 || !a0.HasManifest {
		t.Errorf("unexpected session_A_0000: %+v", a0)
	}
	if !inv.Sessions["session_A_0001"].HasManifest {
		t.Error("manifest at session root should cover every chunk")
	}
	if inv.Sessions["session_B_0000"].HasManifest {
		t.Error("session_B has no manifest")
	}
	if len(inv.Unresolved) != 1 || inv.Unresolved[0] != "dev/other/readme.txt" {
		t.Errorf("unexpected unresolved keys %v", inv.Unresolved)
	}
	if inv.TotalKeys != 6 {
		t.Errorf("directory markers should not count, got %d keys", inv.TotalKeys)
	}
}

func TestIncompleteSessionExcludedFromBasenames(t *testing.T) {
	inv := Build([]string{
		"x/session_done/0000/a.jpg",
		"x/session_done/0000/manifest.json",
		"x/session_partial/0000/b.jpg",
		"x/session_partial/0000/c.jpg",
	})

	set := inv.BasenameSet()
	if _, ok := set["a.jpg"]; !ok {
		t.Error("expected a.jpg from complete session")
	}
	for _, b := range []string{"b.jpg", "c.jpg"} {
		if _, ok := set[b]; ok {
			t.Errorf("%s belongs to a session without manifest", b)
		}
	}

	complete, incomplete := inv.Split()
	if len(complete) != 1 || len(incomplete) != 1 || incomplete[0].ID != "session_partial_0000" {
		t.Errorf("unexpected split %v / %v", complete, incomplete)
	}
}

func TestBasenamesKeepsFirstPath(t *testing.T) {
	inv := Build([]string{
		"p/session_2/0000/h2__frame.jpg",
		"p/session_1/0000/h1__frame.jpg",
		"p/session_1/m.json",
		"p/session_2/m.json",
	})
	got := inv.Basenames()
	if got["frame.jpg"] != "p/session_1/0000/h1__frame.jpg" {
		t.Errorf("expected first session's key, got %q", got["frame.jpg"])
	}
}

type fakeLister struct {
	keys []string
}

func (f fakeLister) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	for _, k := range f.keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestScan(t *testing.T) {
	inv, err := Scan(context.Background(), fakeLister{keys: []string{
		"raw/session_X/0000/manifest.json",
		"raw/session_X/0000/1.jpg",
	}}, "bucket", "raw/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Bucket != "bucket" || inv.Prefix != "raw/" {
		t.Errorf("unexpected location %s/%s", inv.Bucket, inv.Prefix)
	}
	if len(inv.BasenameSet()) != 1 {
		t.Errorf("expected one basename, got %v", inv.BasenameSet())
	}
}
