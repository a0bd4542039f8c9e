package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/abhisek/igcseprep/internal/apperrors"
	"github.com/abhisek/igcseprep/internal/config"
)

func TestLocalArchiver(t *testing.T) {
	ctx := context.Background()
	a := NewLocal(t.TempDir())

	if err := a.Put(ctx, "runs/2026/01/02/run-1.json", "application/json", []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := a.Get(ctx, "/runs/2026/01/02/run-1.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"ok":true}` {
		t.Errorf("Get = %s", got)
	}

	if err := a.Put(ctx, "runs/2026/01/02/run-1.json", "", []byte("v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got, _ := a.Get(ctx, "runs/2026/01/02/run-1.json"); string(got) != "v2" {
		t.Errorf("overwrite not visible: %s", got)
	}

	if _, err := a.Get(ctx, "raw/missing.md"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("missing key: got %v", err)
	}
	for _, bad := range []string{"", "  ", "../escape", "raw/../../x"} {
		if err := a.Put(ctx, bad, "", nil); !errors.Is(err, apperrors.ErrBadRequest) {
			t.Errorf("key %q: got %v", bad, err)
		}
	}
}

func TestNew(t *testing.T) {
	a, err := New(context.Background(), config.ArchiveConfig{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := a.(*LocalArchiver); !ok {
		t.Errorf("empty backend gave %T", a)
	}
	if _, err := New(context.Background(), config.ArchiveConfig{Backend: "ftp"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := New(context.Background(), config.ArchiveConfig{Backend: "s3"}); err == nil {
		t.Error("expected error for s3 without bucket")
	}
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, _ := io.ReadAll(in.Body)
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = b
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func TestS3Archiver(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	a := newS3WithClient(fake, "bucket", "igcse")

	if err := a.Put(ctx, "raw/abc.md", "text/markdown", []byte("# Cells")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok := fake.objects["bucket/igcse/raw/abc.md"]; !ok {
		t.Fatalf("object stored under %v", fake.objects)
	}
	if fake.types["igcse/raw/abc.md"] != "text/markdown" {
		t.Errorf("content type = %q", fake.types["igcse/raw/abc.md"])
	}
	got, err := a.Get(ctx, "raw/abc.md")
	if err != nil || string(got) != "# Cells" {
		t.Errorf("Get = %q, %v", got, err)
	}
	if _, err := a.Get(ctx, "raw/none.md"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("missing: got %v", err)
	}
}
