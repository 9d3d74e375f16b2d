package s3mirror

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// fakeS3 — in-memory заглушка ObjectAPI.
type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMirror_UploadAndRemove(t *testing.T) {
	fake := newFakeS3()
	m := NewWithClient(fake, "docs", "proposals", testLogger())

	local := filepath.Join(t.TempDir(), "PROPOSTA - Maria - #7.pdf")
	if err := os.WriteFile(local, []byte("%PDF"), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := m.Key(local); got != "proposals/PROPOSTA - Maria - #7.pdf" {
		t.Errorf("Key = %q", got)
	}

	if err := m.Upload(context.Background(), local); err != nil {
		t.Fatalf("Upload() вернул ошибку: %v", err)
	}
	key := "docs/proposals/PROPOSTA - Maria - #7.pdf"
	if string(fake.objects[key]) != "%PDF" {
		t.Fatalf("объект не загружен: %v", fake.objects)
	}
	if fake.types[key] != "application/pdf" {
		t.Errorf("ContentType = %q", fake.types[key])
	}

	if err := m.Remove(context.Background(), local); err != nil {
		t.Fatalf("Remove() вернул ошибку: %v", err)
	}
	if _, ok := fake.objects[key]; ok {
		t.Error("объект не удалён")
	}
}

func TestMirror_UploadErrors(t *testing.T) {
	fake := newFakeS3()
	m := NewWithClient(fake, "docs", "", testLogger())

	if err := m.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Error("ожидается ошибка для отсутствующего файла")
	}

	local := filepath.Join(t.TempDir(), "a.pdf")
	if err := os.WriteFile(local, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	fake.putErr = errors.New("access denied")
	if err := m.Upload(context.Background(), local); err == nil {
		t.Error("ожидается ошибка PutObject")
	}
	if got := m.Key(local); got != "a.pdf" {
		t.Errorf("Key без префикса = %q", got)
	}
}
