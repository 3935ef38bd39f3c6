package migrate

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-dev/weft/internal/errors"
)

func sampleReport(t *testing.T) *Report {
	t.Helper()
	return scanTree(t, map[string]string{"app/counter.go": counterSrc}, nil)
}

func TestDiskStoreWrite(t *testing.T) {
	rep := sampleReport(t)
	path := filepath.Join(t.TempDir(), "report.json")

	loc, err := (&DiskStore{Path: path}).Write(context.Background(), rep)
	require.NoError(t, err)
	assert.Equal(t, path, loc)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, rep.ID, got.ID)
}

func TestDiskStoreDefaultPath(t *testing.T) {
	t.Chdir(t.TempDir())

	loc, err := (&DiskStore{}).Write(context.Background(), sampleReport(t))
	require.NoError(t, err)
	assert.Equal(t, DefaultReportPath, loc)
	_, err = os.Stat(DefaultReportPath)
	assert.NoError(t, err)
}

type fakePutObject struct {
	in  *s3.PutObjectInput
	err error
}

func (f *fakePutObject) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3StoreWrite(t *testing.T) {
	rep := sampleReport(t)
	fake := &fakePutObject{}
	store := &S3Store{Client: fake, Bucket: "reports", Key: "custom.json"}

	loc, err := store.Write(context.Background(), rep)
	require.NoError(t, err)
	assert.Equal(t, "s3://reports/custom.json", loc)

	require.NotNil(t, fake.in)
	assert.Equal(t, "reports", aws.ToString(fake.in.Bucket))
	assert.Equal(t, "custom.json", aws.ToString(fake.in.Key))
	assert.Equal(t, "application/json", aws.ToString(fake.in.ContentType))

	body, err := io.ReadAll(fake.in.Body)
	require.NoError(t, err)
	var got Report
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, rep.ID, got.ID)
}

func TestS3StoreDerivesKey(t *testing.T) {
	rep := sampleReport(t)
	fake := &fakePutObject{}

	loc, err := (&S3Store{Client: fake, Bucket: "reports"}).Write(context.Background(), rep)
	require.NoError(t, err)
	assert.Equal(t, "s3://reports/weft-migrate-"+rep.ID+".json", loc)
}

func TestS3StoreUploadError(t *testing.T) {
	fake := &fakePutObject{err: stderrors.New("no such bucket")}

	_, err := (&S3Store{Client: fake, Bucket: "reports"}).Write(context.Background(), sampleReport(t))
	var werr *errors.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "W205", werr.Code)
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		raw     string
		bucket  string
		key     string
		wantErr bool
	}{
		{"s3://reports/team/out.json", "reports", "team/out.json", false},
		{"s3://reports", "reports", "", false},
		{"s3://reports/", "reports", "", false},
		{"https://reports/out.json", "", "", true},
		{"s3://", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			bucket, key, err := ParseS3URL(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}
