package credentials

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/cashkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeS3 struct {
	body     []byte
	etag     string
	modified time.Time
	err      error

	heads, gets int
	bucket, key string
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.heads++
	f.bucket, f.key = aws.ToString(in.Bucket), aws.ToString(in.Key)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.HeadObjectOutput{ETag: aws.String(f.etag), LastModified: aws.Time(f.modified)}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.body))}, nil
}

func TestS3Source_StatAndOpen(t *testing.T) {
	ctx := context.Background()
	f := &fakeS3{body: []byte("alice:x\n"), etag: `"abc"`, modified: time.Unix(100, 0)}
	src := NewS3Source(f, "secrets", "registry.txt")

	m1, err := src.Stat(ctx)
	require.NoError(t, err)
	assert.Equal(t, "secrets", f.bucket)
	assert.Equal(t, "registry.txt", f.key)

	f.etag = `"def"`
	m2, err := src.Stat(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, m1, m2)

	rc, err := src.Open(ctx)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "alice:x\n", string(b))

	assert.Equal(t, "s3://secrets/registry.txt", src.String())
}

func TestS3Source_Errors(t *testing.T) {
	ctx := context.Background()
	f := &fakeS3{err: errors.New("access denied")}
	src := NewS3Source(f, "b", "k")

	_, err := src.Stat(ctx)
	assert.ErrorContains(t, err, "access denied")
	_, err = src.Open(ctx)
	assert.ErrorContains(t, err, "access denied")
}

func TestStore_WithS3Source(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse battery"), bcrypt.MinCost)
	require.NoError(t, err)

	f := &fakeS3{body: []byte("alice:" + string(hash) + "\n"), etag: `"v1"`, modified: time.Unix(1, 0)}
	st := NewStore(NewS3Source(f, "b", "k"), 10, &logging.Nop{})

	ctx := context.Background()
	assert.True(t, st.Validate(ctx, "alice", "correct horse battery"))
	assert.True(t, st.IsKnownUser(ctx, "alice"))
	assert.Equal(t, 1, f.gets)

	// unchanged marker means no re-read
	assert.True(t, st.IsKnownUser(ctx, "alice"))
	assert.Equal(t, 1, f.gets)
}

func TestNewS3Client_Seams(t *testing.T) {
	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig, newS3ClientFromConfig = origLoad, origNew
	})

	var lo awsconfig.LoadOptions
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		opts = s3.Options{}
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}

	c, err := NewS3Client(context.Background(), S3Settings{
		Region:       "eu-central-1",
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		BaseEndpoint: "http://127.0.0.1:9000",
	})
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, "eu-central-1", lo.Region)
	assert.NotNil(t, lo.Credentials)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)

	_, err = NewS3Client(context.Background(), S3Settings{Region: "us-east-1"})
	require.NoError(t, err)
	assert.Nil(t, opts.BaseEndpoint)
	assert.False(t, opts.UsePathStyle)
}

func TestNewS3Client_LoadError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = origLoad })

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}

	_, err := NewS3Client(context.Background(), S3Settings{})
	assert.Error(t, err)
}
