package classifier

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/snap-point/moderation-api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingVision struct {
	calls atomic.Int32
	inner VisionClient
}

func (c *countingVision) Annotate(ctx context.Context, u string) (*VisionAnnotation, error) {
	c.calls.Add(1)
	return c.inner.Annotate(ctx, u)
}

type failingVision struct{ failOn string }

func (f failingVision) Annotate(ctx context.Context, u string) (*VisionAnnotation, error) {
	if f.failOn == "" || strings.Contains(u, f.failOn) {
		return nil, errors.New("vision backend unavailable")
	}
	return HeuristicVision{}.Annotate(ctx, u)
}

func newTestImage(v VisionClient, opts ImageClassifierOptions) *ImageClassifier {
	return NewImageClassifier(v, opts, zap.NewNop())
}

func TestValidateImageURL(t *testing.T) {
	assert.NoError(t, ValidateImageURL("https://cdn.example.com/a/b.jpg"))
	assert.NoError(t, ValidateImageURL("http://cdn.example.com/b.PNG?w=200"))
	assert.Error(t, ValidateImageURL("ftp://cdn.example.com/b.jpg"))
	assert.Error(t, ValidateImageURL("https://cdn.example.com/b.exe"))
	assert.Error(t, ValidateImageURL("not a url"))
}

func TestImageInvalidURLRejected(t *testing.T) {
	v := &countingVision{inner: HeuristicVision{}}
	res, analysis, err := newTestImage(v, ImageClassifierOptions{}).Analyze(context.Background(), "ftp://x.example/a.jpg")
	require.NoError(t, err)
	assert.Nil(t, analysis)
	assert.False(t, res.IsApproved)
	assert.Equal(t, types.SeverityMedium, res.Severity)
	assert.Contains(t, res.Flags, "invalid_image_url")
	assert.Zero(t, v.calls.Load())
}

func TestImageCleanApproved(t *testing.T) {
	res, analysis, err := newTestImage(HeuristicVision{}, ImageClassifierOptions{}).
		Analyze(context.Background(), "https://cdn.example.com/sunset-beach.jpg")
	require.NoError(t, err)
	require.NotNil(t, analysis)
	assert.True(t, res.IsApproved)
	assert.Equal(t, types.SeverityLow, res.Severity)
}

func TestImageAdultIsCritical(t *testing.T) {
	res, analysis, err := newTestImage(HeuristicVision{}, ImageClassifierOptions{}).
		Analyze(context.Background(), "https://cdn.example.com/nsfw-upload.jpg")
	require.NoError(t, err)
	require.NotNil(t, analysis)
	assert.Equal(t, types.SeverityCritical, res.Severity)
	assert.False(t, res.IsApproved)
	assert.True(t, res.RequiresHumanReview)
	assert.Contains(t, res.Flags, "adult_content")
	assert.Contains(t, analysis.Labels, "explicit")
}

func TestImageSuspiciousLabelPenalty(t *testing.T) {
	ic := newTestImage(HeuristicVision{}, ImageClassifierOptions{})
	a := ic.score("u", &VisionAnnotation{Quality: 0.9, Labels: []string{"weapon"}})
	assert.InDelta(t, 0.3, a.RiskScore, 1e-9)

	a = ic.score("u", &VisionAnnotation{Quality: 0.1, Text: "click here"})
	assert.InDelta(t, 0.4, a.RiskScore, 1e-9)
}

func TestImageBackendFailureFailsClosed(t *testing.T) {
	res, analysis, err := newTestImage(failingVision{}, ImageClassifierOptions{}).
		Analyze(context.Background(), "https://cdn.example.com/a.jpg")
	require.Error(t, err)
	assert.Nil(t, analysis)

	var cerr *types.ClassifierError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, ImageClassifierName, cerr.Classifier)
	assert.False(t, res.IsApproved)
	assert.True(t, res.RequiresHumanReview)
	assert.Contains(t, res.Flags, "image_analysis_error")
}

func TestImageResultsAreCached(t *testing.T) {
	v := &countingVision{inner: HeuristicVision{}}
	ic := newTestImage(v, ImageClassifierOptions{CacheTTL: time.Minute})

	for i := 0; i < 3; i++ {
		_, _, err := ic.Analyze(context.Background(), "https://cdn.example.com/a.jpg")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), v.calls.Load())
}

func TestImageBulkIsolatesFailures(t *testing.T) {
	ic := newTestImage(failingVision{failOn: "broken"}, ImageClassifierOptions{BatchSize: 2})
	urls := []string{
		"https://cdn.example.com/1.jpg",
		"https://cdn.example.com/broken.jpg",
		"https://cdn.example.com/3.jpg",
		"ftp://cdn.example.com/4.jpg",
		"https://cdn.example.com/5.jpg",
	}

	out := ic.AnalyzeBulk(context.Background(), urls)
	require.Len(t, out, len(urls))
	for i, item := range out {
		assert.Equal(t, urls[i], item.URL)
	}
	assert.Empty(t, out[0].Err)
	assert.NotEmpty(t, out[1].Err)
	assert.Contains(t, out[1].Result.Flags, "image_analysis_error")
	assert.Empty(t, out[2].Err)
	assert.Contains(t, out[3].Result.Flags, "invalid_image_url")
	assert.True(t, out[4].Result.IsApproved)
}

func TestImageBulkStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := newTestImage(HeuristicVision{}, ImageClassifierOptions{BatchSize: 1}).
		AnalyzeBulk(ctx, []string{"https://cdn.example.com/1.jpg", "https://cdn.example.com/2.jpg"})
	require.Len(t, out, 2)
	for _, item := range out {
		assert.NotEmpty(t, item.Err)
		assert.False(t, item.Result.IsApproved)
	}
}

type fakeHead struct {
	size        int64
	contentType string
	keys        []string
}

func (f *fakeHead) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.keys = append(f.keys, aws.ToString(in.Key))
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(f.size),
		ContentType:   aws.String(f.contentType),
	}, nil
}

func TestR2InspectorOnlyHandlesBucketURLs(t *testing.T) {
	head := &fakeHead{size: 2048, contentType: "image/jpeg"}
	insp := newR2ImageInspector(head, "uploads", "https://media.example.com")

	obj, err := insp.Inspect(context.Background(), "https://elsewhere.example.com/a.jpg")
	require.NoError(t, err)
	assert.Nil(t, obj)

	obj, err = insp.Inspect(context.Background(), "https://media.example.com/posts/u1/a.jpg?w=100")
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Equal(t, "posts/u1/a.jpg", obj.Key)
	assert.Equal(t, []string{"posts/u1/a.jpg"}, head.keys)
}

func TestImageInspectorLowersQuality(t *testing.T) {
	head := &fakeHead{size: 2048, contentType: "image/jpeg"}
	ic := newTestImage(HeuristicVision{}, ImageClassifierOptions{
		Inspector: newR2ImageInspector(head, "uploads", "https://media.example.com"),
	})
	res, analysis, err := ic.Analyze(context.Background(), "https://media.example.com/posts/a.jpg")
	require.NoError(t, err)
	require.NotNil(t, analysis)
	assert.Equal(t, 0.2, analysis.Quality)
	assert.Contains(t, res.Flags, "low_quality_image")
}
