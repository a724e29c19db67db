package classifier

import (
	"context"
	"testing"

	"github.com/snap-point/moderation-api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestQualityGoodPost(t *testing.T) {
	text := "We visited the old city museum last weekend with friends. " +
		"The museum has a lovely park next to it and a small cafe with great food. " +
		"I would recommend the sunset walk along the river. What is your favorite place in the city?"

	qa := NewQualityAnalyzer(zap.NewNop())
	res, a, err := qa.Analyze(context.Background(), text, types.ContentTypePost)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.True(t, a.Original)
	assert.False(t, a.Commercial)
	assert.False(t, a.OffTopic)
	assert.GreaterOrEqual(t, a.ContentScore, 0.3)
	assert.True(t, res.IsApproved)
	assert.False(t, res.RequiresHumanReview)
	assert.Equal(t, 0.8, res.Confidence)
}

func TestQualitySpammyCommercial(t *testing.T) {
	text := "buy buy buy now sale sale sale discount discount click here click here buy now buy now"

	qa := NewQualityAnalyzer(zap.NewNop())
	res, a, err := qa.Analyze(context.Background(), text, types.ContentTypeComment)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.True(t, a.Commercial)
	assert.False(t, a.Original)
	assert.True(t, res.RequiresHumanReview)
	assert.Contains(t, res.Flags, "unoriginal_content")
	assert.Contains(t, res.Flags, "commercial_content")
}

func TestQualityBlankText(t *testing.T) {
	res, a, err := NewQualityAnalyzer(zap.NewNop()).Analyze(context.Background(), " ", types.ContentTypePost)
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.True(t, res.IsApproved)
}

func TestQualityLengthBuckets(t *testing.T) {
	qa := NewQualityAnalyzer(zap.NewNop())
	assert.Equal(t, 1.0, qa.lengthScore(50, types.ContentTypePost))
	assert.Equal(t, 0.5, qa.lengthScore(12, types.ContentTypePost))
	assert.Equal(t, 0.2, qa.lengthScore(3, types.ContentTypePost))
	assert.Equal(t, 0.6, qa.lengthScore(700, types.ContentTypePost))
	assert.Equal(t, 0.3, qa.lengthScore(2000, types.ContentTypePost))
}

func TestQualityStructurePenalties(t *testing.T) {
	assert.Equal(t, 1.0, structure("Hello there.", 2))
	assert.InDelta(t, 0.6, structure("hello there", 2), 1e-9)
	assert.InDelta(t, 0.7, structure("HELLO THERE!", 2), 1e-9)
}

var travelTopics = []string{"place", "visit", "travel", "trip", "city", "museum", "beach", "food"}

func TestQualityOffTopicPenalty(t *testing.T) {
	qa := NewQualityAnalyzer(zap.NewNop(), WithTopicKeywords(travelTopics))
	text := "Quarterly spreadsheets require careful reconciliation of ledger entries before submitting " +
		"reports to accounting, otherwise auditors flag discrepancies and deadlines slip considerably."
	a := qa.Score(text, types.ContentTypePost)
	assert.True(t, a.OffTopic)
	assert.Zero(t, a.Scores.Relevance)
}

func TestQualityWithoutTopicsNothingIsOffTopic(t *testing.T) {
	text := "Finished my first marathon this morning in just under four hours. The last six miles " +
		"were brutal but the crowd kept me going and my training plan held up better than expected."

	res, a, err := NewQualityAnalyzer(zap.NewNop()).Analyze(context.Background(), text, types.ContentTypePost)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.GreaterOrEqual(t, a.WordCount, 20)
	assert.False(t, a.OffTopic)
	assert.Equal(t, 1.0, a.Scores.Relevance)
	assert.NotContains(t, res.Flags, "off_topic")

	scored := NewQualityAnalyzer(zap.NewNop(), WithTopicKeywords([]string{" Marathon ", "training"})).Score(text, types.ContentTypePost)
	a = &scored
	assert.False(t, a.OffTopic)
	assert.Greater(t, a.Scores.Relevance, 0.0)
}
