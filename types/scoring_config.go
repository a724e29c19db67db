package types

import "time"

const (
	DEFAULT_CLASSIFIER_TIMEOUT = 5 * time.Second
	DEFAULT_BULK_BATCH_SIZE    = 10
	DEFAULT_IMAGE_BATCH_SIZE   = 5
	DEFAULT_BULK_BATCH_DELAY   = time.Second
	DEFAULT_IMAGE_BATCH_DELAY  = 500 * time.Millisecond

	REPORT_DEDUP_WINDOW   = 24 * time.Hour
	USER_HISTORY_WINDOW   = 30 * 24 * time.Hour
	DUPLICATE_WINDOW      = 7 * 24 * time.Hour
	DEFAULT_SUSPENSION    = 7 * 24 * time.Hour
	NEW_USER_RISK_SCORE   = 0.1
	HIGH_USER_RISK_SCORE  = 0.7
	USER_RISK_REJECT_RATE = 0.6
	USER_RISK_SEVERE_RATE = 0.4
)

// TextWeights are the per-category contributions to the text risk score.
type TextWeights struct {
	Toxicity     float64
	Profanity    float64
	Spam         float64
	Hate         float64
	Harassment   float64
	Violence     float64
	Sexual       float64
	Drugs        float64
	Gambling     float64
	PersonalInfo float64
}

func GetTextWeights() TextWeights {
	return TextWeights{
		Violence:     0.30,
		Hate:         0.25,
		Harassment:   0.20,
		Toxicity:     0.20,
		PersonalInfo: 0.20,
		Profanity:    0.15,
		Sexual:       0.15,
		Spam:         0.10,
		Drugs:        0.10,
		Gambling:     0.05,
	}
}

type ImageWeights struct {
	Adult    float64
	Violence float64
	Racy     float64
	Medical  float64
	Spoof    float64

	LowQualityPenalty      float64
	SuspiciousLabelPenalty float64
	SuspiciousTextPenalty  float64
}

func GetImageWeights() ImageWeights {
	return ImageWeights{
		Adult:    0.4,
		Violence: 0.3,
		Racy:     0.2,
		Medical:  0.1,
		Spoof:    0.1,

		LowQualityPenalty:      0.2,
		SuspiciousLabelPenalty: 0.3,
		SuspiciousTextPenalty:  0.2,
	}
}

type QualityWeights struct {
	Readability float64
	Coherence   float64
	Relevance   float64
	Originality float64
	Engagement  float64
	Length      float64
	Structure   float64

	OffTopicPenalty     float64
	CommercialPenalty   float64
	UnoriginalPenalty   float64
	MinimumContentScore float64
}

func GetQualityWeights() QualityWeights {
	return QualityWeights{
		Readability: 0.15,
		Coherence:   0.15,
		Relevance:   0.20,
		Originality: 0.20,
		Engagement:  0.10,
		Length:      0.10,
		Structure:   0.10,

		OffTopicPenalty:     0.7,
		CommercialPenalty:   0.8,
		UnoriginalPenalty:   0.5,
		MinimumContentScore: 0.3,
	}
}

// LengthWindow is the optimal word-count window per content type.
type LengthWindow struct {
	Min int
	Max int
}

func GetLengthWindows() map[ContentType]LengthWindow {
	return map[ContentType]LengthWindow{
		ContentTypePost:    {Min: 20, Max: 500},
		ContentTypeComment: {Min: 3, Max: 150},
		ContentTypeMessage: {Min: 1, Max: 300},
		ContentTypeProfile: {Min: 5, Max: 160},
		ContentTypeImage:   {Min: 0, Max: 100},
	}
}

// GetImageExtensions is the allow-list for image URLs.
func GetImageExtensions() []string {
	return []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".heic", ".bmp"}
}

func GetSuspiciousImageLabels() []string {
	return []string{"weapon", "blood", "explicit", "nudity", "inappropriate"}
}
