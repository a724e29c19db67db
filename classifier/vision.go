package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/snap-point/moderation-api/config"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

// VisionAnnotation is what a vision backend reports for one image.
type VisionAnnotation struct {
	Adult    float64  `json:"adult"`
	Violence float64  `json:"violence"`
	Racy     float64  `json:"racy"`
	Medical  float64  `json:"medical"`
	Spoof    float64  `json:"spoof"`
	Labels   []string `json:"labels"`
	Faces    int      `json:"faces"`
	Text     string   `json:"text,omitempty"`
	Quality  float64  `json:"quality"`
}

// VisionClient annotates a single image URL.
type VisionClient interface {
	Annotate(ctx context.Context, imageURL string) (*VisionAnnotation, error)
}

// HeuristicVision annotates images from the tokens of their URL path. It is
// the offline backend used when no vision API is configured.
type HeuristicVision struct{}

var heuristicSignals = map[string]func(a *VisionAnnotation){
	"nsfw":     func(a *VisionAnnotation) { a.Adult += 0.9; a.Labels = append(a.Labels, "explicit") },
	"nude":     func(a *VisionAnnotation) { a.Adult += 0.85; a.Labels = append(a.Labels, "nudity") },
	"explicit": func(a *VisionAnnotation) { a.Adult += 0.8; a.Labels = append(a.Labels, "explicit") },
	"bikini":   func(a *VisionAnnotation) { a.Racy += 0.6 },
	"racy":     func(a *VisionAnnotation) { a.Racy += 0.7 },
	"gore":     func(a *VisionAnnotation) { a.Violence += 0.9; a.Labels = append(a.Labels, "blood") },
	"blood":    func(a *VisionAnnotation) { a.Violence += 0.6; a.Labels = append(a.Labels, "blood") },
	"gun":      func(a *VisionAnnotation) { a.Violence += 0.5; a.Labels = append(a.Labels, "weapon") },
	"weapon":   func(a *VisionAnnotation) { a.Violence += 0.5; a.Labels = append(a.Labels, "weapon") },
	"surgery":  func(a *VisionAnnotation) { a.Medical += 0.7 },
	"meme":     func(a *VisionAnnotation) { a.Spoof += 0.5 },
	"fake":     func(a *VisionAnnotation) { a.Spoof += 0.6 },
	"blurry":   func(a *VisionAnnotation) { a.Quality = 0.1 },
	"thumb":    func(a *VisionAnnotation) { a.Quality = 0.2 },
	"face":     func(a *VisionAnnotation) { a.Faces++ },
	"selfie":   func(a *VisionAnnotation) { a.Faces++ },
}

func (HeuristicVision) Annotate(ctx context.Context, imageURL string) (*VisionAnnotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := url.Parse(imageURL)
	if err != nil {
		return nil, err
	}
	a := &VisionAnnotation{Quality: 0.8}
	name := strings.TrimSuffix(path.Base(u.Path), path.Ext(u.Path))
	for _, tok := range Tokenize(strings.NewReplacer("-", " ", "_", " ", ".", " ").Replace(name)) {
		if apply, ok := heuristicSignals[tok]; ok {
			apply(a)
		}
	}
	a.Adult = clamp01(a.Adult)
	a.Violence = clamp01(a.Violence)
	a.Racy = clamp01(a.Racy)
	a.Medical = clamp01(a.Medical)
	a.Spoof = clamp01(a.Spoof)
	return a, nil
}

// HTTPVisionClient calls a remote vision API authenticated with OAuth2 client
// credentials. Outbound calls are rate limited and guarded by a circuit breaker.
type HTTPVisionClient struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	log      *zap.Logger
}

func NewHTTPVisionClient(cfg config.VisionConfig, log *zap.Logger) *HTTPVisionClient {
	log = log.Named("vision")
	httpClient := &http.Client{Timeout: 10 * time.Second}
	if cfg.ClientID != "" && cfg.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		httpClient = cc.Client(context.Background())
		httpClient.Timeout = 10 * time.Second
	}

	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 10
	}
	burst := int(perSec)
	if burst < 1 {
		burst = 1
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "vision-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &HTTPVisionClient{
		endpoint: cfg.APIURL,
		http:     httpClient,
		limiter:  rate.NewLimiter(rate.Limit(perSec), burst),
		breaker:  breaker,
		log:      log,
	}
}

func (c *HTTPVisionClient) Annotate(ctx context.Context, imageURL string) (*VisionAnnotation, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("vision rate limit: %w", err)
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.annotate(ctx, imageURL)
	})
	if err != nil {
		return nil, err
	}
	return out.(*VisionAnnotation), nil
}

func (c *HTTPVisionClient) annotate(ctx context.Context, imageURL string) (*VisionAnnotation, error) {
	body, err := json.Marshal(map[string]string{"imageUrl": imageURL})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vision api returned %d", resp.StatusCode)
	}

	var a VisionAnnotation
	if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
		return nil, fmt.Errorf("decoding vision response: %w", err)
	}
	return &a, nil
}
