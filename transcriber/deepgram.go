package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"listen/encoder"
)

const DeepgramBaseURL = "https://api.deepgram.com"

type Deepgram struct {
	client  *TracedClient
	baseURL string
	apiKey  string
	model   string
	format  encoder.Format
}

func NewDeepgram(baseURL, apiKey, model string, format encoder.Format) *Deepgram {
	if baseURL == "" {
		baseURL = DeepgramBaseURL
	}
	if model == "" {
		model = "nova-3"
	}
	return &Deepgram{
		client:  NewTracedClient(2 * time.Minute),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		format:  format,
	}
}

func (d *Deepgram) Name() string { return "deepgram" }

func (d *Deepgram) Model() string { return d.model }

func (d *Deepgram) Warm(ctx context.Context) error {
	return d.client.Warm(ctx, d.baseURL)
}

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			DetectedLanguage   string  `json:"detected_language"`
			LanguageConfidence float64 `json:"language_confidence"`
			Alternatives       []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (d *Deepgram) listenURL(lang string) string {
	q := url.Values{}
	q.Set("model", d.model)
	q.Set("smart_format", "true")
	if lang != "" {
		q.Set("language", lang)
	} else {
		q.Set("detect_language", "true")
	}
	return d.baseURL + "/v1/listen?" + q.Encode()
}

func (d *Deepgram) Infer(ctx context.Context, wav []byte, lang string) (*Inference, error) {
	data, stats, err := encoder.Encode(d.format, wav)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.listenURL(lang), bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", d.format.ContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deepgram API error %d: %s", resp.StatusCode, strings.TrimSpace(string(resp.Body)))
	}

	var dg deepgramResponse
	if err := json.Unmarshal(resp.Body, &dg); err != nil {
		return nil, fmt.Errorf("deepgram response parse error: %w", err)
	}

	remaining := firstNonEmpty(resp.Header, "x-dg-ratelimit-remaining", "x-ratelimit-remaining", "ratelimit-remaining")
	limit := firstNonEmpty(resp.Header, "x-dg-ratelimit-limit", "x-ratelimit-limit", "ratelimit-limit")

	inf := &Inference{
		Language:  lang,
		Duration:  dg.Metadata.Duration,
		Network:   resp.Metrics,
		RateLimit: remaining + "/" + limit,
		Format:    d.format,
		Upload:    stats,
	}
	if len(dg.Results.Channels) == 0 {
		return inf, nil
	}
	ch := dg.Results.Channels[0]
	if ch.DetectedLanguage != "" {
		inf.Language = ch.DetectedLanguage
	}
	if len(ch.Alternatives) > 0 {
		alt := ch.Alternatives[0]
		inf.Segments = []Segment{{Text: alt.Transcript, End: inf.Duration}}
		inf.Confidence = alt.Confidence
	}
	if ch.LanguageConfidence > 0 {
		inf.Confidence = ch.LanguageConfidence
	}
	return inf, nil
}
