package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"listen/encoder"
)

const (
	GroqBaseURL   = "https://api.groq.com/openai/v1"
	OpenAIBaseURL = "https://api.openai.com/v1"
)

// OpenAI talks to any server implementing the OpenAI audio transcription
// endpoint with verbose_json output. Groq is the default.
type OpenAI struct {
	client  *TracedClient
	baseURL string
	apiKey  string
	model   string
	format  encoder.Format
}

func NewOpenAI(baseURL, apiKey, model string, format encoder.Format) *OpenAI {
	if baseURL == "" {
		baseURL = GroqBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if model == "" {
		model = defaultRemoteModel(baseURL)
	}
	return &OpenAI{
		client:  NewTracedClient(2 * time.Minute),
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		format:  format,
	}
}

func defaultRemoteModel(baseURL string) string {
	if strings.Contains(baseURL, "api.openai.com") {
		return "whisper-1"
	}
	return "whisper-large-v3-turbo"
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Model() string { return o.model }

func (o *OpenAI) Warm(ctx context.Context) error {
	return o.client.Warm(ctx, o.baseURL)
}

type verboseResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text         string  `json:"text"`
		Start        float64 `json:"start"`
		End          float64 `json:"end"`
		NoSpeechProb float64 `json:"no_speech_prob"`
		AvgLogProb   float64 `json:"avg_logprob"`
	} `json:"segments"`
}

func (o *OpenAI) Infer(ctx context.Context, wav []byte, lang string) (*Inference, error) {
	data, stats, err := encoder.Encode(o.format, wav)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "audio."+string(o.format))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	writer.WriteField("model", o.model)
	writer.WriteField("response_format", "verbose_json")
	if lang != "" {
		writer.WriteField("language", lang)
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, strings.TrimSpace(string(resp.Body)))
	}

	var vr verboseResponse
	if err := json.Unmarshal(resp.Body, &vr); err != nil {
		return nil, fmt.Errorf("response parse error: %w", err)
	}

	inf := &Inference{
		Language:  normalizeLanguage(vr.Language),
		Duration:  vr.Duration,
		Network:   resp.Metrics,
		RateLimit: firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests") + "/" + firstNonEmpty(resp.Header, "x-ratelimit-limit-requests"),
		Format:    o.format,
		Upload:    stats,
	}
	if inf.Language == "" {
		inf.Language = lang
	}
	if len(vr.Segments) == 0 {
		inf.Segments = []Segment{{Text: vr.Text}}
		inf.Confidence = 1
		if vr.Text == "" {
			inf.Confidence = 0
		}
		return inf, nil
	}

	var logProbSum float64
	for _, seg := range vr.Segments {
		logProbSum += seg.AvgLogProb
		inf.Segments = append(inf.Segments, Segment{
			Text:         seg.Text,
			Start:        seg.Start,
			End:          seg.End,
			AvgLogProb:   seg.AvgLogProb,
			NoSpeechProb: seg.NoSpeechProb,
		})
	}
	inf.Confidence = math.Exp(logProbSum / float64(len(vr.Segments)))
	return inf, nil
}

var languageCodes = map[string]string{
	"english": "en", "spanish": "es", "french": "fr", "german": "de",
	"italian": "it", "portuguese": "pt", "dutch": "nl", "russian": "ru",
	"chinese": "zh", "japanese": "ja", "korean": "ko", "turkish": "tr",
	"polish": "pl", "ukrainian": "uk", "arabic": "ar", "hindi": "hi",
}

// normalizeLanguage maps the full language names some servers return to
// ISO 639-1 codes.
func normalizeLanguage(lang string) string {
	l := strings.ToLower(strings.TrimSpace(lang))
	if code, ok := languageCodes[l]; ok {
		return code
	}
	return l
}
