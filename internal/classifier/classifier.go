package classifier

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"pulse/internal/models"
	"pulse/pkg/llm"
)

// Result is the outcome of one classification call. It is produced fresh
// every time and never cached across snapshots.
type Result struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

const systemPrompt = "You are an emotion detector. Reply with a single JSON object " +
	`{"label": "<emotion>", "confidence": <0..1>} where <emotion> is exactly one of: ` +
	"happy, sad, anxious, angry, calm, tired, neutral. Do not explain."

// Classifier turns raw text into an emotion label with a confidence score.
// The primary path is one model call; on any failure it degrades to the
// keyword heuristic. Classify never returns an error.
type Classifier struct {
	client  llm.Client
	model   string
	timeout time.Duration
	logger  *logrus.Logger
}

// New builds a classifier. client may be nil, in which case only the
// heuristic path runs.
func New(client llm.Client, model string, logger *logrus.Logger) *Classifier {
	return &Classifier{
		client:  client,
		model:   model,
		timeout: 15 * time.Second,
		logger:  logger,
	}
}

// Classify returns the emotion for text. Empty or whitespace-only input
// short-circuits to neutral without touching the model.
func (c *Classifier) Classify(ctx context.Context, text string) Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{Label: models.EmotionNeutral, Confidence: 0.5}
	}

	if c.client != nil {
		if res, ok := c.classifyWithModel(ctx, trimmed); ok {
			return res
		}
	}
	return heuristic(trimmed)
}

func (c *Classifier) classifyWithModel(ctx context.Context, text string) (Result, bool) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply, err := c.client.Complete(cctx, c.model, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: text},
	}, llm.Options{Temperature: 0, MaxTokens: 40})
	if err != nil {
		c.logger.WithError(err).Debug("model classification failed, using heuristic")
		return Result{}, false
	}

	res, err := parseModelReply(reply)
	if err != nil {
		c.logger.WithError(err).Debug("unparseable classification reply, using heuristic")
		return Result{}, false
	}
	return res, true
}

// parseModelReply extracts the JSON object from the model reply, tolerating
// surrounding prose or code fences.
func parseModelReply(reply string) (Result, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return Result{}, errNoJSON
	}

	var res Result
	if err := json.Unmarshal([]byte(reply[start:end+1]), &res); err != nil {
		return Result{}, err
	}
	res.Label = strings.ToLower(strings.TrimSpace(res.Label))
	if !models.ValidEmotion(res.Label) {
		return Result{}, errBadLabel
	}
	if res.Confidence < 0 {
		res.Confidence = 0
	}
	if res.Confidence > 1 {
		res.Confidence = 1
	}
	return res, nil
}

var (
	errNoJSON   = jsonError("no JSON object in reply")
	errBadLabel = jsonError("label outside the closed set")
)

type jsonError string

func (e jsonError) Error() string { return string(e) }
