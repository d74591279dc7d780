package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

// ErrEmptyMessage is returned when a chat request carries no text.
var ErrEmptyMessage = errors.New("message must not be empty")

// Completer generates a reply from a system prompt and a user prompt.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Limiter gates outbound calls to the Completer.
type Limiter interface {
	Allow(now time.Time) bool
	Remaining(now time.Time) int
	RetryAfter(now time.Time) time.Duration
	Limit() int
}

// ChatRequest is one user question about the weather in a city.
type ChatRequest struct {
	Message  string
	CityName string
	Weather  *weather.Forecast
}

// ChatReply is what the chat UI renders for a request.
type ChatReply struct {
	ID          string        `json:"id"`
	Success     bool          `json:"success"`
	Response    string        `json:"response,omitempty"`
	Error       string        `json:"error,omitempty"`
	RateLimited bool          `json:"rateLimited"`
	Advisory    string        `json:"advisory,omitempty"`
	Remaining   int           `json:"remaining"`
	RetryAfter  time.Duration `json:"-"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Assistant answers weather questions through a rate-limited Completer.
type Assistant struct {
	completer Completer
	limiter   Limiter
	now       func() time.Time
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithClock overrides the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Assistant) { a.now = now }
}

// New creates an Assistant.
func New(completer Completer, limiter Limiter, opts ...Option) *Assistant {
	a := &Assistant{
		completer: completer,
		limiter:   limiter,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Quota reports the limiter state at the current time.
func (a *Assistant) Quota() (limit, remaining int, retryAfter time.Duration) {
	now := a.now()
	return a.limiter.Limit(), a.limiter.Remaining(now), a.limiter.RetryAfter(now)
}

// Admit validates the message and checks the rate limit. It is the first step
// of a chat request: when ok is false the reply is the rate-limit advisory and
// nothing else, weather lookups included, should run for the request.
func (a *Assistant) Admit(message string) (reply ChatReply, ok bool, err error) {
	if strings.TrimSpace(message) == "" {
		return ChatReply{}, false, ErrEmptyMessage
	}

	now := a.now()
	reply = ChatReply{
		ID:        uuid.NewString(),
		Timestamp: now.UTC(),
	}

	if !a.limiter.Allow(now) {
		reply.RateLimited = true
		reply.Advisory = rateLimitAdvisory(a.limiter.Limit())
		reply.RetryAfter = a.limiter.RetryAfter(now)
		return reply, false, nil
	}
	reply.Remaining = a.limiter.Remaining(now)
	return reply, true, nil
}

// Answer asks the Completer for an admitted request and fills in reply.
// Provider failures are reported in the reply.
func (a *Assistant) Answer(ctx context.Context, reply ChatReply, req ChatRequest) ChatReply {
	msg := strings.TrimSpace(req.Message)

	text, err := a.completer.Complete(ctx, systemPrompt(req.CityName), userPrompt(req.CityName, req.Weather, msg))
	if err != nil {
		log.Printf("ERROR: assistant completion for %q failed: %v", req.CityName, err)
		reply.Error = "error processing the query"
		return reply
	}

	reply.Success = true
	reply.Response = text
	return reply
}

// Ask admits the request and, if allowed, answers it. A rejected check never
// reaches the network; it yields an advisory reply instead. The only error
// returned is ErrEmptyMessage.
func (a *Assistant) Ask(ctx context.Context, req ChatRequest) (ChatReply, error) {
	reply, ok, err := a.Admit(req.Message)
	if err != nil || !ok {
		return reply, err
	}
	return a.Answer(ctx, reply, req), nil
}

func rateLimitAdvisory(limit int) string {
	return fmt.Sprintf("You have exceeded the limit of %d queries per minute. Please wait a moment before trying again.", limit)
}

func systemPrompt(city string) string {
	return fmt.Sprintf("You are a weather expert assistant. Answer questions about the weather in %s using the data provided. Be concise and helpful.", city)
}

func userPrompt(city string, f *weather.Forecast, question string) string {
	na := func(v float64) string {
		if f == nil {
			return "N/A"
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	var c weather.Current
	if f != nil {
		c = f.Current
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current weather in %s:\n", city)
	fmt.Fprintf(&b, "- Temperature: %s°C\n", na(c.Temperature2m))
	fmt.Fprintf(&b, "- Apparent temperature: %s°C\n", na(c.ApparentTemperature))
	fmt.Fprintf(&b, "- Humidity: %s%%\n", na(c.RelativeHumidity2m))
	fmt.Fprintf(&b, "- Wind speed: %s km/h\n", na(c.WindSpeed10m))

	if f != nil && len(f.Hourly.Time) > 0 {
		s := weather.Summarize(*f)
		fmt.Fprintf(&b, "- Next %d hours: %.1f to %.1f°C, mean humidity %.0f%%\n",
			s.Hours, s.Temperature.Min, s.Temperature.Max, s.Humidity.Mean)
	}

	fmt.Fprintf(&b, "\nUser question: %s", question)
	return b.String()
}
