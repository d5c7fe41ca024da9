package rate

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// Discord rate limit headers.
// https://discord.com/developers/docs/topics/rate-limits
const (
	headerRemaining  = "X-RateLimit-Remaining"
	headerReset      = "X-RateLimit-Reset"
	headerResetAfter = "X-RateLimit-Reset-After"
	headerGlobal     = "X-RateLimit-Global"
	headerScope      = "X-RateLimit-Scope"
	headerRetryAfter = "Retry-After"
	headerVia        = "Via"
	headerDate       = "Date"
)

// Kind classifies one response.
type Kind int

const (
	// Success is a 2xx response that left the bucket usable.
	Success Kind = iota
	// BucketExhausted is a 2xx response that also used the last call of its bucket.
	BucketExhausted
	// RateLimited is a 429 scoped to the request's bucket.
	RateLimited
	// GlobalLimited is a 429 that applies to the whole account.
	GlobalLimited
	// TransientFault is a server fault worth retrying (500, 502).
	TransientFault
	// ClientError is any non-retryable 4xx or unexpected status.
	ClientError
	// ServerError is a non-retryable 5xx.
	ServerError
	// Blocked is a 429 that did not come from the API itself.
	Blocked
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case BucketExhausted:
		return "bucket_exhausted"
	case RateLimited:
		return "rate_limited"
	case GlobalLimited:
		return "global_limited"
	case TransientFault:
		return "transient_fault"
	case ClientError:
		return "client_error"
	case ServerError:
		return "server_error"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Outcome is the interpretation of one response.
type Outcome struct {
	Kind       Kind
	Status     int
	RetryAfter time.Duration // wait before retrying, for RateLimited and GlobalLimited
	Cooldown   time.Duration // bucket reset delay when the response drained the bucket
}

// Options controls how reset headers are read.
type Options struct {
	// UseClock computes reset delays from the absolute reset timestamp
	// instead of the relative reset-after value.
	UseClock bool
	// CompensateSkew measures absolute reset timestamps against the server's
	// Date header instead of the local clock.
	CompensateSkew bool
}

// Interpreter turns HTTP responses into outcomes.
type Interpreter struct {
	opts Options
	now  func() time.Time
}

// NewInterpreter creates an interpreter with the given options.
func NewInterpreter(opts Options) *Interpreter {
	return &Interpreter{opts: opts, now: time.Now}
}

type rateLimitBody struct {
	RetryAfter *float64 `json:"retry_after"`
	Global     bool     `json:"global"`
}

// Interpret classifies a response from its status, headers and raw body.
func (i *Interpreter) Interpret(status int, header http.Header, body []byte) Outcome {
	out := Outcome{Status: status}

	if status != http.StatusTooManyRequests && header.Get(headerRemaining) == "0" {
		out.Cooldown = i.resetDelay(header)
	}

	switch {
	case status >= 200 && status < 300:
		out.Kind = Success
		if out.Cooldown > 0 {
			out.Kind = BucketExhausted
		}

	case status == http.StatusTooManyRequests:
		// Without Via the 429 came from an edge proxy, not the API
		if header.Get(headerVia) == "" {
			out.Kind = Blocked
			return out
		}

		var data rateLimitBody
		_ = sonic.Unmarshal(body, &data)

		out.RetryAfter = i.retryAfter(data, header)
		out.Kind = RateLimited
		if data.Global || isGlobalHeader(header) {
			out.Kind = GlobalLimited
		}

	case status == http.StatusInternalServerError || status == http.StatusBadGateway:
		out.Kind = TransientFault

	case status >= 500:
		out.Kind = ServerError

	default:
		out.Kind = ClientError
	}

	return out
}

// retryAfter reads the 429 wait from the body in milliseconds,
// falling back to the Retry-After header in seconds.
func (i *Interpreter) retryAfter(data rateLimitBody, header http.Header) time.Duration {
	if data.RetryAfter != nil {
		return clamp(time.Duration(*data.RetryAfter * float64(time.Millisecond)))
	}

	if secs, err := strconv.ParseFloat(header.Get(headerRetryAfter), 64); err == nil {
		return clamp(time.Duration(secs * float64(time.Second)))
	}

	return i.resetDelay(header)
}

// resetDelay returns how long until the bucket refills.
func (i *Interpreter) resetDelay(header http.Header) time.Duration {
	resetAfter := header.Get(headerResetAfter)
	if !i.opts.UseClock && resetAfter != "" {
		if secs, err := strconv.ParseFloat(resetAfter, 64); err == nil {
			return clamp(time.Duration(secs * float64(time.Second)))
		}
	}

	reset, err := strconv.ParseFloat(header.Get(headerReset), 64)
	if err != nil {
		// Fall back to the relative value even when the clock was requested
		if secs, err := strconv.ParseFloat(resetAfter, 64); err == nil {
			return clamp(time.Duration(secs * float64(time.Second)))
		}
		return 0
	}

	now := i.now()
	if i.opts.CompensateSkew {
		if date, err := http.ParseTime(header.Get(headerDate)); err == nil {
			now = date
		}
	}

	sec, frac := math.Modf(reset)
	resetAt := time.Unix(int64(sec), int64(frac*float64(time.Second)))
	return clamp(resetAt.Sub(now))
}

func isGlobalHeader(header http.Header) bool {
	return strings.EqualFold(header.Get(headerGlobal), "true") ||
		strings.EqualFold(header.Get(headerScope), "global")
}

func clamp(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
