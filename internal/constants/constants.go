package constants

import "time"

// SystemPrompt is sent as the system message on every advice request.
const SystemPrompt = `You are a decision assistant for Slay the Spire.
You receive a JSON snapshot of the current game state and answer with a single JSON object.

## Rules
- Output ONLY the JSON object. No prose before or after it. No markdown.
- Follow the output schema exactly. Unknown fields are ignored.
- Base every recommendation on the snapshot. Do not invent cards, relics or enemies.
- "confidence" is a number between 0 and 1.
- Keep "summary" under 200 characters.`

// CombatPromptAddendum tightens the output for in-combat advice, where the
// panel has little room and turns are short.
const CombatPromptAddendum = `
## Combat
- "title" under 40 characters, "action" under 120, "reason" under 160.
- Describe a full line of play for this turn in "action" (card order, targets).
- Account for monster intents and current block before spending energy.`

// DefaultSnapshotMaxBytes is the byte budget for a serialized snapshot.
const DefaultSnapshotMaxBytes = 8000

// DefaultSnapshotMinInterval throttles non-forced snapshot refreshes.
const DefaultSnapshotMinInterval = 200 * time.Millisecond

// PromptSnapshotMaxChars caps the snapshot JSON embedded in the user prompt.
const PromptSnapshotMaxChars = 7800

// PromptTruncatedSuffix marks a snapshot cut to PromptSnapshotMaxChars.
const PromptTruncatedSuffix = "...(truncated)"

// RawResponseMaxChars caps raw reply text kept for debugging.
const RawResponseMaxChars = 4000

// DigestShortLen is how many hex digits of the digest appear in status lines.
const DigestShortLen = 8

// CombatHandMaxPolls bounds how long the trigger engine waits for a hand to be dealt.
const CombatHandMaxPolls = 12

// DefaultDebounce applies to contexts without their own interval.
const DefaultDebounce = 3 * time.Second

// DefaultRequestTimeout applies to connect and read phases of one remote call.
const DefaultRequestTimeout = 12 * time.Second

// DefaultMaxTokens is the default completion budget.
const DefaultMaxTokens = 512

// DefaultTemperature is the default sampling temperature.
const DefaultTemperature = 0.2

// DefaultOpenAIBaseURL is used when no endpoint is configured.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// DefaultOpenAIModel is the default OpenAI-compatible model.
const DefaultOpenAIModel = "gpt-4o-mini"

// DefaultGeminiBaseURL is the Gemini API root.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/"

// DefaultGeminiModel is the default Gemini model.
const DefaultGeminiModel = "gemini-2.0-flash"

// CurlMinRetryTimeout is the floor for the long-timeout curl retry, in seconds.
const CurlMinRetryTimeout = 20

// CurlExitTimeout is curl's "operation timed out" exit code.
const CurlExitTimeout = 28

// CurlExitSSLConnect is curl's "SSL connect error" exit code.
const CurlExitSSLConnect = 35

// CurlKillGrace is added to the curl --max-time before the process is killed.
const CurlKillGrace = 2 * time.Second

// DefaultRecommendationConfidence fills in a missing confidence.
const DefaultRecommendationConfidence = 0.5

// TickInterval is how often the UI polls the engine.
const TickInterval = 100 * time.Millisecond

// MinEventBusBufferSize is the minimum buffer per subscriber channel.
const MinEventBusBufferSize = 1000

// RecentAdviceLimit is how many advice log rows the history view shows.
const RecentAdviceLimit = 20

// EventBusPublishTimeout bounds PublishBlocking for events that must not be dropped.
const EventBusPublishTimeout = 200 * time.Millisecond

// ResultBufferSize is the orchestrator's completion queue depth.
const ResultBufferSize = 4

// WorkerStopTimeout bounds how long Close waits for the worker to exit.
const WorkerStopTimeout = 5 * time.Second

// AdviceLogRetention is how many advice log rows survive the prune on startup.
const AdviceLogRetention = 500

// ProviderTestTimeout bounds the -test-provider round trip.
const ProviderTestTimeout = 60 * time.Second
