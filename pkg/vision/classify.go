package vision

import (
	"encoding/json"
	"net/http"
	"strings"
)

// SubmitKind identifies the classified shape of a submit response.
type SubmitKind int

const (
	// SubmitSync means the response already carries completed assets.
	SubmitSync SubmitKind = iota

	// SubmitPolling means the response carries a job handle to poll.
	SubmitPolling

	// SubmitRemoteError means the service explicitly rejected the request.
	SubmitRemoteError

	// SubmitUnknownShape means the response matched no recognized schema.
	SubmitUnknownShape
)

// SubmitOutcome is the classified result of one submit call. Exactly one
// of the payload fields is meaningful, selected by Kind. Downstream code
// never re-inspects the raw response.
type SubmitOutcome struct {
	Kind      SubmitKind
	Assets    []AssetResult
	Errors    []string
	JobHandle string
	Message   string

	// Raw holds the response body for UnknownShape diagnostics.
	Raw json.RawMessage
}

// PollKind identifies the classified shape of a poll response.
type PollKind int

const (
	// PollDone means the job finished and assets are available.
	PollDone PollKind = iota

	// PollWorking means the job is still queued or processing.
	PollWorking

	// PollFailed means the job terminated with errors and no assets.
	PollFailed

	// PollUnknownShape means the response matched no recognized schema.
	PollUnknownShape
)

// PollOutcome is the classified result of one poll call.
type PollOutcome struct {
	Kind   PollKind
	Assets []AssetResult
	Errors []string

	// Raw holds the response body for UnknownShape diagnostics.
	Raw json.RawMessage
}

// statusStillWorking reports whether a job status string means the job
// has not finished yet.
func statusStillWorking(status string) bool {
	switch strings.ToLower(status) {
	case "queued", "processing", "pending", "running":
		return true
	}
	return false
}

// ClassifySubmit decides the shape of a submit response body. The
// decision is made exactly once here; callers branch on Kind only.
func ClassifySubmit(statusCode int, body []byte) SubmitOutcome {
	var resp serviceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return SubmitOutcome{Kind: SubmitUnknownShape, Raw: json.RawMessage(body)}
	}

	switch {
	case resp.Error != "" || resp.Message != "":
		msg := resp.Error
		if msg == "" {
			msg = resp.Message
		}
		return SubmitOutcome{Kind: SubmitRemoteError, Message: msg}
	case len(resp.Assets) > 0:
		return SubmitOutcome{Kind: SubmitSync, Assets: resp.Assets, Errors: resp.Errors}
	case resp.Job != "":
		return SubmitOutcome{Kind: SubmitPolling, JobHandle: resp.Job}
	case statusCode >= 400:
		return SubmitOutcome{Kind: SubmitRemoteError, Message: http.StatusText(statusCode)}
	default:
		return SubmitOutcome{Kind: SubmitUnknownShape, Raw: json.RawMessage(body)}
	}
}

// ClassifyPoll decides the shape of a poll response. An HTTP 202 is a
// transport-level "still working" signal equivalent to a queued status.
func ClassifyPoll(statusCode int, body []byte) PollOutcome {
	if statusCode == http.StatusAccepted {
		return PollOutcome{Kind: PollWorking}
	}

	var resp serviceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return PollOutcome{Kind: PollUnknownShape, Raw: json.RawMessage(body)}
	}

	switch {
	case len(resp.Assets) > 0:
		return PollOutcome{Kind: PollDone, Assets: resp.Assets, Errors: resp.Errors}
	case len(resp.Errors) > 0:
		return PollOutcome{Kind: PollFailed, Errors: resp.Errors}
	case resp.Error != "" || resp.Message != "":
		msg := resp.Error
		if msg == "" {
			msg = resp.Message
		}
		return PollOutcome{Kind: PollFailed, Errors: []string{msg}}
	case statusStillWorking(resp.Status):
		return PollOutcome{Kind: PollWorking}
	default:
		return PollOutcome{Kind: PollUnknownShape, Raw: json.RawMessage(body)}
	}
}
