package cyclinganalytics

import (
	"bytes"
	"net/http"
	"strings"

	httputil "github.com/flowtrack/server/pkg/infrastructure/http"
)

// OutcomeKind tags the result of an upload.
type OutcomeKind int

const (
	OutcomeFailure OutcomeKind = iota
	OutcomeSuccess
	OutcomeDuplicate
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "failure"
	}
}

// UploadOutcome is the classified answer to an upload. ExistingID is set
// only for OutcomeDuplicate.
type UploadOutcome struct {
	Kind       OutcomeKind
	StatusCode int
	Body       []byte
	ExistingID string
}

// duplicateMarker is the error code Cycling Analytics returns for a ride it
// already holds.
const duplicateMarker = "duplicate_ride"

// MinRecordIDDigits is the length a digit run must exceed to be taken for a
// ride id.
const MinRecordIDDigits = 5

func classifyUpload(status int, body []byte) *UploadOutcome {
	out := &UploadOutcome{StatusCode: status, Body: body}

	switch {
	case httputil.IsSuccess(status):
		out.Kind = OutcomeSuccess
	case status == http.StatusBadRequest && bytes.Contains(body, []byte(duplicateMarker)):
		if id, ok := ExtractRecordID(string(body)); ok {
			out.Kind = OutcomeDuplicate
			out.ExistingID = id
		}
	}
	return out
}

// ExtractRecordID picks the existing ride id out of a duplicate_ride error
// body. This is a heuristic: the body has no dedicated id field, so it takes
// the longest run of digits longer than MinRecordIDDigits, preferring the
// last such run on a tie.
func ExtractRecordID(body string) (string, bool) {
	best := ""
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		run := body[start:end]
		if len(run) > MinRecordIDDigits && len(run) >= len(best) {
			best = run
		}
		start = -1
	}

	for i := 0; i < len(body); i++ {
		if body[i] >= '0' && body[i] <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(body))

	return best, best != ""
}

// buildMultipartBody lays out the upload form byte for byte. The service is
// strict about part order and headers, so mime/multipart is not used.
func buildMultipartBody(boundary, name string, csv []byte) []byte {
	var b strings.Builder
	b.Grow(len(csv) + 256)

	b.WriteString("--" + boundary + "\r\n")
	b.WriteString(`Content-Disposition: form-data; name="data"; filename="` + name + `.csv"` + "\r\n")
	b.WriteString("Content-Type: text/csv\r\n\r\n")
	b.Write(csv)
	b.WriteString("\r\n")

	b.WriteString("--" + boundary + "\r\n")
	b.WriteString(`Content-Disposition: form-data; name="format"` + "\r\n\r\n")
	b.WriteString("csv\r\n")

	b.WriteString("--" + boundary + "--\r\n")
	return []byte(b.String())
}
