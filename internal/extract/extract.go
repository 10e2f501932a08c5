// Package extract turns the model's final turn into structured data.
//
// [Parse] decodes the JSON summary a conversation ends with. [ParseVerdict]
// reads the labelled-line format used when grading a submitted answer.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MrWong99/odab/pkg/provider/llm"
)

// ErrMalformed is matched by every [MalformedError].
var ErrMalformed = errors.New("extract: malformed result")

// MalformedError reports a final turn that does not decode into a
// [StructuredResult]. Raw holds the input unmodified.
type MalformedError struct {
	Raw string
	Err error
}

// Error implements error.
func (e *MalformedError) Error() string {
	return fmt.Sprintf("extract: malformed result: %v", e.Err)
}

// Unwrap returns the decode failure.
func (e *MalformedError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrMalformed) hold.
func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }

// StructuredResult is the summary the model returns at the end of a run.
type StructuredResult struct {
	ProblemText string   `json:"question"`
	Steps       []string `json:"steps"`
	Answer      string   `json:"answer"`
	ConceptTags []string `json:"concept"`
}

// wireResult distinguishes absent keys from zero values.
type wireResult struct {
	Question *string           `json:"question"`
	Steps    *[]json.RawMessage `json:"steps"`
	Answer   *string           `json:"answer"`
	Concept  *[]json.RawMessage `json:"concept"`
}

// Parse decodes text as a StructuredResult. All four keys must be present
// with the right type; extra keys are ignored. Concept ids may be JSON strings
// or integers. A surrounding markdown code fence is tolerated. Step and
// concept counts are not checked.
func Parse(text string) (StructuredResult, error) {
	fail := func(err error) (StructuredResult, error) {
		return StructuredResult{}, &MalformedError{Raw: text, Err: err}
	}

	body := stripFence(text)
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()

	var w wireResult
	if err := dec.Decode(&w); err != nil {
		return fail(err)
	}
	if dec.More() {
		return fail(errors.New("trailing data after JSON object"))
	}

	var missing []string
	if w.Question == nil {
		missing = append(missing, "question")
	}
	if w.Steps == nil {
		missing = append(missing, "steps")
	}
	if w.Answer == nil {
		missing = append(missing, "answer")
	}
	if w.Concept == nil {
		missing = append(missing, "concept")
	}
	if len(missing) > 0 {
		return fail(fmt.Errorf("missing keys: %s", strings.Join(missing, ", ")))
	}

	steps := make([]string, 0, len(*w.Steps))
	for i, raw := range *w.Steps {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return fail(fmt.Errorf("steps[%d]: want string, got %s", i, raw))
		}
		steps = append(steps, s)
	}

	tags := make([]string, 0, len(*w.Concept))
	for i, raw := range *w.Concept {
		id, err := conceptID(raw)
		if err != nil {
			return fail(fmt.Errorf("concept[%d]: %w", i, err))
		}
		tags = append(tags, id)
	}

	return StructuredResult{
		ProblemText: *w.Question,
		Steps:       steps,
		Answer:      *w.Answer,
		ConceptTags: tags,
	}, nil
}

func conceptID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		return "", errors.New("null id")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("want string or integer, got %s", raw)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return "", fmt.Errorf("want integer, got %s", n)
	}
	return n.String(), nil
}

// stripFence removes a ```json ... ``` wrapper and surrounding whitespace.
func stripFence(text string) string {
	t := strings.TrimSpace(text)
	rest, ok := strings.CutPrefix(t, "```")
	if !ok {
		return t
	}
	body, ok := strings.CutSuffix(rest, "```")
	if !ok {
		return t
	}
	// Drop the language tag on the opening line.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		if tag := strings.TrimSpace(body[:nl]); tag == "" || !strings.ContainsAny(tag, "{[") {
			body = body[nl+1:]
		}
	}
	return strings.TrimSpace(body)
}

// FinalText concatenates the text blocks of resp. A nil response yields "".
func FinalText(resp *llm.CompletionResponse) string {
	if resp == nil {
		return ""
	}
	return resp.Text()
}
