package interview

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// maxDepth bounds the recursive walk over nested payloads.
const maxDepth = 8

var (
	roleKeys      = []string{"role", "jobRole", "job_role", "position", "targetRole", "target_role", "jobTitle", "job_title"}
	levelKeys     = []string{"level", "experienceLevel", "experience_level", "experience", "seniority"}
	typeKeys      = []string{"type", "interviewType", "interview_type", "focus", "category"}
	techStackKeys = []string{"techstack", "techStack", "tech_stack", "technologies", "technology", "stack", "skills"}
	amountKeys    = []string{"amount", "questionCount", "question_count", "numberOfQuestions", "number_of_questions", "numQuestions", "count"}
	questionKeys  = []string{"questions", "questionList", "question_list"}

	// Containers searched after the object itself, in priority order.
	containerGroups = [][]string{
		{"payload", "data", "content", "message", "body"},
		{"functionCall", "function_call", "function", "toolCall", "tool_call", "toolCalls", "tool_calls", "toolCallList", "arguments", "args", "parameters", "params"},
		{"result", "results", "output", "functionCallResult", "toolCallResult", "tool_call_result", "toolResults"},
	}

	reservedRoles = map[string]struct{}{
		"user": {}, "assistant": {}, "system": {}, "tool": {}, "function": {}, "bot": {}, "developer": {},
	}

	reservedEventTypes = map[string]struct{}{
		"transcript": {}, "function-call": {}, "function-call-result": {}, "tool-calls": {},
		"tool-calls-result": {}, "conversation-update": {}, "status-update": {}, "speech-update": {},
		"model-output": {}, "hang": {}, "call-start": {}, "call-end": {}, "error": {}, "message": {},
		"voice-input": {}, "user-interrupted": {}, "metadata": {}, "start": {}, "stop": {},
		"function": {}, "tool": {}, "text": {},
	}

	numberedQuestionKey = regexp.MustCompile(`^question[_\- ]?(\d+)$`)
	listMarker          = regexp.MustCompile(`^(?:[-*\x{2022}]|\d+[.)])\s*`)

	allKnownKeys = func() map[string]struct{} {
		keys := map[string]struct{}{}
		for _, group := range [][]string{roleKeys, levelKeys, typeKeys, techStackKeys, amountKeys, questionKeys} {
			for _, k := range group {
				keys[strings.ToLower(k)] = struct{}{}
			}
		}
		return keys
	}()
)

// Extract looks for an interview specification anywhere inside v, which may
// be a decoded JSON value, a JSON-encoded string, raw bytes, or any value that
// marshals to JSON. It returns false when nothing usable was found.
func Extract(v any) (Spec, bool) {
	return walk(v, 0)
}

func walk(v any, depth int) (Spec, bool) {
	if depth > maxDepth {
		return Spec{}, false
	}

	switch t := normalize(v).(type) {
	case map[string]any:
		if spec, ok := fromObject(t); ok {
			return spec, true
		}

		visited := map[string]struct{}{}
		for _, group := range containerGroups {
			for _, key := range group {
				actual, child, ok := lookup(t, key)
				if !ok {
					continue
				}
				visited[actual] = struct{}{}
				if spec, ok := walk(child, depth+1); ok {
					return spec, true
				}
			}
		}

		for _, key := range sortedKeys(t) {
			if _, seen := visited[key]; seen {
				continue
			}
			if spec, ok := walk(t[key], depth+1); ok {
				return spec, true
			}
		}
	case []any:
		for _, item := range t {
			if spec, ok := walk(item, depth+1); ok {
				return spec, true
			}
		}
	}

	return Spec{}, false
}

// normalize turns strings that look like JSON objects or arrays, raw bytes, and
// arbitrary Go values into generic JSON values. Plain text and scalars come
// back unchanged.
func normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any, []any, bool, float64, json.Number:
		return t
	case string:
		return decodeJSONish(t)
	case []byte:
		return decodeJSONish(string(t))
	case json.RawMessage:
		return decodeJSONish(string(t))
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = val
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = val
		}
		return out
	}

	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	return decodeJSONish(string(b))
}

func decodeJSONish(s string) any {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 2 {
		return s
	}
	first, last := trimmed[0], trimmed[len(trimmed)-1]
	if !(first == '{' && last == '}') && !(first == '[' && last == ']') {
		return s
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return s
	}
	return out
}

func fromObject(m map[string]any) (Spec, bool) {
	if !hasKnownKey(m) {
		return Spec{}, false
	}

	var spec Spec
	spec.Role = firstString(m, roleKeys)
	if isReserved(reservedRoles, spec.Role) {
		return Spec{}, false
	}
	spec.Type = firstString(m, typeKeys)
	if isReserved(reservedEventTypes, spec.Type) {
		return Spec{}, false
	}
	spec.Level = firstString(m, levelKeys)
	spec.TechStack = firstList(m, techStackKeys, splitTechStack)
	spec.Amount = firstPositive(m, amountKeys)

	spec.Questions = numberedQuestions(m)
	if len(spec.Questions) == 0 {
		spec.Questions = stripMarkers(firstList(m, questionKeys, splitQuestions))
	}
	if spec.Amount == 0 && len(spec.Questions) == 0 {
		// "questions": 5 is a count, not a list.
		spec.Amount = firstPositive(m, questionKeys)
	}

	if spec.IsZero() {
		return Spec{}, false
	}
	return spec, true
}

func hasKnownKey(m map[string]any) bool {
	for k := range m {
		lower := strings.ToLower(k)
		if _, ok := allKnownKeys[lower]; ok {
			return true
		}
		if numberedQuestionKey.MatchString(lower) {
			return true
		}
	}
	return false
}

func isReserved(set map[string]struct{}, value string) bool {
	if value == "" {
		return false
	}
	_, ok := set[strings.ToLower(value)]
	return ok
}

// lookup finds key case-insensitively. Exact matches win; otherwise the
// lexically first matching key is used so results stay deterministic.
func lookup(m map[string]any, key string) (string, any, bool) {
	if v, ok := m[key]; ok {
		return key, v, true
	}
	for _, k := range sortedKeys(m) {
		if strings.EqualFold(k, key) {
			return k, m[k], true
		}
	}
	return "", nil, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstString(m map[string]any, keys []string) string {
	for _, key := range keys {
		_, v, ok := lookup(m, key)
		if !ok {
			continue
		}
		if s := scalarString(v); s != "" {
			return s
		}
	}
	return ""
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}

func firstPositive(m map[string]any, keys []string) int {
	for _, key := range keys {
		_, v, ok := lookup(m, key)
		if !ok {
			continue
		}
		if n, ok := positiveInt(v); ok {
			return n
		}
	}
	return 0
}

// positiveInt accepts numbers and numeric strings that are finite and at least one.
func positiveInt(v any) (int, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, false
	}
	n := int(math.Floor(f))
	if n < 1 {
		return 0, false
	}
	return n, true
}

func firstList(m map[string]any, keys []string, split func(string) []string) []string {
	for _, key := range keys {
		_, v, ok := lookup(m, key)
		if !ok {
			continue
		}
		if list := toList(v, split); len(list) > 0 {
			return list
		}
	}
	return nil
}

func toList(v any, split func(string) []string) []string {
	switch t := normalize(v).(type) {
	case string:
		return clean(split(t))
	case []any:
		items := make([]string, 0, len(t))
		for _, item := range t {
			switch it := item.(type) {
			case map[string]any:
				items = append(items, firstString(it, []string{"question", "text", "name", "value"}))
			default:
				items = append(items, scalarString(it))
			}
		}
		return clean(items)
	default:
		return nil
	}
}

func clean(items []string) []string {
	var out []string
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func stripMarkers(items []string) []string {
	var out []string
	for _, item := range items {
		if item = strings.TrimSpace(listMarker.ReplaceAllString(item, "")); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func splitTechStack(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == '\n'
	})
}

func splitQuestions(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '\n' || r == '|'
	})
}

func numberedQuestions(m map[string]any) []string {
	type numbered struct {
		n    int
		text string
	}

	var found []numbered
	for k, v := range m {
		match := numberedQuestionKey.FindStringSubmatch(strings.ToLower(k))
		if match == nil {
			continue
		}
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		text := scalarString(v)
		if text == "" {
			continue
		}
		found = append(found, numbered{n: n, text: text})
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].n != found[j].n {
			return found[i].n < found[j].n
		}
		return found[i].text < found[j].text
	})

	out := make([]string, 0, len(found))
	for _, q := range found {
		out = append(out, q.text)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
