package services

import (
	"fmt"
	"strconv"
	"strings"
)

// Field identifiers double as the wire format of submitted values:
// question_<question-id>_<answer-group-id>. FieldName and ParseFieldName
// must stay symmetric.
const fieldPrefix = "question_"

// FieldName builds the flat identifier of one answer-group field.
func FieldName(questionID, groupID int64) string {
	return fmt.Sprintf("%s%d_%d", fieldPrefix, questionID, groupID)
}

// QuestionKey groups every field of a question.
func QuestionKey(questionID int64) string {
	return fieldPrefix + strconv.FormatInt(questionID, 10)
}

// IsFieldName reports whether name looks like a question field at all.
func IsFieldName(name string) bool {
	return strings.HasPrefix(name, fieldPrefix)
}

// ParseFieldName extracts the question and answer-group ids from a field name.
func ParseFieldName(name string) (questionID, groupID int64, err error) {
	rest, ok := strings.CutPrefix(name, fieldPrefix)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrFieldName, name)
	}
	q, g, ok := strings.Cut(rest, "_")
	if !ok || strings.Contains(g, "_") {
		return 0, 0, fmt.Errorf("%w: %q", ErrFieldName, name)
	}
	if questionID, err = strconv.ParseInt(q, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrFieldName, name)
	}
	if groupID, err = strconv.ParseInt(g, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrFieldName, name)
	}
	return questionID, groupID, nil
}
