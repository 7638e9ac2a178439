package logger

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProvider is the structured log field key for the reviewer provider name.
	FieldProvider = "reviewer_provider"
	// FieldModel is the structured log field key for the reviewer model identifier.
	FieldModel = "reviewer_model"
	// FieldRequestID identifies one analysis request across components.
	FieldRequestID = "request_id"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to the logger, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// ReviewerFields describes the feedback provider and model. Empty values are
// skipped.
func ReviewerFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithReviewer attaches the reviewer fields to the provided logger.
func WithReviewer(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, ReviewerFields(provider, model)...)
}

// CountFields turns a counter map into integer fields named prefix+key, in
// key order. Zero counts are dropped.
func CountFields(prefix string, counts map[string]int) []zap.Field {
	keys := make([]string, 0, len(counts))
	for key, n := range counts {
		if n != 0 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys))
	for _, key := range keys {
		name := strings.ToLower(strings.Trim(key, "[]"))
		fields = append(fields, zap.Int(prefix+name, counts[key]))
	}
	return fields
}
