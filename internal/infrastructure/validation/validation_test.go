package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyplanner/core/internal/domain/entities"
	"github.com/studyplanner/core/internal/ports"
)

func TestCustomValidator_DomainTags(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	assert.NoError(t, v.Validate(&ports.CreateTaskRequest{Title: "Essay", Priority: entities.PriorityHigh, DueDate: nil}))
	assert.NoError(t, v.Validate(&entities.Block{Start: "08:00", End: "09:30"}))

	tests := []struct {
		name  string
		input interface{}
		field string
	}{
		{"unknown priority", &ports.CreateTaskRequest{Title: "Essay", Priority: "Critical"}, "priority"},
		{"unknown status", &ports.CreateTaskRequest{Title: "Essay", Status: "later"}, "status"},
		{"bad clock", &entities.Block{Start: "8am", End: "09:00"}, "start"},
		{"bad color", &ports.CreateSubjectRequest{Name: "Art", Color: strPtr("blue")}, "color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.input)
			var ve validator.ValidationErrors
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve[0].Field())
		})
	}
}

func strPtr(s string) *string { return &s }
