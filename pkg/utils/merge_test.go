package utils_test

import (
	"testing"

	"github.com/campushub/clubsync/pkg/utils"
	"github.com/stretchr/testify/assert"
)

func TestMergeWithPrecedence(t *testing.T) {
	t.Parallel()

	priority := []string{"displayName", "avatar", "university"}

	tests := []struct {
		name     string
		embedded map[string]string
		live     map[string]string
		want     map[string]string
	}{
		{
			name:     "live wins over embedded",
			embedded: map[string]string{"displayName": "Old Name", "avatar": "old.png"},
			live:     map[string]string{"displayName": "New Name", "avatar": "new.png"},
			want:     map[string]string{"displayName": "New Name", "avatar": "new.png"},
		},
		{
			name:     "missing live field falls back to embedded",
			embedded: map[string]string{"displayName": "Old Name", "university": "Metro U"},
			live:     map[string]string{"displayName": "New Name"},
			want:     map[string]string{"displayName": "New Name", "university": "Metro U"},
		},
		{
			name:     "empty live value does not override",
			embedded: map[string]string{"displayName": "Old Name"},
			live:     map[string]string{"displayName": ""},
			want:     map[string]string{"displayName": "Old Name"},
		},
		{
			name:     "empty live map keeps whole snapshot",
			embedded: map[string]string{"displayName": "Old Name", "avatar": "old.png"},
			live:     map[string]string{},
			want:     map[string]string{"displayName": "Old Name", "avatar": "old.png"},
		},
		{
			name:     "fields outside priority come from embedded only",
			embedded: map[string]string{"displayName": "Old Name", "department": "CS"},
			live:     map[string]string{"displayName": "New Name", "department": "Math"},
			want:     map[string]string{"displayName": "New Name", "department": "CS"},
		},
		{
			name:     "nil maps",
			embedded: nil,
			live:     nil,
			want:     map[string]string{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := utils.MergeWithPrecedence(tt.embedded, tt.live, priority)
			assert.Equal(t, tt.want, got)
		})
	}
}
