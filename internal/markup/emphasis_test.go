package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Segment
	}{
		{
			name: "single emphasis",
			in:   "Try **reset password** now",
			want: []Segment{
				{Text: "Try "},
				{Text: "reset password", Emphasized: true},
				{Text: " now"},
			},
		},
		{
			name: "no markers",
			in:   "Contact support",
			want: []Segment{{Text: "Contact support"}},
		},
		{
			name: "leading emphasis",
			in:   "**Billing**: check invoices",
			want: []Segment{
				{Text: "Billing", Emphasized: true},
				{Text: ": check invoices"},
			},
		},
		{
			name: "two emphasized runs",
			in:   "**a** and **b**",
			want: []Segment{
				{Text: "a", Emphasized: true},
				{Text: " and "},
				{Text: "b", Emphasized: true},
			},
		},
		{
			name: "unmatched trailing marker stays plain",
			in:   "Open **settings",
			want: []Segment{
				{Text: "Open "},
				{Text: "**settings"},
			},
		},
		{
			name: "unmatched after a matched pair",
			in:   "**a** b **c",
			want: []Segment{
				{Text: "a", Emphasized: true},
				{Text: " b "},
				{Text: "**c"},
			},
		},
		{
			name: "empty",
			in:   "",
			want: []Segment{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.in))
		})
	}
}

func TestPlainAndRender(t *testing.T) {
	segs := Parse("Try **reset password** now")
	assert.Equal(t, "Try reset password now", Plain(segs))
	assert.Equal(t, "Try RESET PASSWORD now", Render(segs, strings.ToUpper))
	assert.Equal(t, "Try reset password now", Render(segs, nil))
}
