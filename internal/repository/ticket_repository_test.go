package repository

import (
	"slices"
	"testing"
)

func TestBuildTicketWhere(t *testing.T) {
	tests := []struct {
		name      string
		filter    TicketFilter
		wantWhere string
		wantArgs  []any
	}{
		{name: "empty", filter: TicketFilter{}, wantWhere: "1=1", wantArgs: []any{}},
		{
			name:      "status and priority",
			filter:    TicketFilter{Status: "open", Priority: "high"},
			wantWhere: "1=1 AND t.status=$1 AND t.priority=$2",
			wantArgs:  []any{"open", "high"},
		},
		{
			name:      "unassigned",
			filter:    TicketFilter{Assignee: AssigneeUnassigned},
			wantWhere: "1=1 AND t.assignee_id IS NULL",
			wantArgs:  []any{},
		},
		{
			name:      "assignee id",
			filter:    TicketFilter{Assignee: "u-1"},
			wantWhere: "1=1 AND t.assignee_id::text=$1",
			wantArgs:  []any{"u-1"},
		},
		{
			name:      "search escapes wildcards",
			filter:    TicketFilter{Search: " 50%_off "},
			wantWhere: "1=1 AND (t.subject ILIKE $1 OR t.description ILIKE $1 OR t.reference ILIKE $1)",
			wantArgs:  []any{`%50\%\_off%`},
		},
		{
			name:      "tag",
			filter:    TicketFilter{Status: "resolved", Tag: "vip"},
			wantWhere: "1=1 AND t.status=$1 AND $2 = ANY(t.tags)",
			wantArgs:  []any{"resolved", "vip"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := buildTicketWhere(tt.filter)
			if where != tt.wantWhere {
				t.Fatalf("where = %q, want %q", where, tt.wantWhere)
			}
			if !slices.Equal(args, tt.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestEscapeLike(t *testing.T) {
	if got := EscapeLike(`a\b%c_d`); got != `a\\b\%c\_d` {
		t.Fatalf("EscapeLike = %q", got)
	}
}
