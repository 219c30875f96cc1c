package relay

import "testing"

func TestFreshWindowSizeTiers(t *testing.T) {
	tests := []struct {
		totalMessages int
		want          int
	}{
		{0, 50},
		{50, 50},
		{99, 50},
		{100, 30},
		{499, 30},
		{500, 20},
		{999, 20},
		{1000, 15},
		{5000, 15},
	}

	for _, tt := range tests {
		if got := freshWindowSize(tt.totalMessages); got != tt.want {
			t.Errorf("freshWindowSize(%d) = %d, want %d", tt.totalMessages, got, tt.want)
		}
	}
}

func TestFreshWindowMonotonicity(t *testing.T) {
	sizes := []int{50, 99, 100, 499, 500, 999, 1000, 5000}
	prev := freshWindowSize(sizes[0])
	for _, total := range sizes[1:] {
		cur := freshWindowSize(total)
		if cur > prev {
			t.Errorf("fresh window grew from %d to %d at %d messages", prev, cur, total)
		}
		prev = cur
	}
}

func TestPlanWindowBoundary(t *testing.T) {
	tests := []struct {
		totalMessages int
		wantFresh     int
		wantBoundary  int
	}{
		{120, 30, 89},
		{3, 50, -1},
		{50, 50, -1},
		{51, 50, 0},
		{1000, 15, 984},
	}

	for _, tt := range tests {
		plan := PlanWindow(tt.totalMessages)
		if plan.FreshWindowSize != tt.wantFresh {
			t.Errorf("PlanWindow(%d).FreshWindowSize = %d, want %d", tt.totalMessages, plan.FreshWindowSize, tt.wantFresh)
		}
		if plan.CacheBoundaryIndex != tt.wantBoundary {
			t.Errorf("PlanWindow(%d).CacheBoundaryIndex = %d, want %d", tt.totalMessages, plan.CacheBoundaryIndex, tt.wantBoundary)
		}
		if plan.TotalMessages != tt.totalMessages {
			t.Errorf("PlanWindow(%d).TotalMessages = %d", tt.totalMessages, plan.TotalMessages)
		}
	}
}
