package locality

import (
	"reflect"
	"testing"
)

func TestNeighborRows_SkipsSelf(t *testing.T) {
	rows := neighborRows([][]int{
		{0, 2, 1},
		{1, 0},
		{2, 0, 1},
	})
	want := []neighborRow{
		{from: 0, to: 2, rank: 1},
		{from: 0, to: 1, rank: 2},
		{from: 1, to: 0, rank: 1},
		{from: 2, to: 0, rank: 1},
		{from: 2, to: 1, rank: 2},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows:\n got %v\nwant %v", rows, want)
	}
}

func TestNeighborRows_Empty(t *testing.T) {
	if rows := neighborRows(nil); len(rows) != 0 {
		t.Errorf("expected no rows, got %v", rows)
	}
	// A single chunk only ever neighbors itself.
	if rows := neighborRows([][]int{{0}}); len(rows) != 0 {
		t.Errorf("expected no rows for single chunk, got %v", rows)
	}
}
