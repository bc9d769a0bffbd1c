package metrics

import (
	"reflect"
	"testing"
)

func TestFlattenStatusBuckets(t *testing.T) {
	tests := []struct {
		name    string
		buckets map[string]map[string]int
		want    []StatusBucket
	}{
		{
			name:    "nil buckets",
			buckets: nil,
			want:    nil,
		},
		{
			name:    "empty buckets",
			buckets: map[string]map[string]int{},
			want:    nil,
		},
		{
			name: "sorted by count desc",
			buckets: map[string]map[string]int{
				"error": {
					"500": 10,
					"502": 5,
				},
				"timeout": {
					"deadline": 20,
				},
			},
			want: []StatusBucket{
				{Kind: "timeout", Code: "deadline", Count: 20},
				{Kind: "error", Code: "500", Count: 10},
				{Kind: "error", Code: "502", Count: 5},
			},
		},
		{
			name: "tie breaking by kind then code",
			buckets: map[string]map[string]int{
				"timeout": {"deadline": 3},
				"error": {
					"503": 3,
					"500": 3,
				},
			},
			want: []StatusBucket{
				{Kind: "error", Code: "500", Count: 3},
				{Kind: "error", Code: "503", Count: 3},
				{Kind: "timeout", Code: "deadline", Count: 3},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FlattenStatusBuckets(tt.buckets)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FlattenStatusBuckets() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSortErrorTypes(t *testing.T) {
	got := SortErrorTypes(map[string]int{"b": 1, "a": 1, "c": 4})
	want := []ErrorTypeCount{{"c", 4}, {"a", 1}, {"b", 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SortErrorTypes() = %v, want %v", got, want)
	}
	if SortErrorTypes(nil) != nil {
		t.Errorf("SortErrorTypes(nil) should be nil")
	}
}
