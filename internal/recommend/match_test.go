package recommend

import "testing"

func TestMatchingInterests_CaseInsensitive(t *testing.T) {
	got := MatchingInterests([]string{"Music", "HIKING", "cooking"}, []string{"music", "hiking"})
	want := []string{"Music", "HIKING"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestMatchingInterests_PreservesCandidateOrder(t *testing.T) {
	got := MatchingInterests([]string{"c", "a", "b"}, []string{"a", "b", "c"})
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected candidate order %v, got %v", want, got)
		}
	}
}

func TestMatchingInterests_NoOverlap(t *testing.T) {
	got := MatchingInterests([]string{"music"}, []string{"finance"})
	if got == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(got) != 0 {
		t.Errorf("expected no matches, got %v", got)
	}
}

func TestMatchingInterests_EmptyInputs(t *testing.T) {
	if got := MatchingInterests(nil, []string{"music"}); len(got) != 0 {
		t.Errorf("nil candidate: expected no matches, got %v", got)
	}
	if got := MatchingInterests([]string{"music"}, nil); len(got) != 0 {
		t.Errorf("nil against: expected no matches, got %v", got)
	}
}

func TestStringSet(t *testing.T) {
	set := stringSet([]string{"a", "b", "a"})
	if len(set) != 2 {
		t.Errorf("expected 2 unique entries, got %d", len(set))
	}
	if _, ok := set["a"]; !ok {
		t.Error("expected 'a' in set")
	}
	if _, ok := set["c"]; ok {
		t.Error("did not expect 'c' in set")
	}
}
