package tasks

import "testing"

func TestNewAssignsIDAndDefaults(t *testing.T) {
	task := New(Spec{ID: "ISSUE-42", Title: "Add caching"})

	if task.ID == "" {
		t.Error("New() left ID empty")
	}
	if task.ID == task.SourceID {
		t.Error("New() should assign an ID distinct from the source id")
	}
	if task.SourceID != "ISSUE-42" {
		t.Errorf("SourceID = %q, want ISSUE-42", task.SourceID)
	}
	if task.Priority != DefaultPriority {
		t.Errorf("Priority = %d, want default %d", task.Priority, DefaultPriority)
	}
	if task.Status != StatusQueued {
		t.Errorf("Status = %q, want %q", task.Status, StatusQueued)
	}
	if task.Context == nil {
		t.Error("New() left Context nil")
	}
}

func TestNewKeepsExplicitPriority(t *testing.T) {
	task := New(Spec{ID: "t", Priority: 9})
	if task.Priority != 9 {
		t.Errorf("Priority = %d, want 9", task.Priority)
	}
}

func TestStatusTerminal(t *testing.T) {
	cases := []struct {
		status Status
		want   bool
	}{
		{StatusQueued, false},
		{StatusInProgress, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}
	for _, tc := range cases {
		if got := tc.status.Terminal(); got != tc.want {
			t.Errorf("%s.Terminal() = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestDependsOn(t *testing.T) {
	task := New(Spec{ID: "c", Dependencies: []string{"a", "b"}})
	if !task.DependsOn("a") {
		t.Error("DependsOn(a) = false, want true")
	}
	if task.DependsOn("z") {
		t.Error("DependsOn(z) = true, want false")
	}
}

func TestCloneIsDeep(t *testing.T) {
	task := New(Spec{ID: "t", Dependencies: []string{"a"}})
	task.Context["a"] = "result"

	cp := task.Clone()
	cp.Dependencies[0] = "changed"
	cp.Context["a"] = "changed"

	if task.Dependencies[0] != "a" {
		t.Error("Clone() shares the dependencies slice")
	}
	if task.Context["a"] != "result" {
		t.Error("Clone() shares the context map")
	}
}
