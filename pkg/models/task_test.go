package models

import "testing"

func TestTaskStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status TaskStatus
		want   bool
	}{
		{"pending is valid", TaskStatusPending, true},
		{"in_progress is valid", TaskStatusInProgress, true},
		{"completed is valid", TaskStatusCompleted, true},
		{"failed is valid", TaskStatusFailed, true},
		{"empty string is invalid", TaskStatus(""), false},
		{"lowercase is invalid", TaskStatus("pending"), false},
		{"blocked is not a task status", TaskStatus("BLOCKED"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("TaskStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestTaskStatus_Terminal(t *testing.T) {
	tests := []struct {
		status TaskStatus
		want   bool
	}{
		{TaskStatusPending, false},
		{TaskStatusInProgress, false},
		{TaskStatusCompleted, true},
		{TaskStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.want {
				t.Errorf("TaskStatus(%q).Terminal() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestTaskType_Valid(t *testing.T) {
	for _, typ := range []TaskType{TaskTypeAnalyze, TaskTypeDesign, TaskTypeCode, TaskTypeReview, TaskTypeDeploy, TaskTypeTest} {
		if !typ.Valid() {
			t.Errorf("TaskType(%q).Valid() = false, want true", typ)
		}
	}
	if TaskType("DOCUMENT").Valid() {
		t.Error("TaskType(DOCUMENT) should be invalid")
	}
}

func TestTask_OutputAndErrorText(t *testing.T) {
	task := Task{}
	if task.OutputText() != "" {
		t.Errorf("OutputText() on nil output = %q, want empty", task.OutputText())
	}
	if task.ErrorText() != "" {
		t.Errorf("ErrorText() on nil error = %q, want empty", task.ErrorText())
	}

	out, msg := "site built", "boom"
	task.Output = &out
	task.Error = &msg
	if task.OutputText() != out {
		t.Errorf("OutputText() = %q, want %q", task.OutputText(), out)
	}
	if task.ErrorText() != msg {
		t.Errorf("ErrorText() = %q, want %q", task.ErrorText(), msg)
	}
}
