package config

import "testing"

func TestLoadDefaultBootDescriptor(t *testing.T) {
	b, err := Load("testdata/boot.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(b.Tasks) != 10 {
		t.Fatalf("got %d tasks, want 10 (idle + 9 application tasks)", len(b.Tasks))
	}
	if b.Tasks[0].Name != "Idle" || b.Tasks[0].Priority != 15 {
		t.Fatalf("first task = %+v, want Idle at priority 15", b.Tasks[0])
	}
	if len(b.SemaphoreInit) != 3 || b.SemaphoreInit[0] != 1 || b.SemaphoreInit[2] != 5 {
		t.Fatalf("semaphoreInit = %v, want [1 0 5] (keyPressed, keyReleased, flashReq)", b.SemaphoreInit)
	}
}

func TestParseRejectsEmptyTaskList(t *testing.T) {
	if _, err := Parse([]byte("version: 1\ntasks: []\n")); err == nil {
		t.Fatal("expected an error for an empty task list")
	}
}

func TestParseRejectsDuplicateNames(t *testing.T) {
	yaml := `
tasks:
  - name: A
    priority: 1
    stackSize: 512
  - name: A
    priority: 2
    stackSize: 512
`
	if _, err := Parse([]byte(yaml)); err == nil {
		t.Fatal("expected an error for duplicate task names")
	}
}

func TestParseRejectsPriorityOutOfRange(t *testing.T) {
	yaml := `
tasks:
  - name: A
    priority: 16
    stackSize: 512
`
	if _, err := Parse([]byte(yaml)); err == nil {
		t.Fatal("expected an error for priority 16")
	}
}

func TestParseRejectsZeroStackSize(t *testing.T) {
	yaml := `
tasks:
  - name: A
    priority: 1
    stackSize: 0
`
	if _, err := Parse([]byte(yaml)); err == nil {
		t.Fatal("expected an error for zero stack size")
	}
}

func TestParseDefaultsVersion(t *testing.T) {
	yaml := `
tasks:
  - name: A
    priority: 1
    stackSize: 512
`
	b, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if b.Version != 1 {
		t.Fatalf("Version = %d, want 1", b.Version)
	}
}
