package queue

import (
	"testing"

	"stagehand/pkg/models"
)

func TestAddAssignsStableIDs(t *testing.T) {
	q := New()

	id0 := q.Add(models.TaskSpec{Description: "first"}, "")
	id1 := q.Add(models.TaskSpec{Description: "second"}, "")
	custom := q.Add(models.TaskSpec{Description: "third"}, "deploy")

	if id0 != "task-0" || id1 != "task-1" {
		t.Errorf("expected auto ids task-0, task-1; got %s, %s", id0, id1)
	}
	if custom != "deploy" {
		t.Errorf("expected caller-supplied id to be kept, got %s", custom)
	}
	if q.Len() != 3 {
		t.Errorf("expected 3 tasks, got %d", q.Len())
	}
}

func TestAddSkipsTakenAutoIDs(t *testing.T) {
	q := New()

	q.Add(models.TaskSpec{Description: "override"}, "task-0")
	auto := q.Add(models.TaskSpec{Description: "auto"}, "")

	if auto == "task-0" {
		t.Fatalf("auto id collided with caller-supplied task-0")
	}
	if auto != "task-1" {
		t.Errorf("expected next free auto id task-1, got %s", auto)
	}
	if q.Len() != 2 {
		t.Errorf("expected 2 tasks, got %d", q.Len())
	}
	if got := q.Get("task-0").Description; got != "override" {
		t.Errorf("caller-supplied task was overwritten, description %q", got)
	}
}

func TestAddDefaultsPriority(t *testing.T) {
	q := New()
	id := q.Add(models.TaskSpec{Description: "work"}, "")

	if got := q.Get(id).Priority; got != models.PriorityMedium {
		t.Errorf("expected default priority medium, got %s", got)
	}
}

func TestReadyExcludesUnmetDependencies(t *testing.T) {
	q := New()
	a := q.Add(models.TaskSpec{Description: "A"}, "")
	b := q.Add(models.TaskSpec{Description: "B", DependsOn: []string{a}}, "")
	c := q.Add(models.TaskSpec{Description: "C"}, "")

	ready := readyIDs(q)
	if len(ready) != 2 || ready[0] != a || ready[1] != c {
		t.Fatalf("expected ready = [%s %s], got %v", a, c, ready)
	}

	q.Start(a)
	q.Complete(a, "done")

	ready = readyIDs(q)
	if len(ready) != 2 || ready[0] != b || ready[1] != c {
		t.Fatalf("after completing A, expected ready = [%s %s], got %v", b, c, ready)
	}
}

func TestReadyMissingDependencyNeverSatisfied(t *testing.T) {
	q := New()
	q.Add(models.TaskSpec{Description: "orphan", DependsOn: []string{"nope"}}, "")

	if ready := q.Ready(); len(ready) != 0 {
		t.Errorf("task with missing dependency should never be ready, got %v", readyIDs(q))
	}
}

func TestCompleteUnknownIDIsNoOp(t *testing.T) {
	q := New()
	q.Add(models.TaskSpec{Description: "only"}, "")

	q.Complete("ghost", "result")
	q.Fail("ghost", "boom")

	if q.Len() != 1 {
		t.Errorf("queue size changed by unknown-id signal: %d", q.Len())
	}
	if order := q.CompletionOrder(); len(order) != 0 {
		t.Errorf("completion order changed by unknown-id signal: %v", order)
	}
}

func TestCompletionOrderFollowsCompleteCalls(t *testing.T) {
	q := New()
	a := q.Add(models.TaskSpec{Description: "A"}, "")
	b := q.Add(models.TaskSpec{Description: "B"}, "")
	c := q.Add(models.TaskSpec{Description: "C"}, "")

	q.Complete(c, "")
	q.Complete(a, "")
	q.Complete(b, "")

	order := q.CompletionOrder()
	want := []string{c, a, b}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected completion order %v, got %v", want, order)
		}
	}
}

func TestDuplicateCompleteKeepsFirstResult(t *testing.T) {
	q := New()
	a := q.Add(models.TaskSpec{Description: "A"}, "")

	q.Complete(a, "first")
	q.Complete(a, "second")
	q.Fail(a, "late failure")

	task := q.Get(a)
	if task.Status != models.TaskStatusCompleted {
		t.Errorf("terminal status moved backward: %s", task.Status)
	}
	if task.Result != "first" {
		t.Errorf("expected first result to win, got %q", task.Result)
	}
	if len(q.CompletionOrder()) != 1 {
		t.Errorf("duplicate complete extended completion order: %v", q.CompletionOrder())
	}
}

func TestFailDoesNotUnblockDependents(t *testing.T) {
	q := New()
	a := q.Add(models.TaskSpec{Description: "A"}, "")
	q.Add(models.TaskSpec{Description: "B", DependsOn: []string{a}}, "")

	q.Fail(a, "broke")

	if ready := q.Ready(); len(ready) != 0 {
		t.Errorf("dependent of failed task should stay blocked, got %v", readyIDs(q))
	}
	if q.Done() {
		t.Error("queue with a permanently blocked pending task should not be done")
	}
}

func TestDone(t *testing.T) {
	q := New()
	a := q.Add(models.TaskSpec{Description: "A"}, "")
	if q.Done() {
		t.Error("queue with pending task should not be done")
	}
	q.Complete(a, "")
	if !q.Done() {
		t.Error("queue with all tasks terminal should be done")
	}
}

func readyIDs(q *Queue) []string {
	var ids []string
	for _, task := range q.Ready() {
		ids = append(ids, task.ID)
	}
	return ids
}
