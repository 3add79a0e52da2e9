package models

import "time"

// TaskStatus is the todo state carried by a heading's detached modifier extension.
type TaskStatus string

const (
	StatusUndone             TaskStatus = "Undone"
	StatusDone               TaskStatus = "Done"
	StatusNeedsClarification TaskStatus = "NeedsClarification"
	StatusPaused             TaskStatus = "Paused"
	StatusUrgent             TaskStatus = "Urgent"
	StatusRecurring          TaskStatus = "Recurring"
	StatusPending            TaskStatus = "Pending"
	StatusCanceled           TaskStatus = "Canceled"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusUndone, StatusDone, StatusNeedsClarification, StatusPaused,
		StatusUrgent, StatusRecurring, StatusPending, StatusCanceled:
		return true
	}
	return false
}

// Task is one annotated heading. Children keep source order.
//
// ID, ParentID, Created and Updated are only populated for tasks read back
// from the index; freshly extracted tasks leave them zero.
type Task struct {
	ID        int64      `json:"id,omitempty"`
	ParentID  *int64     `json:"parent_id,omitempty"`
	Text      string     `json:"text"`
	Status    TaskStatus `json:"status"`
	Priority  string     `json:"priority,omitempty"`
	Due       *time.Time `json:"due,omitempty"`
	Starts    *time.Time `json:"starts,omitempty"`
	Recurs    *time.Time `json:"recurs,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Created   string     `json:"created,omitempty"`
	Updated   string     `json:"updated,omitempty"`
	Children  []Task     `json:"children,omitempty"`
}

// Walk calls fn for every task in the forest, parents before children.
func Walk(tasks []Task, fn func(t *Task, depth int)) {
	var visit func([]Task, int)
	visit = func(ts []Task, depth int) {
		for i := range ts {
			fn(&ts[i], depth)
			visit(ts[i].Children, depth+1)
		}
	}
	visit(tasks, 0)
}
