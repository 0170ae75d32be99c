// Package projects is the sample application served by dorsale: customers own
// projects, projects own tasks, and task assignments link tasks to users.
package projects

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fiee/dorsale/internal/record"
	"github.com/fiee/dorsale/internal/textutil"
)

// Namespace is the url and registry namespace of the sample types.
const Namespace = "projects"

// Customer is a client projects are done for.
type Customer struct {
	record.Base
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

func (c *Customer) Display() string { return c.Name }

// Project is a piece of work for a customer, owned by a group.
type Project struct {
	record.Base
	CustomerID *int64     `db:"customer_id" json:"customer_id"`
	GroupID    *int64     `db:"group_id" json:"group_id"`
	Name       string     `db:"name" json:"name"`
	Slug       string     `db:"slug" json:"slug"`
	Color      string     `db:"color" json:"color"`
	CMYK       string     `db:"cmyk" json:"cmyk"`
	StartsOn   *time.Time `db:"starts_on" json:"starts_on"`
	DueOn      *time.Time `db:"due_on" json:"due_on"`
	Budget     float64    `db:"budget" json:"budget"`
	PageCount  string     `db:"page_count" json:"page_count"`
	Year       *int64     `db:"year" json:"year"`
	Active     *bool      `db:"active" json:"active"`
	Brief      string     `db:"brief" json:"brief"`
}

func (p *Project) Display() string { return p.Name }

// Overdue reports whether the due date has passed.
func (p *Project) Overdue(now time.Time) bool {
	return p.DueOn != nil && p.DueOn.Before(now)
}

// Task is one step of a project. Its group is the project's group.
type Task struct {
	record.Base
	ProjectID int64  `db:"project_id" json:"project_id"`
	Title     string `db:"title" json:"title"`
	Done      bool   `db:"done" json:"done"`
}

func (t *Task) Display() string { return t.Title }

var (
	customerRef = &record.Ref{Namespace: Namespace, Name: "customer"}
	projectRef  = &record.Ref{Namespace: Namespace, Name: "project"}
	taskRef     = &record.Ref{Namespace: Namespace, Name: "task"}
)

// CustomerType describes Customer.
func CustomerType() *record.Descriptor {
	return &record.Descriptor{
		Namespace:     Namespace,
		Name:          "customer",
		VerboseName:   "Customer",
		VerbosePlural: "Customers",
		Fields: []record.Field{
			{Name: "name", Label: "Name", Kind: record.KindText, Editable: true, Required: true, MaxLength: 255},
			{Name: "email", Label: "E-mail", Kind: record.KindText, Editable: true, MaxLength: 254, Validate: "email"},
			{Name: "projects", Label: "Projects", Kind: record.KindCollection, Related: projectRef,
				Collection: &record.Collection{Table: "projects", OwnerColumn: "customer_id"}},
		},
		Ordering:     []string{"name"},
		ListDisplay:  []string{"name", "email"},
		UniqueFields: []string{"name"},
		Relations: []record.Relation{
			{Table: "projects", Column: "customer_id", OnDelete: record.SetNull},
		},
		New: func() record.Record { return &Customer{} },
	}
}

// ProjectType describes Project.
func ProjectType() *record.Descriptor {
	return &record.Descriptor{
		Namespace:     Namespace,
		Name:          "project",
		VerboseName:   "Project",
		VerbosePlural: "Projects",
		Fields: []record.Field{
			{Name: "name", Label: "Name", Kind: record.KindText, Editable: true, Required: true, MaxLength: 255},
			{Name: "slug", Label: "Slug", Kind: record.KindText},
			{Name: "customer_id", Label: "Customer", Kind: record.KindForeignKey, Editable: true, Related: customerRef},
			{Name: "group_id", Label: "Group", Kind: record.KindGroup, Editable: true},
			{Name: "color", Label: "Colour", Kind: record.KindColor, Editable: true},
			{Name: "cmyk", Label: "CMYK", Kind: record.KindCMYK, Editable: true},
			{Name: "starts_on", Label: "Start", Kind: record.KindDate, Editable: true},
			{Name: "due_on", Label: "Due", Kind: record.KindDate, Editable: true},
			{Name: "budget", Label: "Budget", Kind: record.KindDecimal, Editable: true, Validate: "gte=0"},
			{Name: "page_count", Label: "Pages", Kind: record.KindText, Editable: true, MaxLength: 63, Validate: "pagerange"},
			{Name: "year", Label: "Year", Kind: record.KindInt, Editable: true, Validate: "year"},
			{Name: "active", Label: "Active", Kind: record.KindBool, Editable: true},
			{Name: "brief", Label: "Brief", Kind: record.KindFile, Editable: true},
			{Name: "overdue", Label: "Overdue", Kind: record.KindBool, Compute: func(rec record.Record) any {
				return rec.(*Project).Overdue(time.Now())
			}},
			{Name: "tasks", Label: "Tasks", Kind: record.KindCollection, Related: taskRef,
				Collection: &record.Collection{Table: "tasks", OwnerColumn: "project_id"}},
		},
		Ordering:     []string{"-due_on", "name"},
		ListDisplay:  []string{"name", "customer_id", "due_on", "active", "overdue"},
		UniqueFields: []string{"name"},
		GroupField:   "group_id",
		Relations: []record.Relation{
			{Table: "tasks", Column: "project_id", OnDelete: record.Cascade},
			{Table: "task_assignments", Column: "project_id", OnDelete: record.Cascade},
		},
		New: func() record.Record { return &Project{} },
	}
}

// TaskType describes Task.
func TaskType() *record.Descriptor {
	return &record.Descriptor{
		Namespace:     Namespace,
		Name:          "task",
		VerboseName:   "Task",
		VerbosePlural: "Tasks",
		Fields: []record.Field{
			{Name: "project_id", Label: "Project", Kind: record.KindForeignKey, Editable: true, Required: true, Related: projectRef},
			{Name: "title", Label: "Title", Kind: record.KindText, Editable: true, Required: true, MaxLength: 255},
			{Name: "done", Label: "Done", Kind: record.KindBool, Editable: true},
		},
		Ordering:     []string{"project_id", "id"},
		ItemsPerPage: 25,
		GroupVia:     &record.GroupPath{ForeignKey: "project_id", Table: "projects", GroupColumn: "group_id"},
		Relations: []record.Relation{
			{Table: "task_assignments", Column: "task_id", OnDelete: record.Cascade},
		},
		New: func() record.Record { return &Task{} },
	}
}

// Register adds the sample types to registry.
func Register(registry *record.Registry) error {
	for _, d := range []*record.Descriptor{CustomerType(), ProjectType(), TaskType()} {
		if err := registry.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// FillSlug derives the slug of a freshly created project from its name.
func FillSlug(ctx context.Context, ext sqlx.ExtContext, _ int64, projectID int64) error {
	var name string
	if err := sqlx.GetContext(ctx, ext, &name, `SELECT name FROM projects WHERE id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to load project %d: %w", projectID, err)
	}
	if _, err := ext.ExecContext(ctx, `UPDATE projects SET slug = $1 WHERE id = $2`, textutil.Slugify(strings.Join(strings.Fields(name), "-")), projectID); err != nil {
		return fmt.Errorf("failed to set slug of project %d: %w", projectID, err)
	}
	return nil
}

// AssignCreator assigns a freshly created task to the user who created it.
func AssignCreator(ctx context.Context, ext sqlx.ExtContext, actorID, taskID int64) error {
	_, err := ext.ExecContext(ctx, `
		INSERT INTO task_assignments (project_id, task_id, user_id)
		SELECT project_id, id, $1 FROM tasks WHERE id = $2`, actorID, taskID)
	if err != nil {
		return fmt.Errorf("failed to assign task %d: %w", taskID, err)
	}
	return nil
}
