package workflow

import (
	"fmt"
	"strings"

	"github.com/cuongbtq/coursehub/internal/domain"
	"github.com/cuongbtq/coursehub/internal/session"
)

// Action is a course management operation
type Action string

const (
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Actions lists every management action in display order
var Actions = []Action{ActionAdd, ActionUpdate, ActionDelete}

// ActionSpec holds the copy and backend wiring of one action
type ActionSpec struct {
	Action      Action
	Label       string
	Kind        string
	Warning     string
	Button      string
	NeedsColumn bool

	confirmation string
	success      string
	itemNoun     func(n int) string
}

var actionSpecs = map[Action]ActionSpec{
	ActionAdd: {
		Action:       ActionAdd,
		Label:        "Add new data",
		Kind:         session.KindAddCourses,
		Warning:      `You have selected Add new data "Id's within your csv files will be added in database"`,
		Button:       "Save, Proceed",
		confirmation: `Are you sure you want to add "%s" ?`,
		success:      "New Data Added",
		itemNoun:     func(n int) string { return fmt.Sprintf("%d new items", n) },
	},
	ActionUpdate: {
		Action:       ActionUpdate,
		Label:        "Update existing data",
		Kind:         session.KindUpdateCourses,
		Warning:      `You have selected Update "Id's within your csv files will be Updated in database"`,
		Button:       "Update, Proceed",
		confirmation: `Are you sure you want to update "%s" ?`,
		success:      "Existing Data Updated",
		itemNoun:     func(n int) string { return fmt.Sprintf("%d items", n) },
	},
	ActionDelete: {
		Action:       ActionDelete,
		Label:        "Delete data",
		Kind:         session.KindDeleteCourses,
		Warning:      `You have selected delete "Id's within your csv files will be deleted from database"`,
		Button:       "Delete, Confirm",
		NeedsColumn:  true,
		confirmation: `Are you sure you want to delete "%s" ?`,
		success:      "%d Items Deleted Successfully",
		itemNoun:     func(n int) string { return fmt.Sprintf("%d items will be deleted", n) },
	},
}

// ParseAction resolves an action name, case-insensitively
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := actionSpecs[a]; !ok {
		return "", domain.NewError(domain.ErrValidation, fmt.Sprintf("unknown action %q", s), nil)
	}
	return a, nil
}

// Spec returns the handler table entry of a
func (a Action) Spec() ActionSpec {
	return actionSpecs[a]
}

// Confirmation returns the confirm dialog text for n records
func (s ActionSpec) Confirmation(n int) string {
	return fmt.Sprintf(s.confirmation, s.itemNoun(n))
}

// Success returns the message shown once the task completes
func (s ActionSpec) Success(n int) string {
	if strings.Contains(s.success, "%d") {
		return fmt.Sprintf(s.success, n)
	}
	return s.success
}
